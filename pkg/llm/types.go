package llm

import "encoding/json"

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"` // One of RoleSystem, RoleUser, RoleAssistant.
	Content string `json:"content"`
}

// Role constants for the Message.Role field.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is the chat-completions request body. Optional numeric fields
// are pointers so that "unset" is distinguishable from zero on the wire.
// Extra holds user-supplied top-level fields; it never overrides the typed
// fields above it.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`

	Extra map[string]any `json:"-"`
}

// reservedFields are the JSON keys owned by ChatRequest's typed fields.
var reservedFields = map[string]struct{}{
	"model":       {},
	"messages":    {},
	"stream":      {},
	"max_tokens":  {},
	"temperature": {},
	"top_p":       {},
}

// IsReservedField reports whether key is written by ChatRequest's typed
// fields and therefore cannot be supplied as a custom parameter.
func IsReservedField(key string) bool {
	_, ok := reservedFields[key]
	return ok
}

// MarshalJSON flattens Extra into the top-level object.
func (r ChatRequest) MarshalJSON() ([]byte, error) {
	type plain ChatRequest
	base, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+6)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if IsReservedField(k) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON is the inverse of MarshalJSON: unknown top-level keys are
// collected into Extra.
func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	type plain ChatRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, raw := range all {
		if IsReservedField(k) {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}

	*r = ChatRequest(p)
	return nil
}

// ChatStreamChunk is one decoded SSE data payload of a streaming completion.
// Only choices[].delta is interpreted. The remaining fields are kept raw so
// a server that sends them with an unexpected JSON type still delivers its
// content.
type ChatStreamChunk struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Object  json.RawMessage `json:"object,omitempty"`
	Created json.RawMessage `json:"created,omitempty"`
	Model   json.RawMessage `json:"model,omitempty"`
	Choices []StreamChoice  `json:"choices"`
}

// StreamChoice is one entry of ChatStreamChunk.Choices.
type StreamChoice struct {
	Index        json.RawMessage `json:"index,omitempty"`
	Delta        Delta           `json:"delta"`
	FinishReason json.RawMessage `json:"finish_reason,omitempty"`
}

// Delta is the incremental message content carried by a stream chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Content returns choices[0].delta.content, or "" when the chunk carries
// no text (role-only or metadata-only chunks).
func (c *ChatStreamChunk) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// ChatCompletion is the body of a non-streaming chat-completions response.
type ChatCompletion struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Object  json.RawMessage `json:"object,omitempty"`
	Created json.RawMessage `json:"created,omitempty"`
	Model   json.RawMessage `json:"model,omitempty"`
	Choices []struct {
		Index        json.RawMessage `json:"index,omitempty"`
		Message      Message         `json:"message"`
		FinishReason json.RawMessage `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage,omitempty"`
}
