// Package llm provides the public SDK types for the text-processing
// pipeline: provider kinds, chat-completions wire types, the error
// taxonomy surfaced to UI hosts, and the interfaces that connect the
// pipeline stages. Implementations live in internal/ packages.
package llm

import (
	"context"
	"io"
	"iter"
)

// Target is a fully resolved endpoint for one request.
type Target struct {
	BaseURL string // Normalized; always ends with "/".
	Path    string // Relative to BaseURL, e.g. "chat/completions".
	APIKey  string // Empty means no Authorization header.
	Kind    Kind
}

// URL joins BaseURL and Path.
func (t Target) URL() string {
	return t.BaseURL + t.Path
}

// ChatCompletionsPath is the endpoint path appended to every normalized base URL.
const ChatCompletionsPath = "chat/completions"

// Transport sends a request body to a Target and returns the raw response
// stream. The caller owns the returned body and must close it.
type Transport interface {
	Send(ctx context.Context, target Target, body []byte) (io.ReadCloser, error)
}

// FragmentSource turns a response body into a lazy, single-pass sequence
// of text fragments. A non-nil error element ends the sequence.
type FragmentSource interface {
	Fragments(ctx context.Context, body io.Reader) iter.Seq2[string, error]
}

// Collect drains a fragment sequence into one string. It stops at the
// first error and returns the text accumulated so far with it.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var out []byte
	for frag, err := range seq {
		if err != nil {
			return string(out), err
		}
		out = append(out, frag...)
	}
	return string(out), nil
}
