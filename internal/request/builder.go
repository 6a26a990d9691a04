package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/pkg/llm"
	"github.com/HerbHall/textlens/pkg/models"
)

// Request is a fully assembled chat-completions call.
type Request struct {
	Target llm.Target
	Body   llm.ChatRequest
}

// Encode returns the JSON request body.
func (r *Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	return data, nil
}

// Builder assembles requests. It logs skipped custom-parameter lines at
// debug level; it never fails a build because of them.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build creates a single-turn request for cfg carrying prompt as the only
// user message. cfg must already have passed validation; an invalid cfg
// here is a caller bug and is returned as an error.
//
// MaxTokens, Temperature and TopP are sent only when advanced params are
// enabled and the value is positive; zero means "use the provider default".
// Custom parameters are merged as extra top-level fields and never replace
// the typed fields.
func (b *Builder) Build(cfg *models.ProviderConfig, prompt string) (*Request, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	body := llm.ChatRequest{
		Model:    cfg.Model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Stream:   cfg.StreamingEnabled,
	}

	if cfg.AdvancedParamsEnabled {
		if cfg.MaxTokens > 0 {
			v := cfg.MaxTokens
			body.MaxTokens = &v
		}
		if cfg.Temperature > 0 {
			v := cfg.Temperature
			body.Temperature = &v
		}
		if cfg.TopP > 0 {
			v := cfg.TopP
			body.TopP = &v
		}
	}

	params := parseCustomParameters(cfg.CustomParameters, func(line int, raw string) {
		b.logger.Debug("skipping custom parameter line",
			zap.String("provider", cfg.Name),
			zap.Int("line", line),
			zap.String("raw", raw),
		)
	})
	for k := range params {
		if llm.IsReservedField(k) {
			b.logger.Debug("custom parameter shadows typed field, ignored",
				zap.String("provider", cfg.Name),
				zap.String("key", k),
			)
			delete(params, k)
		}
	}
	if len(params) > 0 {
		body.Extra = params
	}

	return &Request{
		Target: llm.Target{
			BaseURL: NormalizeBaseURL(cfg.BaseURL, cfg.Kind),
			Path:    llm.ChatCompletionsPath,
			APIKey:  strings.TrimSpace(cfg.APIKey),
			Kind:    cfg.Kind,
		},
		Body: body,
	}, nil
}
