// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/HerbHall/textlens/internal/store"
	"github.com/HerbHall/textlens/pkg/llm"
	"github.com/HerbHall/textlens/pkg/models"
)

// NewProvider returns a valid OpenAI-compatible ProviderConfig suitable for
// test fixtures. Override individual fields with options.
func NewProvider(opts ...func(*models.ProviderConfig)) models.ProviderConfig {
	p := models.NewProviderConfig("test-provider", llm.KindOpenAICompatible)
	p.APIKey = "sk-test"
	p.Model = "test-model"
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithName sets the provider name.
func WithName(name string) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) { p.Name = name }
}

// WithKind sets the provider kind and its default base URL.
func WithKind(k llm.Kind) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) {
		p.Kind = k
		if u := k.DefaultBaseURL(); u != "" {
			p.BaseURL = u
		}
	}
}

// WithBaseURL sets the provider base URL.
func WithBaseURL(u string) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) { p.BaseURL = u }
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) { p.APIKey = key }
}

// WithModel sets the model name.
func WithModel(model string) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) { p.Model = model }
}

// WithStreaming toggles streaming responses.
func WithStreaming(on bool) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) { p.StreamingEnabled = on }
}

// WithAdvancedParams enables advanced parameters with the given values.
func WithAdvancedParams(maxTokens int, temperature, topP float64) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) {
		p.AdvancedParamsEnabled = true
		p.MaxTokens = maxTokens
		p.Temperature = temperature
		p.TopP = topP
	}
}

// WithCustomParameters sets the raw custom parameter text.
func WithCustomParameters(text string) func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) { p.CustomParameters = text }
}

// WithDefault marks the provider as the default.
func WithDefault() func(*models.ProviderConfig) {
	return func(p *models.ProviderConfig) { p.IsDefault = true }
}

// NewTemplate returns a PromptTemplate with the given content.
func NewTemplate(title, content string) models.PromptTemplate {
	return models.PromptTemplate{Title: title, Content: content}
}

// NewStore returns a migrated in-memory store closed on test cleanup.
func NewStore(t testing.TB) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.MigrateCore(context.Background()); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return s
}
