// Package resolver picks the provider configuration and prompt template a
// processing run uses.
package resolver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/store"
	"github.com/HerbHall/textlens/pkg/llm"
	"github.com/HerbHall/textlens/pkg/models"
)

// ProviderSource is the read side of the provider store.
type ProviderSource interface {
	GetDefault(ctx context.Context) (*models.ProviderConfig, error)
	List(ctx context.Context) ([]models.ProviderConfig, error)
	SetDefault(ctx context.Context, id int64) error
}

// TemplateSource is the read side of the template store.
type TemplateSource interface {
	Get(ctx context.Context, id int64) (*models.PromptTemplate, error)
	List(ctx context.Context) ([]models.PromptTemplate, error)
}

// LegacySource reads the pre-multi-provider configuration slot.
type LegacySource interface {
	Get(ctx context.Context) (models.LegacyConfig, error)
}

// Compile-time interface guards.
var (
	_ ProviderSource = (*store.ProviderStore)(nil)
	_ TemplateSource = (*store.TemplateStore)(nil)
	_ LegacySource   = (*store.LegacyStore)(nil)
)

// Resolver chooses configurations following the default, first-listed,
// legacy precedence.
type Resolver struct {
	providers ProviderSource
	templates TemplateSource
	legacy    LegacySource // may be nil
	logger    *zap.Logger
}

// New creates a Resolver. legacy may be nil when no legacy slot exists.
func New(providers ProviderSource, templates TemplateSource, legacy LegacySource, logger *zap.Logger) *Resolver {
	return &Resolver{providers: providers, templates: templates, legacy: legacy, logger: logger}
}

// Resolve returns the provider configuration for the next request. The
// result has passed Validate; a missing field surfaces as a
// *llm.ConfigurationError naming it.
func (r *Resolver) Resolve(ctx context.Context) (*models.ProviderConfig, error) {
	cfg, source, err := r.pick(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		r.logger.Debug("resolved provider is incomplete",
			zap.String("source", source),
			zap.String("provider", cfg.Name),
			zap.Error(err),
		)
		return nil, err
	}
	r.logger.Debug("resolved provider",
		zap.String("source", source),
		zap.String("provider", cfg.Name),
		zap.String("kind", cfg.Kind.String()),
	)
	return cfg, nil
}

func (r *Resolver) pick(ctx context.Context) (*models.ProviderConfig, string, error) {
	def, err := r.providers.GetDefault(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("resolve default provider: %w", err)
	}
	if def != nil {
		return def, "default", nil
	}

	list, err := r.providers.List(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list providers: %w", err)
	}
	if len(list) > 0 {
		return &list[0], "first", nil
	}

	if r.legacy != nil {
		legacy, err := r.legacy.Get(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load legacy config: %w", err)
		}
		if legacy.Validate() == nil {
			cfg := legacy.ProviderConfig()
			return &cfg, "legacy", nil
		}
	}
	return nil, "", llm.NewConfigurationError("", "no API provider is configured")
}

// ResolveTemplate returns the template with id, or the first template in
// display order when id is zero or no longer exists.
func (r *Resolver) ResolveTemplate(ctx context.Context, id int64) (*models.PromptTemplate, error) {
	if id != 0 {
		tpl, err := r.templates.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get template %d: %w", id, err)
		}
		if tpl != nil {
			return tpl, nil
		}
		r.logger.Debug("template not found, using first", zap.Int64("template_id", id))
	}

	list, err := r.templates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if len(list) == 0 {
		return nil, llm.NewConfigurationError("template", "no prompt template is available")
	}
	return &list[0], nil
}

// SetDefault marks provider id as the default.
func (r *Resolver) SetDefault(ctx context.Context, id int64) error {
	return r.providers.SetDefault(ctx, id)
}
