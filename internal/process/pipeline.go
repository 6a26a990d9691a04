// Package process runs the text-processing pipeline and exposes its
// progress as a small state machine.
//
// A run resolves the provider and template, renders the prompt, builds
// and sends the chat-completions request, and parses the response into
// fragments. Machine drives one run at a time and publishes every state
// change to subscribers and the event bus.
package process

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/prompt"
	"github.com/HerbHall/textlens/internal/request"
	"github.com/HerbHall/textlens/internal/sse"
	"github.com/HerbHall/textlens/pkg/llm"
	"github.com/HerbHall/textlens/pkg/models"
)

// ConfigResolver supplies the provider and template for a run.
type ConfigResolver interface {
	Resolve(ctx context.Context) (*models.ProviderConfig, error)
	ResolveTemplate(ctx context.Context, id int64) (*models.PromptTemplate, error)
}

// Runner produces the fragment sequence for one processing request.
type Runner interface {
	Run(ctx context.Context, selected string, templateID int64) iter.Seq2[string, error]
}

// Compile-time interface guard.
var _ Runner = (*Pipeline)(nil)

// Pipeline wires resolver, renderer, builder, transport and parser.
type Pipeline struct {
	resolver  ConfigResolver
	builder   *request.Builder
	transport llm.Transport
	parser    *sse.Parser
	logger    *zap.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(resolver ConfigResolver, builder *request.Builder, transport llm.Transport, parser *sse.Parser, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		resolver:  resolver,
		builder:   builder,
		transport: transport,
		parser:    parser,
		logger:    logger,
	}
}

// Run returns the lazy fragment sequence for selected rendered into the
// template with templateID (zero: first template). Nothing happens until
// the sequence is ranged over; the request is sent on first iteration and
// the response body is closed when iteration stops for any reason. Errors
// from any stage are yielded once as the final element.
func (p *Pipeline) Run(ctx context.Context, selected string, templateID int64) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req, err := p.prepare(ctx, selected, templateID)
		if err != nil {
			yield("", err)
			return
		}
		body, err := req.Encode()
		if err != nil {
			yield("", err)
			return
		}

		p.logger.Debug("sending request",
			zap.String("url", req.Target.URL()),
			zap.String("provider_kind", req.Target.Kind.String()),
			zap.String("model", req.Body.Model),
			zap.Bool("stream", req.Body.Stream),
		)
		rc, err := p.transport.Send(ctx, req.Target, body)
		if err != nil {
			yield("", err)
			return
		}
		defer rc.Close()

		var frags iter.Seq2[string, error]
		if req.Body.Stream {
			frags = p.parser.Fragments(ctx, rc)
		} else {
			frags = p.parser.DecodeCompletion(ctx, rc)
		}
		for frag, err := range frags {
			if !yield(frag, err) {
				return
			}
		}
	}
}

func (p *Pipeline) prepare(ctx context.Context, selected string, templateID int64) (*request.Request, error) {
	cfg, err := p.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	tpl, err := p.resolver.ResolveTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !prompt.HasPlaceholder(tpl.Content) {
		p.logger.Debug("template has no placeholder; selected text is not sent",
			zap.Int64("template_id", tpl.ID),
		)
	}

	req, err := p.builder.Build(cfg, prompt.Render(tpl.Content, selected))
	if err != nil {
		return nil, fmt.Errorf("prepare request: %w", err)
	}
	return req, nil
}
