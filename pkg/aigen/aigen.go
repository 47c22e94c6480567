// Package aigen implements model.Generator over an AI vendor provider,
// selecting a concrete (provider, model) pair via tierselect and failing
// over to one alternate provider on a retryable error within a single
// Generate call. Cross-attempt retry/backoff is retryengine's concern;
// cross-provider failover within one attempt is this package's and
// tierselect's, per the system's prescribed division of responsibility —
// a plain template generator never needs to know an AIProvider exists.
package aigen

import (
	"context"
	"fmt"
	"time"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/ports"
	"github.com/flapboard/contentcore/pkg/tierselect"
)

// TierSelector picks a (provider, model) pair and a cross-provider
// alternate. Satisfied by *tierselect.Selector.
type TierSelector interface {
	Select(tier model.ModelTier) (tierselect.Selection, bool)
	GetAlternate(current tierselect.Selection) (tierselect.Selection, bool)
}

// FailoverRecorder observes a cross-provider failover. Satisfied by
// *metrics.Metrics; nil is a silent no-op.
type FailoverRecorder interface {
	RecordFailover(fromProvider string)
}

// Generator adapts an AI vendor provider pool to model.Generator.
type Generator struct {
	tier      model.ModelTier
	selector  TierSelector
	providers map[string]ports.AIProvider
	maxTokens int
	timeout   time.Duration
	failovers FailoverRecorder
}

// New builds a Generator for tier, dispatching through providers keyed by
// ports.AIProvider.Name(). failovers may be nil.
func New(tier model.ModelTier, selector TierSelector, providers map[string]ports.AIProvider, maxTokens int, timeout time.Duration, failovers FailoverRecorder) *Generator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{tier: tier, selector: selector, providers: providers, maxTokens: maxTokens, timeout: timeout, failovers: failovers}
}

var _ model.Generator = (*Generator)(nil)

// Validate confirms a provider exists for this generator's tier.
func (g *Generator) Validate() error {
	sel, ok := g.selector.Select(g.tier)
	if !ok {
		return apperrors.New(apperrors.KindInvalidRequest, "aigen.Validate", "no provider available for tier")
	}
	if _, ok := g.providers[sel.Provider]; !ok {
		return apperrors.New(apperrors.KindInvalidRequest, "aigen.Validate", fmt.Sprintf("no adapter registered for provider %q", sel.Provider))
	}
	return nil
}

// Generate resolves a provider/model for this generator's tier and asks it
// to complete ctxData.Personality (a fully-resolved prompt; template
// resolution happens upstream, out of this core's scope). ctxData.PromptsOnly
// short-circuits the provider call entirely, returning the resolved prompt
// text as-is — used to preview what would be sent without spending tokens.
func (g *Generator) Generate(ctxData model.GenerationContext) (*model.GeneratedContent, error) {
	if ctxData.PromptsOnly {
		return &model.GeneratedContent{Text: ctxData.Personality, OutputMode: model.OutputText}, nil
	}

	sel, ok := g.selector.Select(g.tier)
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "aigen.Generate", "no provider available for tier")
	}

	content, err := g.complete(sel, ctxData)
	if err == nil {
		return content, nil
	}
	if !apperrors.IsRetryable(err) {
		return nil, err
	}

	alt, ok := g.selector.GetAlternate(sel)
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindNoAlternate, "aigen.Generate", "primary provider failed, no alternate configured", err)
	}
	if g.failovers != nil {
		g.failovers.RecordFailover(sel.Provider)
	}
	return g.complete(alt, ctxData)
}

func (g *Generator) complete(sel tierselect.Selection, ctxData model.GenerationContext) (*model.GeneratedContent, error) {
	provider, ok := g.providers[sel.Provider]
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "aigen.complete", fmt.Sprintf("no adapter registered for provider %q", sel.Provider))
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	resp, err := provider.Generate(ctx, ports.GenerateRequest{
		Model:     sel.Model,
		User:      ctxData.Personality,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &model.GeneratedContent{
		Text:       resp.Text,
		OutputMode: model.OutputText,
		Metadata: map[string]any{
			"provider":      sel.Provider,
			"model":         sel.Model,
			"tokens_used":   resp.TokensUsed,
			"finish_reason": resp.FinishReason,
		},
	}, nil
}
