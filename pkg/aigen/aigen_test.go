package aigen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/ports"
	"github.com/flapboard/contentcore/pkg/tierselect"
)

type fakeProvider struct {
	name    string
	text    string
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ports.GenerateResponse{Text: f.text, Model: req.Model, TokensUsed: 10, FinishReason: "stop"}, nil
}

func (f *fakeProvider) ValidateConnection(ctx context.Context) bool { return true }

type fakeFailoverRecorder struct {
	recorded []string
}

func (f *fakeFailoverRecorder) RecordFailover(fromProvider string) {
	f.recorded = append(f.recorded, fromProvider)
}

func newTestSelector() *tierselect.Selector {
	table := tierselect.ModelTable{
		"anthropic": {model.TierMedium: "claude"},
		"openai":    {model.TierMedium: "gpt"},
	}
	return tierselect.New("anthropic", []string{"anthropic", "openai"}, table)
}

func TestGenerate_PromptsOnlyShortCircuitsProvider(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", text: "should not be used"}
	g := New(model.TierMedium, newTestSelector(), map[string]ports.AIProvider{"anthropic": primary, "openai": &fakeProvider{name: "openai"}}, 0, 0, nil)

	content, err := g.Generate(model.GenerationContext{PromptsOnly: true, Personality: "resolved prompt text"})
	require.NoError(t, err)
	assert.Equal(t, "resolved prompt text", content.Text)
	assert.Equal(t, 0, primary.calls, "PromptsOnly must never invoke a provider")
}

func TestGenerate_HappyPathUsesPrimaryProvider(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", text: "hello from claude"}
	providers := map[string]ports.AIProvider{"anthropic": primary, "openai": &fakeProvider{name: "openai"}}
	g := New(model.TierMedium, newTestSelector(), providers, 0, 0, nil)

	content, err := g.Generate(model.GenerationContext{Personality: "say hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", content.Text)
	assert.Equal(t, "anthropic", content.Metadata["provider"])
	assert.Equal(t, 1, primary.calls)
}

func TestGenerate_RetryableErrorFailsOverToAlternateProvider(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: apperrors.New(apperrors.KindTransient, "test", "rate limited")}
	alt := &fakeProvider{name: "openai", text: "hello from gpt"}
	providers := map[string]ports.AIProvider{"anthropic": primary, "openai": alt}
	recorder := &fakeFailoverRecorder{}
	g := New(model.TierMedium, newTestSelector(), providers, 0, 0, recorder)

	content, err := g.Generate(model.GenerationContext{Personality: "say hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello from gpt", content.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, alt.calls)
	assert.Equal(t, []string{"anthropic"}, recorder.recorded)
}

func TestGenerate_NonRetryableErrorNeverFailsOver(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: apperrors.New(apperrors.KindInvalidRequest, "test", "bad request")}
	alt := &fakeProvider{name: "openai", text: "should not run"}
	providers := map[string]ports.AIProvider{"anthropic": primary, "openai": alt}
	g := New(model.TierMedium, newTestSelector(), providers, 0, 0, nil)

	_, err := g.Generate(model.GenerationContext{Personality: "say hi"})
	require.Error(t, err)
	assert.Equal(t, 0, alt.calls)
}

func TestGenerate_NoAlternateConfiguredWrapsError(t *testing.T) {
	table := tierselect.ModelTable{"anthropic": {model.TierMedium: "claude"}}
	sel := tierselect.New("anthropic", []string{"anthropic"}, table)
	primary := &fakeProvider{name: "anthropic", err: apperrors.New(apperrors.KindTransient, "test", "down")}
	g := New(model.TierMedium, sel, map[string]ports.AIProvider{"anthropic": primary}, 0, 0, nil)

	_, err := g.Generate(model.GenerationContext{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNoAlternate, apperrors.KindOf(err))
}

func TestValidate_FailsWhenNoAdapterRegisteredForSelectedProvider(t *testing.T) {
	g := New(model.TierMedium, newTestSelector(), map[string]ports.AIProvider{"openai": &fakeProvider{name: "openai"}}, 0, 0, nil)
	err := g.Validate()
	assert.Error(t, err, "selector prefers anthropic but no anthropic adapter is registered")
}

func TestValidate_PassesWhenAdapterPresent(t *testing.T) {
	g := New(model.TierMedium, newTestSelector(), map[string]ports.AIProvider{"anthropic": &fakeProvider{name: "anthropic"}}, 0, 0, nil)
	assert.NoError(t, g.Validate())
}

func TestNew_AppliesDefaults(t *testing.T) {
	g := New(model.TierLight, newTestSelector(), nil, 0, 0, nil)
	assert.Equal(t, 1024, g.maxTokens)
	assert.Equal(t, 30*time.Second, g.timeout)
}
