package retryengine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	results []struct {
		content *model.GeneratedContent
		err     error
	}
	calls int
}

func (g *scriptedGenerator) Generate(model.GenerationContext) (*model.GeneratedContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.results[g.calls]
	g.calls++
	return r.content, r.err
}

func (g *scriptedGenerator) Validate() error { return nil }

func ok(text string) *model.GeneratedContent {
	return &model.GeneratedContent{Text: text, OutputMode: model.OutputText}
}

type fakeBreaker struct {
	mu       sync.Mutex
	failures map[string]int
	successes map[string]int
}

func newFakeBreaker() *fakeBreaker {
	return &fakeBreaker{failures: map[string]int{}, successes: map[string]int{}}
}

func (f *fakeBreaker) RecordFailure(id string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id]++
	return uint64(f.failures[id])
}

func (f *fakeBreaker) RecordSuccess(id string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes[id]++
	return uint64(f.successes[id])
}

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2, JitterFactor: 0}
}

func TestGenerateWithRetry_SucceedsOnFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{results: []struct {
		content *model.GeneratedContent
		err     error
	}{{content: ok("hello"), err: nil}}}

	breaker := newFakeBreaker()
	e := New(fastConfig(), breaker)
	reg := &model.GeneratorRegistration{ID: "g", Generator: gen}

	content, err := e.GenerateWithRetry(reg, model.GenerationContext{}, "provider:light", ValidateOutput(0))
	require.NoError(t, err)
	assert.Equal(t, "hello", content.Text)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, breaker.successes["provider:light"])
}

func TestGenerateWithRetry_RetriesRetryableErrorThenSucceeds(t *testing.T) {
	transient := apperrors.New(apperrors.KindTransient, "op", "flaky")
	gen := &scriptedGenerator{results: []struct {
		content *model.GeneratedContent
		err     error
	}{
		{err: transient},
		{content: ok("recovered"), err: nil},
	}}

	breaker := newFakeBreaker()
	e := New(fastConfig(), breaker)
	reg := &model.GeneratorRegistration{ID: "g", Generator: gen}

	content, err := e.GenerateWithRetry(reg, model.GenerationContext{}, "provider:light", ValidateOutput(0))
	require.NoError(t, err)
	assert.Equal(t, "recovered", content.Text)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 1, breaker.failures["provider:light"])
	assert.Equal(t, 1, breaker.successes["provider:light"])
}

func TestGenerateWithRetry_NonRetryableErrorStopsImmediately(t *testing.T) {
	fatal := apperrors.New(apperrors.KindInvalidRequest, "op", "bad request")
	gen := &scriptedGenerator{results: []struct {
		content *model.GeneratedContent
		err     error
	}{{err: fatal}}}

	e := New(fastConfig(), nil)
	reg := &model.GeneratorRegistration{ID: "g", Generator: gen}

	_, err := e.GenerateWithRetry(reg, model.GenerationContext{}, "provider:light", ValidateOutput(0))
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls, "a non-retryable error must not be retried")
}

func TestGenerateWithRetry_ExhaustsAllAttempts(t *testing.T) {
	transient := apperrors.New(apperrors.KindTransient, "op", "flaky")
	gen := &scriptedGenerator{results: []struct {
		content *model.GeneratedContent
		err     error
	}{{err: transient}, {err: transient}, {err: transient}}}

	breaker := newFakeBreaker()
	cfg := fastConfig()
	e := New(cfg, breaker)
	reg := &model.GeneratorRegistration{ID: "g", Generator: gen}

	_, err := e.GenerateWithRetry(reg, model.GenerationContext{}, "provider:light", ValidateOutput(0))
	require.Error(t, err)
	assert.Equal(t, cfg.MaxAttempts, gen.calls)
	assert.Equal(t, cfg.MaxAttempts, breaker.failures["provider:light"])
}

func TestGenerateWithRetry_ValidationFailureIsRetried(t *testing.T) {
	gen := &scriptedGenerator{results: []struct {
		content *model.GeneratedContent
		err     error
	}{
		{content: &model.GeneratedContent{OutputMode: model.OutputText, Text: ""}},
		{content: ok("valid now")},
	}}

	e := New(fastConfig(), nil)
	reg := &model.GeneratorRegistration{ID: "g", Generator: gen}

	content, err := e.GenerateWithRetry(reg, model.GenerationContext{}, "", ValidateOutput(0))
	require.NoError(t, err)
	assert.Equal(t, "valid now", content.Text)
	assert.Equal(t, 2, gen.calls)
}

func TestValidateOutput_RejectsOversizedText(t *testing.T) {
	v := ValidateOutput(5)
	err := v(&model.GeneratedContent{OutputMode: model.OutputText, Text: "too long"})
	assert.Error(t, err)
}

func TestValidateOutput_AcceptsLayoutModeWithLayout(t *testing.T) {
	v := ValidateOutput(0)
	err := v(&model.GeneratedContent{OutputMode: model.OutputLayout, Layout: &model.Layout{}})
	assert.NoError(t, err)
}

func TestValidateOutput_RejectsLayoutModeWithoutLayout(t *testing.T) {
	v := ValidateOutput(0)
	err := v(&model.GeneratedContent{OutputMode: model.OutputLayout})
	assert.Error(t, err)
}

func TestValidateOutput_RejectsNilContent(t *testing.T) {
	v := ValidateOutput(0)
	assert.Error(t, v(nil))
}
