// Package orchestrator runs the end-to-end content pipeline: master gate,
// pre-fetch, selection, generation with retry and fallback, frame decoration,
// transport, and cache bookkeeping. It owns the single mutable cache cell and
// serializes pipeline runs with one mutex around the whole run, not
// fine-grained per-stage locks.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/decorator"
	"github.com/flapboard/contentcore/pkg/metrics"
	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/ports"
	"github.com/flapboard/contentcore/pkg/retryengine"
	"github.com/flapboard/contentcore/pkg/selector"
	"github.com/flapboard/contentcore/pkg/throttlelog"
)

// MasterCircuitID is the well-known manual breaker gating every refresh.
const MasterCircuitID = "MASTER"

// BreakerChecker is the subset of *breaker.Service the orchestrator needs to
// gate a run and record provider outcomes.
type BreakerChecker interface {
	IsCircuitOpen(id string) bool
	RecordSuccess(id string) uint64
	RecordFailure(id string) uint64
}

// DataProvider fetches pre-fetch companion data for major refreshes.
// Satisfied by *dataprovider.Provider.
type DataProvider interface {
	FetchData(ctx context.Context) *model.ContentData
}

// Registry is the subset of *registry.Registry needed to find the static
// fallback generator when every higher tier fails.
type Registry interface {
	ByPriority(p model.Priority) []*model.GeneratorRegistration
}

// Selector chooses a generator for a refresh. Satisfied by
// *selector.Selector.
type Selector interface {
	Select(ctxData model.GenerationContext, eventPattern string) *model.GeneratorRegistration
}

// RetryEngine runs a generator with bounded retry and validation. Satisfied
// by *retryengine.Engine.
type RetryEngine interface {
	GenerateWithRetry(reg *model.GeneratorRegistration, ctxData model.GenerationContext, providerCircuitID string, validate retryengine.Validator) (*model.GeneratedContent, error)
}

// Orchestrator runs generateAndSend. Zero value is not usable; build with
// New.
type Orchestrator struct {
	registry Registry
	selector Selector
	breakers BreakerChecker
	data     DataProvider
	retry    RetryEngine
	history  *selector.History
	transport ports.DisplayTransport
	store     ports.PersistenceStore
	log       *throttlelog.Logger
	metrics   *metrics.Metrics

	mu    sync.Mutex
	cache *model.GeneratedContent
}

// New builds an Orchestrator. store may be nil (audit recording is skipped).
// m may be nil (metrics are skipped).
func New(
	registry Registry,
	sel Selector,
	breakers BreakerChecker,
	data DataProvider,
	retry RetryEngine,
	history *selector.History,
	transport ports.DisplayTransport,
	store ports.PersistenceStore,
	log *throttlelog.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		selector:  sel,
		breakers:  breakers,
		data:      data,
		retry:     retry,
		history:   history,
		transport: transport,
		store:     store,
		log:       log,
		metrics:   m,
	}
}

// GenerateAndSend runs one full pipeline pass for ctxData.
func (o *Orchestrator) GenerateAndSend(ctx context.Context, ctxData model.GenerationContext, eventPattern string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	updateType := string(ctxData.UpdateType)

	if o.breakers != nil && o.breakers.IsCircuitOpen(MasterCircuitID) {
		o.log.Warn("orchestrator.master_off", "master circuit open, refresh skipped")
		o.observe(updateType, "master_off", start)
		return nil
	}

	var err error
	if ctxData.UpdateType == model.UpdateMajor {
		if o.data != nil {
			ctxData.Data = o.data.FetchData(ctx)
		}
		err = o.runMajor(ctx, ctxData, eventPattern)
	} else {
		err = o.runMinor(ctx, ctxData)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.observe(updateType, outcome, start)
	return err
}

func (o *Orchestrator) observe(updateType, outcome string, start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveRefresh(updateType, outcome, time.Since(start))
	}
}

func (o *Orchestrator) runMinor(ctx context.Context, ctxData model.GenerationContext) error {
	if o.cache == nil {
		return apperrors.Wrap(apperrors.KindTransient, "orchestrator.runMinor", "no cached content to re-decorate", apperrors.ErrNoCachedContent)
	}

	switch o.cache.OutputMode {
	case model.OutputLayout:
		return o.transport.SendLayout(ctx, o.cache.Layout.CharacterCodes)
	default:
		frame := decorator.Decorate(o.cache.Text, ctxData.Timestamp, ctxData.Data, nil)
		if err := o.transport.SendLayout(ctx, frame.Layout); err != nil {
			return err
		}
		if len(frame.Warnings) > 0 {
			o.log.Warn("orchestrator.minor_decorate_warnings", "minor refresh decoration produced warnings",
				zap.Strings("warnings", frame.Warnings))
		}
		return nil
	}
}

func (o *Orchestrator) runMajor(ctx context.Context, ctxData model.GenerationContext, eventPattern string) error {
	reg := o.selector.Select(ctxData, eventPattern)
	if reg == nil {
		return apperrors.New(apperrors.KindTransient, "orchestrator.runMajor", "no eligible generator")
	}

	content, providerCircuitID, genErr := o.generate(reg, ctxData)
	o.recordAttempt(reg.ID, genErr)
	if genErr != nil {
		o.log.Warn("orchestrator.generate_failed", "primary selection failed, falling back to static content",
			zap.String("generator_id", reg.ID), zap.Error(genErr))

		fallback := o.staticFallback()
		if fallback == nil {
			return apperrors.Wrap(apperrors.KindTransient, "orchestrator.runMajor", "no fallback generator registered", genErr)
		}
		reg = fallback
		content, providerCircuitID, genErr = o.generate(reg, ctxData)
		o.recordAttempt(reg.ID, genErr)
		if genErr != nil {
			o.log.Error("orchestrator.fallback_failed", "static fallback generator also failed", zap.Error(genErr))
			return genErr
		}
	}

	if content.Metadata == nil {
		content.Metadata = make(map[string]any)
	}
	content.Metadata["refresh_id"] = uuid.NewString()

	if err := o.decorateAndSend(ctx, reg, content, ctxData); err != nil {
		return err
	}

	o.cache = content
	if o.metrics != nil {
		o.metrics.CacheWrites.Inc()
	}
	o.history.RecordUse(reg.ID, ctxData.Timestamp)
	if o.breakers != nil && providerCircuitID != "" {
		o.breakers.RecordSuccess(providerCircuitID)
	}
	if o.store != nil {
		if err := o.store.RecordAudit(ctx, reg.ID, content); err != nil {
			o.log.Warn("orchestrator.audit_failed", "failed to record content audit", zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) recordAttempt(generatorID string, err error) {
	if o.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.metrics.GeneratorAttempts.WithLabelValues(generatorID, result).Inc()
}

func (o *Orchestrator) generate(reg *model.GeneratorRegistration, ctxData model.GenerationContext) (*model.GeneratedContent, string, error) {
	providerCircuitID := "provider:" + string(reg.ModelTier)
	content, err := o.retry.GenerateWithRetry(reg, ctxData, providerCircuitID, retryengine.ValidateOutput(model.GridCols*(model.GridRows-1)))
	return content, providerCircuitID, err
}

func (o *Orchestrator) decorateAndSend(ctx context.Context, reg *model.GeneratorRegistration, content *model.GeneratedContent, ctxData model.GenerationContext) error {
	if content.OutputMode == model.OutputLayout {
		return o.transport.SendLayout(ctx, content.Layout.CharacterCodes)
	}
	if !reg.ApplyFrame {
		return o.transport.SendText(ctx, content.Text)
	}

	var opts *model.FormatOptions
	if reg.FormatOptions != nil {
		opts = reg.FormatOptions
	}
	frame := decorator.Decorate(content.Text, ctxData.Timestamp, ctxData.Data, opts)
	if len(frame.Warnings) > 0 {
		o.log.Warn("orchestrator.decorate_warnings", "decoration produced warnings",
			zap.String("generator_id", reg.ID), zap.Strings("warnings", frame.Warnings))
	}
	return o.transport.SendLayout(ctx, frame.Layout)
}

func (o *Orchestrator) staticFallback() *model.GeneratorRegistration {
	for _, reg := range o.registry.ByPriority(model.PriorityP3) {
		return reg
	}
	return nil
}

// GetCachedContent returns the last cached major result, or nil.
func (o *Orchestrator) GetCachedContent() *model.GeneratedContent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cache
}

// ClearCache empties the cache.
func (o *Orchestrator) ClearCache() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cache = nil
}
