// Package retryengine implements bounded retry with per-call policy and
// output validation: exponential backoff with jitter and explicit
// retryable/terminal classification, applied to generator invocations.
package retryengine

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
)

// BreakerRecorder records per-attempt outcomes against a provider breaker.
// Satisfied by *breaker.Service.
type BreakerRecorder interface {
	RecordFailure(id string) uint64
	RecordSuccess(id string) uint64
}

// Config tunes backoff behavior.
type Config struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterFactor      float64
}

// DefaultConfig returns the spec's default of 3 attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.2,
	}
}

// Engine runs a generator with retry, failover being the generator's own
// concern via tierselect — the engine itself only retries and validates.
type Engine struct {
	cfg     Config
	breaker BreakerRecorder
	rand    *rand.Rand
	mu      sync.Mutex
}

// New builds an Engine.
func New(cfg Config, breaker BreakerRecorder) *Engine {
	return &Engine{cfg: cfg, breaker: breaker, rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Validator checks a generator's output shape, independent of provider.
type Validator func(*model.GeneratedContent) error

// GenerateWithRetry invokes registration.Generator.Generate up to
// cfg.MaxAttempts times, validating each output and recording the result
// against the provider breaker named by providerCircuitID.
func (e *Engine) GenerateWithRetry(
	reg *model.GeneratorRegistration,
	ctxData model.GenerationContext,
	providerCircuitID string,
	validate Validator,
) (*model.GeneratedContent, error) {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(e.delay(attempt))
		}

		content, err := reg.Generator.Generate(ctxData)
		if err == nil {
			if verr := validate(content); verr != nil {
				err = apperrors.Wrap(apperrors.KindValidationFailed, "retryengine.validate", "output failed validation", verr)
			}
		}

		if err == nil {
			if e.breaker != nil && providerCircuitID != "" {
				e.breaker.RecordSuccess(providerCircuitID)
			}
			return content, nil
		}

		lastErr = err
		if e.breaker != nil && providerCircuitID != "" {
			e.breaker.RecordFailure(providerCircuitID)
		}

		if !apperrors.IsRetryable(err) {
			break
		}
	}

	return nil, apperrors.Wrap(apperrors.KindTransient, "retryengine.GenerateWithRetry", "generator exhausted retries", lastErr)
}

func (e *Engine) delay(attempt int) time.Duration {
	base := float64(e.cfg.BaseDelay) * math.Pow(e.cfg.BackoffMultiplier, float64(attempt-2))
	if max := float64(e.cfg.MaxDelay); base > max {
		base = max
	}

	e.mu.Lock()
	jitter := e.rand.Float64() * e.cfg.JitterFactor * base
	e.mu.Unlock()

	return time.Duration(base + jitter)
}

// ValidateOutput is the default Validator: text-mode output must be
// non-empty; layout-mode output must carry a populated layout.
func ValidateOutput(maxChars int) Validator {
	return func(c *model.GeneratedContent) error {
		if c == nil {
			return apperrors.New(apperrors.KindValidationFailed, "retryengine.ValidateOutput", "nil content")
		}
		switch c.OutputMode {
		case model.OutputLayout:
			if c.Layout == nil {
				return apperrors.New(apperrors.KindValidationFailed, "retryengine.ValidateOutput", "layout mode missing layout")
			}
			return nil
		case model.OutputText:
			if c.Text == "" {
				return apperrors.New(apperrors.KindValidationFailed, "retryengine.ValidateOutput", "text mode produced empty text")
			}
			if maxChars > 0 && len(c.Text) > maxChars {
				return apperrors.New(apperrors.KindValidationFailed, "retryengine.ValidateOutput", "text exceeds device capacity")
			}
			return nil
		default:
			return apperrors.New(apperrors.KindValidationFailed, "retryengine.ValidateOutput", "unknown output mode")
		}
	}
}
