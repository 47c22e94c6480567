// Package breaker implements the Circuit Breaker Service: operator-mutated
// manual breakers (MASTER, SLEEP_MODE, ...) and automatically-mutated
// provider breakers, both persisted so state survives restarts.
//
// Provider breakers are driven internally by sony/gobreaker, which supplies
// the closed/open/half-open state machine and consecutive-failure counting;
// this package adds the spec's persistence and manual/provider distinction
// that gobreaker itself (in-memory only) does not provide.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/throttlelog"
)

// errRecordedFailure drives gobreaker's internal counters when recordFailure
// is called directly (as opposed to through Execute around a real call).
var errRecordedFailure = errors.New("breaker: recorded failure")

// Notifier is notified of operator actions and automatic trips. Optional —
// a nil Notifier is a silent no-op.
type Notifier interface {
	NotifyCircuitTripped(circuitID string, failureCount uint64)
	NotifyCircuitChanged(circuitID string, state model.CircuitState)
}

type providerCircuit struct {
	mu  sync.Mutex
	cb  *gobreaker.CircuitBreaker
	def model.CircuitDefinition

	// restoredOpen tracks a persisted "off" state from a prior process that
	// gobreaker's fresh, always-closed breaker cannot represent on its own.
	// It is cleared the moment gobreaker makes its own state decision.
	restoredOpen bool
}

// Service is the Circuit Breaker Service. All methods handle store errors
// internally: reads fail open (conservative defaults), writes are dropped
// and logged at warn.
type Service struct {
	store    Store
	log      *throttlelog.Logger
	notifier Notifier

	mu       sync.RWMutex
	manual   map[string]*model.CircuitBreakerState
	provider map[string]*providerCircuit
}

// Store is the persistence surface the breaker service needs; satisfied by
// ports.PersistenceStore.
type Store interface {
	LoadCircuitState(ctx context.Context, circuitID string) (*model.CircuitBreakerState, error)
	SaveCircuitState(ctx context.Context, state *model.CircuitBreakerState) error
	InitCircuitState(ctx context.Context, def model.CircuitDefinition) error
}

// New builds a Service. notifier may be nil.
func New(store Store, log *throttlelog.Logger, notifier Notifier) *Service {
	return &Service{
		store:    store,
		log:      log,
		notifier: notifier,
		manual:   make(map[string]*model.CircuitBreakerState),
		provider: make(map[string]*providerCircuit),
	}
}

// InitializeCircuit is an idempotent insert keyed on circuitId — it must
// never overwrite existing state, stored or in-memory.
func (s *Service) InitializeCircuit(ctx context.Context, def model.CircuitDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.store.LoadCircuitState(ctx, def.CircuitID); err == nil && existing != nil {
		s.hydrate(def, existing)
		return
	}

	if err := s.store.InitCircuitState(ctx, def); err != nil {
		s.log.Warn("breaker.init_store_error", "circuit breaker store unavailable on init",
		)
	}

	now := time.Now()
	state := &model.CircuitBreakerState{
		CircuitID:        def.CircuitID,
		CircuitType:      def.CircuitType,
		State:            def.DefaultState,
		DefaultState:     def.DefaultState,
		FailureThreshold: def.FailureThreshold,
		StateChangedAt:   now,
	}
	s.hydrate(def, state)
}

func (s *Service) hydrate(def model.CircuitDefinition, state *model.CircuitBreakerState) {
	if def.CircuitType == model.CircuitManual {
		if _, exists := s.manual[def.CircuitID]; !exists {
			s.manual[def.CircuitID] = state
		}
		return
	}

	if _, exists := s.provider[def.CircuitID]; exists {
		return
	}
	pc := s.newProviderCircuit(def, state)
	pc.restoredOpen = state.State == model.CircuitOff
	s.provider[def.CircuitID] = pc
}

func (s *Service) newProviderCircuit(def model.CircuitDefinition, state *model.CircuitBreakerState) *providerCircuit {
	pc := &providerCircuit{def: def}
	pc.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        def.CircuitID,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return uint64(counts.ConsecutiveFailures) >= def.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.onProviderStateChange(name, to)
		},
	})
	return pc
}

func (s *Service) onProviderStateChange(circuitID string, to gobreaker.State) {
	st := fromGobreakerState(to)
	ctx := context.Background()

	s.mu.RLock()
	pc := s.provider[circuitID]
	s.mu.RUnlock()
	if pc == nil {
		return
	}
	pc.mu.Lock()
	pc.restoredOpen = false
	pc.mu.Unlock()

	counts := pc.cb.Counts()
	now := time.Now()
	state := &model.CircuitBreakerState{
		CircuitID:        circuitID,
		CircuitType:      model.CircuitProvider,
		State:            st,
		DefaultState:     pc.def.DefaultState,
		FailureThreshold: pc.def.FailureThreshold,
		FailureCount:     uint64(counts.ConsecutiveFailures),
		SuccessCount:     uint64(counts.ConsecutiveSuccesses),
		StateChangedAt:   now,
	}
	if err := s.store.SaveCircuitState(ctx, state); err != nil {
		s.log.Warn("breaker.save_store_error", "failed to persist circuit breaker state")
	}

	if st == model.CircuitOff && s.notifier != nil {
		s.notifier.NotifyCircuitTripped(circuitID, state.FailureCount)
	}
}

func fromGobreakerState(st gobreaker.State) model.CircuitState {
	switch st {
	case gobreaker.StateOpen:
		return model.CircuitOff
	case gobreaker.StateHalfOpen:
		return model.CircuitHalfOpen
	default:
		return model.CircuitOn
	}
}

// IsCircuitOpen returns true iff the stored state is off. On any internal
// error it fails open (returns false) so generation is never blocked by a
// persistence outage.
func (s *Service) IsCircuitOpen(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.manual[id]; ok {
		return m.State == model.CircuitOff
	}
	if pc, ok := s.provider[id]; ok {
		pc.mu.Lock()
		restored := pc.restoredOpen
		pc.mu.Unlock()
		return restored || pc.cb.State() == gobreaker.StateOpen
	}
	return false
}

// SetCircuitState writes a new state for a manual breaker and stamps
// StateChangedAt. Calling it on a provider breaker is a no-op: provider
// breakers are only mutated by RecordFailure/RecordSuccess/ResetProvider.
func (s *Service) SetCircuitState(ctx context.Context, id string, state model.CircuitState) {
	s.mu.Lock()
	m, ok := s.manual[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	m.State = state
	m.StateChangedAt = time.Now()
	snapshot := *m
	s.mu.Unlock()

	if err := s.store.SaveCircuitState(ctx, &snapshot); err != nil {
		s.log.Warn("breaker.save_store_error", "failed to persist manual circuit state")
	}
	if s.notifier != nil {
		s.notifier.NotifyCircuitChanged(id, state)
	}
}

// RecordFailure increments the provider breaker's failure count and returns
// the new consecutive-failure count. No-op (returns 0) for unknown or
// manual circuit ids.
func (s *Service) RecordFailure(id string) uint64 {
	s.mu.RLock()
	pc, ok := s.provider[id]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	pc.mu.Lock()
	_, _ = pc.cb.Execute(func() (any, error) { return nil, errRecordedFailure })
	pc.mu.Unlock()

	return uint64(pc.cb.Counts().ConsecutiveFailures)
}

// RecordSuccess increments the provider breaker's success count and returns
// the new consecutive-success count.
func (s *Service) RecordSuccess(id string) uint64 {
	s.mu.RLock()
	pc, ok := s.provider[id]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	pc.mu.Lock()
	_, _ = pc.cb.Execute(func() (any, error) { return nil, nil })
	pc.mu.Unlock()

	counts := pc.cb.Counts()
	return uint64(counts.ConsecutiveSuccesses)
}

// ResetProviderCircuit forces a provider breaker back to on/closed with
// counters cleared, for operator-initiated recovery.
func (s *Service) ResetProviderCircuit(ctx context.Context, id string) {
	s.mu.Lock()
	pc, ok := s.provider[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	fresh := s.newProviderCircuit(pc.def, nil)
	s.provider[id] = fresh
	s.mu.Unlock()

	now := time.Now()
	state := &model.CircuitBreakerState{
		CircuitID:      id,
		CircuitType:    model.CircuitProvider,
		State:          model.CircuitOn,
		DefaultState:   pc.def.DefaultState,
		StateChangedAt: now,
	}
	if err := s.store.SaveCircuitState(ctx, state); err != nil {
		s.log.Warn("breaker.save_store_error", "failed to persist circuit reset")
	}
}

// GetState returns a snapshot of the breaker's current state, or nil if
// unknown.
func (s *Service) GetState(id string) *model.CircuitBreakerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m, ok := s.manual[id]; ok {
		snap := *m
		return &snap
	}
	if pc, ok := s.provider[id]; ok {
		counts := pc.cb.Counts()
		return &model.CircuitBreakerState{
			CircuitID:        id,
			CircuitType:      model.CircuitProvider,
			State:            fromGobreakerState(pc.cb.State()),
			DefaultState:     pc.def.DefaultState,
			FailureThreshold: pc.def.FailureThreshold,
			FailureCount:     uint64(counts.ConsecutiveFailures),
			SuccessCount:     uint64(counts.ConsecutiveSuccesses),
		}
	}
	return nil
}
