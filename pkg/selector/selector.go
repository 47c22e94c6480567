// Package selector implements the Content Selector: a pure, side-effect-free
// function that picks the single generator to run for one refresh, given the
// registry, the triggering event, and rotation history.
package selector

import (
	"time"

	"github.com/flapboard/contentcore/pkg/model"
)

// CircuitChecker reports whether a named circuit is currently open
// (blocking). Satisfied by *breaker.Service.
type CircuitChecker interface {
	IsCircuitOpen(id string) bool
}

// Registry is the subset of *registry.Registry the selector needs.
type Registry interface {
	ByPriority(p model.Priority) []*model.GeneratorRegistration
}

// History tracks per-generator last-used timestamps, consulted by the P2
// rotation (oldest wins) and the P1 "not recently used" filter. The
// orchestrator records a selection here only after a successful run —
// selection itself is side-effect free.
type History struct {
	lastUsed map[string]time.Time
}

// NewHistory builds an empty rotation history.
func NewHistory() *History {
	return &History{lastUsed: make(map[string]time.Time)}
}

// RecordUse stamps id as used at ts.
func (h *History) RecordUse(id string, ts time.Time) {
	h.lastUsed[id] = ts
}

func (h *History) lastUsedAt(id string) time.Time {
	return h.lastUsed[id]
}

// Selector chooses a generator for a refresh.
type Selector struct {
	registry Registry
	breakers CircuitChecker
	history  *History
}

// New builds a Selector.
func New(registry Registry, breakers CircuitChecker, history *History) *Selector {
	if history == nil {
		history = NewHistory()
	}
	return &Selector{registry: registry, breakers: breakers, history: history}
}

// Select implements the spec's priority cascade for one GenerationContext.
// eventPattern is the triggering automation event's pattern, empty for
// scheduler-driven (non-reactive) refreshes.
func (s *Selector) Select(ctxData model.GenerationContext, eventPattern string) *model.GeneratorRegistration {
	if eventPattern != "" {
		if reg := s.pickReactive(eventPattern); reg != nil {
			return reg
		}
	}
	if reg := s.pickScheduled(ctxData.Timestamp); reg != nil {
		return reg
	}
	if reg := s.pickRotating(); reg != nil {
		return reg
	}
	return s.pickFirst(model.PriorityP3)
}

// pickReactive implements tier P0: first registration order match wins.
func (s *Selector) pickReactive(eventPattern string) *model.GeneratorRegistration {
	for _, reg := range s.registry.ByPriority(model.PriorityP0) {
		if reg.EventPattern == eventPattern && s.eligible(reg) {
			return reg
		}
	}
	return nil
}

// pickScheduled implements tier P1: eligible if its schedule window contains
// ts (or it declares no window, meaning always-on) and it is not the single
// most-recently-used P1 candidate when an alternative is available.
func (s *Selector) pickScheduled(ts time.Time) *model.GeneratorRegistration {
	pool := s.registry.ByPriority(model.PriorityP1)
	var candidates []*model.GeneratorRegistration
	for _, reg := range pool {
		if reg.Schedule != nil && !reg.Schedule.Contains(ts) {
			continue
		}
		if !s.eligible(reg) {
			continue
		}
		candidates = append(candidates, reg)
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	best := candidates[0]
	bestUsed := s.history.lastUsedAt(best.ID)
	for _, reg := range candidates[1:] {
		used := s.history.lastUsedAt(reg.ID)
		if used.Before(bestUsed) {
			best, bestUsed = reg, used
		}
	}
	return best
}

// pickRotating implements tier P2: the generator with the oldest last-used
// timestamp wins, ties broken by registration order.
func (s *Selector) pickRotating() *model.GeneratorRegistration {
	pool := s.registry.ByPriority(model.PriorityP2)

	var best *model.GeneratorRegistration
	var bestUsed time.Time
	for _, reg := range pool {
		if !s.eligible(reg) {
			continue
		}
		used := s.history.lastUsedAt(reg.ID)
		if best == nil || used.Before(bestUsed) {
			best, bestUsed = reg, used
		}
	}
	return best
}

func (s *Selector) pickFirst(p model.Priority) *model.GeneratorRegistration {
	for _, reg := range s.registry.ByPriority(p) {
		if s.eligible(reg) {
			return reg
		}
	}
	return nil
}

// eligible applies the spec's circuit filter: a manual breaker associated
// with the generator (e.g. sleep-mode) and the generator's provider breaker
// must both be on.
func (s *Selector) eligible(reg *model.GeneratorRegistration) bool {
	if s.breakers == nil {
		return true
	}
	if reg.AssociatedCircuit != "" && s.breakers.IsCircuitOpen(reg.AssociatedCircuit) {
		return false
	}
	return !s.breakers.IsCircuitOpen(providerCircuitID(reg))
}

// providerCircuitID derives the provider breaker id a generator's model tier
// maps to. Generators declare their own tier; the tier-to-provider mapping
// lives in tierselect, so the selector only needs a stable per-tier id to ask
// the breaker service about.
func providerCircuitID(reg *model.GeneratorRegistration) string {
	return "provider:" + string(reg.ModelTier)
}
