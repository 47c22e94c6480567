// Package events subscribes to automation-bus channels on startup and routes
// them to the orchestrator, trigger matcher, and circuit breaker service,
// using typed handler registration over this system's three fixed channels.
package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flapboard/contentcore/pkg/metrics"
	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/ports"
	"github.com/flapboard/contentcore/pkg/throttlelog"
	"github.com/flapboard/contentcore/pkg/trigger"
)

const (
	channelRefresh         = "vestaboard_refresh"
	channelStateChanged    = "state_changed"
	channelCircuitControl  = "vestaboard_circuit_control"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the handler needs.
type Orchestrator interface {
	GenerateAndSend(ctx context.Context, ctxData model.GenerationContext, eventPattern string) error
}

// TriggerMatcher is the subset of *trigger.Matcher the handler needs.
type TriggerMatcher interface {
	Match(entityID, newState string) trigger.MatchResult
}

// BreakerController is the subset of *breaker.Service the handler needs to
// dispatch operator circuit-control commands.
type BreakerController interface {
	IsCircuitOpen(id string) bool
	SetCircuitState(ctx context.Context, id string, state model.CircuitState)
	ResetProviderCircuit(ctx context.Context, id string)
}

// Handler subscribes to the automation bus and routes events.
type Handler struct {
	bus        ports.AutomationBus
	orch       Orchestrator
	matcher    TriggerMatcher
	breakers   BreakerController
	log        *throttlelog.Logger
	metrics    *metrics.Metrics

	unsubs []ports.Unsubscribe
}

// New builds a Handler. matcher may be swapped later via SetMatcher to
// support trigger config hot-reload. m may be nil.
func New(bus ports.AutomationBus, orch Orchestrator, matcher TriggerMatcher, breakers BreakerController, log *throttlelog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{bus: bus, orch: orch, matcher: matcher, breakers: breakers, log: log, metrics: m}
}

// SetMatcher atomically rebinds the trigger matcher, used when the trigger
// config hot-reloads.
func (h *Handler) SetMatcher(m TriggerMatcher) {
	h.matcher = m
}

// Start connects to the bus and subscribes to all three channels.
func (h *Handler) Start(ctx context.Context) error {
	if err := h.bus.Connect(ctx); err != nil {
		return fmt.Errorf("events: bus connect: %w", err)
	}

	subs := []struct {
		channel string
		cb      ports.BusEventCallback
	}{
		{channelRefresh, h.onRefresh},
		{channelStateChanged, h.onStateChanged},
		{channelCircuitControl, h.onCircuitControl},
	}

	for _, s := range subs {
		unsub, err := h.bus.SubscribeToEvents(s.channel, s.cb)
		if err != nil {
			h.Stop(ctx)
			return fmt.Errorf("events: subscribe %s: %w", s.channel, err)
		}
		h.unsubs = append(h.unsubs, unsub)
	}
	return nil
}

// Stop tears down subscriptions and disconnects the bus.
func (h *Handler) Stop(ctx context.Context) {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
	if err := h.bus.Disconnect(ctx); err != nil {
		h.log.Warn("events.disconnect_error", "bus disconnect failed", zap.Error(err))
	}
}

func (h *Handler) onRefresh(ctx context.Context, payload map[string]any) {
	if h.breakers != nil && h.breakers.IsCircuitOpen("MASTER") {
		h.log.Warn("events.master_off", "refresh event dropped, master circuit open")
		return
	}
	ctxData := model.GenerationContext{
		UpdateType: model.UpdateMajor,
		Timestamp:  time.Now(),
		EventData:  payload,
	}
	if err := h.orch.GenerateAndSend(ctx, ctxData, channelRefresh); err != nil {
		h.log.Error("events.refresh_failed", "refresh-triggered generation failed", zap.Error(err))
	}
}

func (h *Handler) onStateChanged(ctx context.Context, payload map[string]any) {
	entityID, _ := payload["entity_id"].(string)
	var newState string
	if ns, ok := payload["new_state"].(map[string]any); ok {
		newState, _ = ns["state"].(string)
	}
	if entityID == "" {
		return
	}

	result := h.matcher.Match(entityID, newState)
	if !result.Matched {
		return
	}
	if result.Debounced {
		if h.metrics != nil {
			h.metrics.TriggerDebounced.WithLabelValues(result.Trigger.Name).Inc()
		}
		return
	}
	if h.metrics != nil {
		h.metrics.TriggerMatches.WithLabelValues(result.Trigger.Name).Inc()
	}
	if h.breakers != nil && h.breakers.IsCircuitOpen("MASTER") {
		return
	}

	ctxData := model.GenerationContext{
		UpdateType: model.UpdateMajor,
		Timestamp:  time.Now(),
		EventData:  payload,
	}
	if err := h.orch.GenerateAndSend(ctx, ctxData, result.Trigger.Name); err != nil {
		h.log.Error("events.state_changed_failed", "trigger-matched generation failed", zap.Error(err))
	}
}

func (h *Handler) onCircuitControl(ctx context.Context, payload map[string]any) {
	circuitID, _ := payload["circuit_id"].(string)
	action, _ := payload["action"].(string)
	if circuitID == "" || action == "" {
		h.log.Warn("events.circuit_control_malformed", "circuit control event missing circuit_id or action")
		return
	}

	switch action {
	case "on":
		h.breakers.SetCircuitState(ctx, circuitID, model.CircuitOn)
	case "off":
		h.breakers.SetCircuitState(ctx, circuitID, model.CircuitOff)
	case "reset":
		h.breakers.ResetProviderCircuit(ctx, circuitID)
	default:
		h.log.Warn("events.circuit_control_unknown_action", "unknown circuit control action dropped", zap.String("action", action))
	}
}
