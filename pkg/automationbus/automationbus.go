// Package automationbus implements ports.AutomationBus over a WebSocket
// connection to the home-automation hub: a state machine, a read pump
// dispatching to per-event-type callbacks, and reconnect-with-backoff on
// disconnect.
package automationbus

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/ports"
	"github.com/flapboard/contentcore/pkg/throttlelog"
)

// Config configures the bus connection.
type Config struct {
	URL                string
	Token              string
	HandshakeTimeout   time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// DefaultConfig applies the spec's default 60s automation handshake timeout.
func DefaultConfig(url, token string) Config {
	return Config{
		URL:                url,
		Token:              token,
		HandshakeTimeout:   60 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
	}
}

type envelope struct {
	EventType string          `json:"event_type"`
	Payload   map[string]any  `json:"payload"`
}

// Bus implements ports.AutomationBus.
type Bus struct {
	cfg Config
	log *throttlelog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	connected bool

	subMu sync.RWMutex
	subs  map[string][]ports.BusEventCallback
}

// New builds a Bus. Call Connect to establish the connection and start
// dispatching events to subscribers.
func New(cfg Config, log *throttlelog.Logger) *Bus {
	return &Bus{cfg: cfg, log: log, subs: make(map[string][]ports.BusEventCallback)}
}

var _ ports.AutomationBus = (*Bus)(nil)

// Connect dials the bus and starts the read pump with reconnect-on-drop.
func (b *Bus) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	if err := b.dial(ctx); err != nil {
		cancel()
		return err
	}
	go b.readLoop(runCtx)
	return nil
}

func (b *Bus) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.HandshakeTimeout}
	header := map[string][]string{}
	if b.cfg.Token != "" {
		header["Authorization"] = []string{"Bearer " + b.cfg.Token}
	}

	conn, _, err := dialer.DialContext(ctx, b.cfg.URL, header)
	if err != nil {
		return apperrors.Wrap(apperrors.KindBusDisconnected, "automationbus.dial", "failed to connect to automation bus", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.connected = true
	b.mu.Unlock()
	return nil
}

// Disconnect tears down the connection and stops the read pump.
func (b *Bus) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	b.connected = false
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// SubscribeToEvents registers cb for eventType. Returns an Unsubscribe.
func (b *Bus) SubscribeToEvents(eventType string, cb ports.BusEventCallback) (ports.Unsubscribe, error) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	id := len(b.subs[eventType])
	b.subs[eventType] = append(b.subs[eventType], cb)

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		list := b.subs[eventType]
		if id < len(list) {
			list[id] = nil
		}
	}, nil
}

// GetState requests an entity's current state over the bus's service-call
// channel. Not modeled further here: callers needing live state use the
// state_changed subscription instead.
func (b *Bus) GetState(ctx context.Context, entityID string) (map[string]any, error) {
	return b.callAndWait(ctx, "get_state", map[string]any{"entity_id": entityID})
}

// CallService invokes a domain.service automation call.
func (b *Bus) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	_, err := b.callAndWait(ctx, "call_service", map[string]any{
		"domain":  domain,
		"service": service,
		"data":    data,
	})
	return err
}

func (b *Bus) callAndWait(ctx context.Context, eventType string, payload map[string]any) (map[string]any, error) {
	b.mu.Lock()
	conn := b.conn
	connected := b.connected
	b.mu.Unlock()
	if !connected || conn == nil {
		return nil, apperrors.New(apperrors.KindBusDisconnected, "automationbus.call", "bus not connected")
	}

	msg, err := json.Marshal(envelope{EventType: eventType, Payload: payload})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidRequest, "automationbus.call", "failed to encode request", err)
	}

	b.mu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, msg)
	b.mu.Unlock()
	if writeErr != nil {
		return nil, apperrors.Wrap(apperrors.KindBusDisconnected, "automationbus.call", "failed to send request", writeErr)
	}

	// Fire-and-forget: responses, if any, arrive on the normal read loop and
	// are dispatched to subscribers rather than correlated to this call.
	return nil, nil
}

func (b *Bus) readLoop(ctx context.Context) {
	backoff := b.cfg.ReconnectBaseDelay
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()
		if conn == nil {
			if err := b.dial(ctx); err != nil {
				b.log.Warn("automationbus.reconnect_failed", "reconnect attempt failed", zap.Error(err))
				time.Sleep(b.jitteredBackoff(&backoff))
				continue
			}
			backoff = b.cfg.ReconnectBaseDelay
			b.mu.Lock()
			conn = b.conn
			b.mu.Unlock()
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			b.log.Warn("automationbus.read_error", "lost connection to automation bus", zap.Error(err))
			b.mu.Lock()
			b.conn = nil
			b.connected = false
			b.mu.Unlock()
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			b.log.Warn("automationbus.decode_error", "failed to decode bus message", zap.Error(err))
			continue
		}
		b.dispatch(ctx, env)
	}
}

func (b *Bus) dispatch(ctx context.Context, env envelope) {
	b.subMu.RLock()
	callbacks := append([]ports.BusEventCallback(nil), b.subs[env.EventType]...)
	b.subMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(ctx, env.Payload)
		}
	}
}

func (b *Bus) jitteredBackoff(current *time.Duration) time.Duration {
	delay := *current
	if delay > b.cfg.ReconnectMaxDelay {
		delay = b.cfg.ReconnectMaxDelay
	}
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.2)
	next := time.Duration(math.Min(float64(delay)*2, float64(b.cfg.ReconnectMaxDelay)))
	*current = next
	return delay + jitter
}
