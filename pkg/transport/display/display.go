// Package display implements ports.DisplayTransport over a WebSocket
// connection to the physical split-flap controller, reusing the same
// connect/reconnect shape as pkg/automationbus.
package display

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
)

// wireMessage is the frame sent to the device controller.
type wireMessage struct {
	Kind      string     `json:"kind"` // "text" | "layout" | "layout_animated"
	Text      string     `json:"text,omitempty"`
	Grid      model.Grid `json:"grid,omitempty"`
}

// Transport implements ports.DisplayTransport.
type Transport struct {
	url     string
	timeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds a Transport targeting the device controller's WebSocket url.
func New(url string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transport{url: url, timeout: timeout}
}

func (t *Transport) ensureConnected(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: t.timeout}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindTransient, "display.Connect", "failed to connect to display controller", err)
	}
	t.conn = conn
	return nil
}

func (t *Transport) send(ctx context.Context, msg wireMessage) error {
	if err := t.ensureConnected(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInvalidRequest, "display.send", "failed to encode frame", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.conn.Close()
		t.conn = nil
		return apperrors.Wrap(apperrors.KindTransient, "display.send", "failed to write to display controller", err)
	}
	return nil
}

// SendText sends raw, undecorated text to the controller (used when a
// generator's ApplyFrame is false and it manages its own layout upstream).
func (t *Transport) SendText(ctx context.Context, text string) error {
	return t.send(ctx, wireMessage{Kind: "text", Text: text})
}

// SendLayout sends a fully composed grid.
func (t *Transport) SendLayout(ctx context.Context, grid model.Grid) error {
	return t.send(ctx, wireMessage{Kind: "layout", Grid: grid})
}

// SendLayoutWithAnimation sends a grid with the controller's flap-transition
// animation enabled, for major refreshes where the visual change is worth
// calling attention to.
func (t *Transport) SendLayoutWithAnimation(ctx context.Context, grid model.Grid) error {
	return t.send(ctx, wireMessage{Kind: "layout_animated", Grid: grid})
}

// ReadMessage reads the controller's currently displayed grid, used for
// drift detection against the cache.
func (t *Transport) ReadMessage(ctx context.Context) (model.Grid, error) {
	if err := t.ensureConnected(ctx); err != nil {
		return model.Grid{}, err
	}

	t.mu.Lock()
	_ = t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	_, data, err := t.conn.ReadMessage()
	t.mu.Unlock()
	if err != nil {
		return model.Grid{}, apperrors.Wrap(apperrors.KindTransient, "display.ReadMessage", "failed to read from display controller", err)
	}

	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Grid{}, apperrors.Wrap(apperrors.KindTransient, "display.ReadMessage", "failed to decode controller frame", err)
	}
	return msg.Grid, nil
}

// ValidateConnection reports whether the controller connection is live,
// dialing if necessary.
func (t *Transport) ValidateConnection(ctx context.Context) (bool, error) {
	if err := t.ensureConnected(ctx); err != nil {
		return false, err
	}
	return true, nil
}
