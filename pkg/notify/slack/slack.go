// Package slack implements breaker.Notifier by posting to an incoming Slack
// webhook via slack-go/slack's public webhook API.
package slack

import (
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/throttlelog"
)

// Notifier posts circuit breaker state changes to a Slack channel via an
// incoming webhook URL.
type Notifier struct {
	webhookURL string
	log        *throttlelog.Logger
}

// New builds a Notifier targeting webhookURL.
func New(webhookURL string, log *throttlelog.Logger) *Notifier {
	return &Notifier{webhookURL: webhookURL, log: log}
}

// NotifyCircuitTripped posts a warning that a circuit opened after
// accumulating failureCount consecutive failures.
func (n *Notifier) NotifyCircuitTripped(circuitID string, failureCount uint64) {
	n.post(fmt.Sprintf(":warning: circuit `%s` tripped open after %d consecutive failures", circuitID, failureCount))
}

// NotifyCircuitChanged posts a circuit's new state. The breaker service
// calls it for operator-issued state changes; automatic trips go through
// NotifyCircuitTripped.
func (n *Notifier) NotifyCircuitChanged(circuitID string, state model.CircuitState) {
	n.post(fmt.Sprintf(":large_blue_circle: circuit `%s` is now `%s`", circuitID, state))
}

func (n *Notifier) post(text string) {
	if n.webhookURL == "" {
		return
	}
	msg := &slack.WebhookMessage{Text: text}
	if err := slack.PostWebhook(n.webhookURL, msg); err != nil {
		n.log.Warn("slack.notify_failed", "failed to post circuit notification to slack", zap.Error(err))
	}
}
