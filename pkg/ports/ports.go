// Package ports defines the minimal capability surfaces the orchestration
// core consumes from external collaborators (spec §6). Implementations live
// outside this package — see pkg/providers, pkg/transport, pkg/automationbus
// and pkg/persistence for concrete adapters, and the generators package
// (owned by the deployment, not this core) for PromptLoader consumers.
package ports

import (
	"context"

	"github.com/flapboard/contentcore/pkg/model"
)

// GenerateRequest is the input to an AIProvider.Generate call. Model is the
// concrete model identifier chosen by the Model Tier Selector; an empty
// value lets the adapter fall back to its own default.
type GenerateRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	Tools       []map[string]any
	ToolResults []map[string]any
}

// GenerateResponse is the output of an AIProvider.Generate call.
type GenerateResponse struct {
	Text         string
	Model        string
	TokensUsed   int
	FinishReason string
	ToolCalls    []map[string]any
}

// AIProvider is the capability set every AI vendor adapter implements.
type AIProvider interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	ValidateConnection(ctx context.Context) bool
}

// DisplayTransport drives the physical split-flap device.
type DisplayTransport interface {
	SendText(ctx context.Context, text string) error
	SendLayout(ctx context.Context, grid model.Grid) error
	SendLayoutWithAnimation(ctx context.Context, grid model.Grid) error
	ReadMessage(ctx context.Context) (model.Grid, error)
	ValidateConnection(ctx context.Context) (connected bool, err error)
}

// BusEventCallback handles one event delivered from the automation bus.
type BusEventCallback func(ctx context.Context, payload map[string]any)

// Unsubscribe cancels a prior subscription.
type Unsubscribe func()

// AutomationBus is the home-automation event/service bus.
type AutomationBus interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SubscribeToEvents(eventType string, cb BusEventCallback) (Unsubscribe, error)
	GetState(ctx context.Context, entityID string) (map[string]any, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

// WeatherService fetches the current weather snapshot. Out of scope for
// this core per spec §1 — defined here only as the interface the Content
// Data Provider depends on.
type WeatherService interface {
	GetWeather(ctx context.Context) (*model.WeatherData, error)
}

// ColorBarService fetches the six device color-tile codes.
type ColorBarService interface {
	GetColors(ctx context.Context) (*model.ColorBar, error)
}

// RSSItem is one syndicated feed entry.
type RSSItem struct {
	Title string
	Link  string
}

// RSSClient fetches syndicated feeds. Implementations must enforce SSRF
// protections per spec §6 (protocol whitelist, private-IP blocklist, single
// redirect hop, IPv6-mapped-private blocklist) — out of scope here.
type RSSClient interface {
	GetLatestItems(ctx context.Context, urls []string, limit int) ([]RSSItem, error)
}

// WikipediaSummary is a random-article summary.
type WikipediaSummary struct {
	Title       string
	Extract     string
	Description string
	URL         string
}

// WikipediaClient fetches a random article summary.
type WikipediaClient interface {
	GetRandomArticleSummary(ctx context.Context, maxLen int) (*WikipediaSummary, error)
}

// PromptLoader resolves generator prompt templates and variables.
type PromptLoader interface {
	LoadPrompt(ctx context.Context, kind, file string) (string, error)
	LoadPromptWithVariables(ctx context.Context, kind, file string, vars map[string]string) (string, error)
}

// PersistenceStore is the subset of the relational/store backend the core
// itself reads and writes: circuit breaker rows and content audit rows.
// Votes, logs, sessions, and credentials belong to the admin UI and are not
// read by the core (spec §6).
type PersistenceStore interface {
	LoadCircuitState(ctx context.Context, circuitID string) (*model.CircuitBreakerState, error)
	SaveCircuitState(ctx context.Context, state *model.CircuitBreakerState) error
	InitCircuitState(ctx context.Context, def model.CircuitDefinition) error
	RecordAudit(ctx context.Context, generatorID string, content *model.GeneratedContent) error
}
