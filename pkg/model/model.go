// Package model holds the data types that flow through the content
// orchestration pipeline: the envelope created per refresh, the pre-fetched
// companion data, the generator's product, and the decorated frame.
package model

import "time"

// GridRows is the number of rows on the physical split-flap display.
const GridRows = 6

// GridCols is the number of columns on the physical split-flap display.
const GridCols = 22

// UpdateType distinguishes an event/operator-driven full regeneration from a
// timer-driven re-decoration of cached content.
type UpdateType string

const (
	UpdateMajor UpdateType = "major"
	UpdateMinor UpdateType = "minor"
)

// OutputMode distinguishes a generator that produced free text needing frame
// decoration from one that produced a self-contained grid.
type OutputMode string

const (
	OutputText   OutputMode = "text"
	OutputLayout OutputMode = "layout"
)

// Priority is a generator's eligibility tier in the Content Selector.
type Priority string

const (
	PriorityP0 Priority = "P0" // reactive
	PriorityP1 Priority = "P1" // scheduled
	PriorityP2 Priority = "P2" // rotating
	PriorityP3 Priority = "P3" // static fallback
)

// ModelTier is a coarse model capability class.
type ModelTier string

const (
	TierLight  ModelTier = "light"
	TierMedium ModelTier = "medium"
	TierHeavy  ModelTier = "heavy"
)

// Grid is the device's 6x22 tile-code matrix.
type Grid [GridRows][GridCols]int

// WeatherData is the subset of weather information the decorator's info row
// needs. The concrete fetch is out of the core's scope (see pkg/ports).
type WeatherData struct {
	TemperatureF float64
	Condition    string
	Unit         string // "F" or "C", defaults to "F"
}

// ColorBar is the six device color-tile codes returned by the color service,
// one per display row; row 5's value becomes the info bar's trailing tile.
type ColorBar [GridRows]int

// ContentData is pre-fetched companion data for a major refresh. Warnings
// accumulate per-source failure reasons and never shrink within one fetch.
type ContentData struct {
	Weather   *WeatherData
	ColorBar  *ColorBar
	FetchedAt time.Time
	Warnings  []string
}

// AddWarning appends a warning, preserving the monotonic non-decreasing
// length invariant required by spec §3.
func (c *ContentData) AddWarning(w string) {
	c.Warnings = append(c.Warnings, w)
}

// Layout is a self-contained 6x22 grid.
type Layout struct {
	CharacterCodes Grid
}

// GenerationContext is the envelope passed through one pipeline run. It is
// created per refresh and passed by value; the orchestrator fills Data on
// its own copy during the major-refresh pre-fetch, so the caller's value is
// never changed.
type GenerationContext struct {
	UpdateType  UpdateType
	Timestamp   time.Time
	EventData   map[string]any
	Personality string
	Data        *ContentData
	PromptsOnly bool
}

// GeneratedContent is a generator's product.
type GeneratedContent struct {
	Text       string
	OutputMode OutputMode
	Layout     *Layout
	Metadata   map[string]any
}

// FrameResult is the output of frame decoration.
type FrameResult struct {
	Layout   Grid
	Warnings []string
}

// FormatOptions controls how text is wrapped into the grid.
type FormatOptions struct {
	MaxLines       int
	MaxCharsPerLine int
	TextAlign      TextAlign
	WordWrap       bool
}

// TextAlign is the horizontal alignment of wrapped text lines.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// DefaultFormatOptions returns the spec's documented defaults.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		MaxLines:        5,
		MaxCharsPerLine: 21,
		TextAlign:       AlignCenter,
		WordWrap:        true,
	}
}

// ScheduleWindow is a P1 generator's time-of-day eligibility window, in
// minutes since midnight local time. An end before start wraps past
// midnight (e.g. 22:00-06:00).
type ScheduleWindow struct {
	StartMinute int
	EndMinute   int
}

// Contains reports whether the clock time of ts falls within the window.
func (w ScheduleWindow) Contains(ts time.Time) bool {
	minute := ts.Hour()*60 + ts.Minute()
	if w.StartMinute <= w.EndMinute {
		return minute >= w.StartMinute && minute < w.EndMinute
	}
	return minute >= w.StartMinute || minute < w.EndMinute
}

// GeneratorRegistration describes one registered content generator.
type GeneratorRegistration struct {
	ID                string
	Name              string
	Priority          Priority
	ModelTier         ModelTier
	ApplyFrame        bool
	FormatOptions     *FormatOptions
	EventPattern      string
	Schedule          *ScheduleWindow
	// AssociatedCircuit names a manual breaker (e.g. "SLEEP_MODE") that gates
	// this generator's eligibility independent of its provider's breaker.
	// Empty means the generator is gated only by its provider circuit.
	AssociatedCircuit string
	Generator         Generator
}

// Generator produces content from a generation context. Validate is
// potentially suspending (I/O-bound provider connectivity checks) and is
// awaited once at registration time.
type Generator interface {
	Generate(ctxData GenerationContext) (*GeneratedContent, error)
	Validate() error
}

// CircuitType distinguishes an operator-controlled breaker from one mutated
// automatically by provider health.
type CircuitType string

const (
	CircuitManual   CircuitType = "manual"
	CircuitProvider CircuitType = "provider"
)

// CircuitState is the tri-state value a breaker can hold.
type CircuitState string

const (
	CircuitOn       CircuitState = "on"
	CircuitOff      CircuitState = "off"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreakerState is the persisted record for one named breaker.
type CircuitBreakerState struct {
	CircuitID       string
	CircuitType     CircuitType
	State           CircuitState
	DefaultState    CircuitState
	FailureCount    uint64
	SuccessCount    uint64
	FailureThreshold uint64
	LastFailureAt   time.Time
	LastSuccessAt   time.Time
	StateChangedAt  time.Time
}

// CircuitDefinition is the argument to initializeCircuit.
type CircuitDefinition struct {
	CircuitID        string
	CircuitType      CircuitType
	DefaultState     CircuitState
	FailureThreshold uint64
}

// TriggerConfig is one declarative automation trigger.
type TriggerConfig struct {
	Name            string
	EntityPattern   string
	StateFilter     []string
	DebounceSeconds float64
}

// TriggersConfig is the parsed trigger configuration file.
type TriggersConfig struct {
	Triggers []TriggerConfig
}
