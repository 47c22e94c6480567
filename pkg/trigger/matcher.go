// Package trigger evaluates entity-state-change events against a
// declarative trigger configuration, with pattern matching (exact, glob,
// regex) and per-trigger debouncing.
package trigger

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/flapboard/contentcore/pkg/model"
)

// MatchResult is the outcome of evaluating one entity-state-change event.
type MatchResult struct {
	Matched   bool
	Trigger   *model.TriggerConfig
	Debounced bool
}

// compiledTrigger pairs a TriggerConfig with its pre-compiled pattern
// matcher, built once at snapshot-swap time rather than per-event.
type compiledTrigger struct {
	cfg    model.TriggerConfig
	match  func(entityID string) bool
	filter map[string]struct{}
}

// Matcher evaluates state-change events against an immutable snapshot of
// compiled triggers, swapped atomically on config reload.
type Matcher struct {
	mu         sync.Mutex
	triggers   []compiledTrigger
	lastMatch  map[string]time.Time
}

// New compiles cfg into a Matcher. Returns an error if any entity_pattern
// regex fails to compile.
func New(cfg model.TriggersConfig) (*Matcher, error) {
	m := &Matcher{lastMatch: make(map[string]time.Time)}
	compiled, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	m.triggers = compiled
	return m, nil
}

// Reload atomically swaps in a freshly compiled trigger set, preserving
// per-trigger debounce state for triggers whose name is unchanged.
func (m *Matcher) Reload(cfg model.TriggersConfig) error {
	compiled, err := compile(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.triggers = compiled
	m.mu.Unlock()
	return nil
}

func compile(cfg model.TriggersConfig) ([]compiledTrigger, error) {
	out := make([]compiledTrigger, 0, len(cfg.Triggers))
	for _, t := range cfg.Triggers {
		matchFn, err := compilePattern(t.EntityPattern)
		if err != nil {
			return nil, err
		}
		var filter map[string]struct{}
		if len(t.StateFilter) > 0 {
			filter = make(map[string]struct{}, len(t.StateFilter))
			for _, s := range t.StateFilter {
				filter[s] = struct{}{}
			}
		}
		out = append(out, compiledTrigger{cfg: t, match: matchFn, filter: filter})
	}
	return out, nil
}

func compilePattern(pattern string) (func(string) bool, error) {
	switch {
	case len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/"):
		re, err := regexp.Compile(pattern[1 : len(pattern)-1])
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	case strings.Contains(pattern, "*"):
		quoted := regexp.QuoteMeta(pattern)
		quoted = strings.ReplaceAll(quoted, `\*`, ".*")
		re, err := regexp.Compile("^" + quoted + "$")
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	default:
		return func(entityID string) bool { return entityID == pattern }, nil
	}
}

// Match evaluates entityID/newState against the current trigger snapshot.
// The first configured trigger that matches wins; later triggers are not
// evaluated.
func (m *Matcher) Match(entityID, newState string) MatchResult {
	m.mu.Lock()
	triggers := m.triggers
	m.mu.Unlock()

	now := time.Now()
	for i := range triggers {
		t := &triggers[i]
		if !t.match(entityID) {
			continue
		}
		if t.filter != nil {
			if _, ok := t.filter[newState]; !ok {
				continue
			}
		}

		m.mu.Lock()
		last, seen := m.lastMatch[t.cfg.Name]
		debounced := seen && now.Sub(last) < time.Duration(t.cfg.DebounceSeconds*float64(time.Second))
		if !debounced {
			m.lastMatch[t.cfg.Name] = now
		}
		m.mu.Unlock()

		cfg := t.cfg
		return MatchResult{Matched: true, Trigger: &cfg, Debounced: debounced}
	}
	return MatchResult{}
}
