// Trigger configuration loading and hot-reload: a Load/Watch split over a
// YAML file, with fsnotify-driven reload and a debounce window.
package trigger

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/throttlelog"
)

// reloadDebounce absorbs editor save bursts (temp file + rename, multiple
// WRITE events) before triggering a reload.
const reloadDebounce = 500 * time.Millisecond

// rawTriggersFile is the on-disk YAML shape.
type rawTriggersFile struct {
	Triggers []rawTrigger `yaml:"triggers"`
}

type rawTrigger struct {
	Name            string      `yaml:"name"`
	EntityPattern   string      `yaml:"entity_pattern"`
	StateFilter     interface{} `yaml:"state_filter"`
	DebounceSeconds *float64    `yaml:"debounce_seconds"`
}

// ConfigLoader loads and validates trigger configuration from a YAML file.
type ConfigLoader struct {
	path string
}

// NewConfigLoader builds a ConfigLoader for path.
func NewConfigLoader(path string) *ConfigLoader {
	return &ConfigLoader{path: path}
}

// Load reads and validates the trigger file. On any failure it returns a
// descriptive error and does not touch any previously-loaded state — the
// caller decides whether to keep the old snapshot.
func (c *ConfigLoader) Load() (model.TriggersConfig, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return model.TriggersConfig{}, fmt.Errorf("trigger config: read %s: %w", c.path, err)
	}

	var raw rawTriggersFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return model.TriggersConfig{}, fmt.Errorf("trigger config: parse %s: %w", c.path, err)
	}

	cfg := model.TriggersConfig{Triggers: make([]model.TriggerConfig, 0, len(raw.Triggers))}
	for i, rt := range raw.Triggers {
		tc, err := validateTrigger(i, rt)
		if err != nil {
			return model.TriggersConfig{}, err
		}
		cfg.Triggers = append(cfg.Triggers, tc)
	}
	return cfg, nil
}

func validateTrigger(index int, rt rawTrigger) (model.TriggerConfig, error) {
	if strings.TrimSpace(rt.Name) == "" {
		return model.TriggerConfig{}, fmt.Errorf("trigger config: trigger[%d] missing name", index)
	}
	if strings.TrimSpace(rt.EntityPattern) == "" {
		return model.TriggerConfig{}, fmt.Errorf("trigger config: trigger %q missing entity_pattern", rt.Name)
	}
	if strings.HasPrefix(rt.EntityPattern, "/") && strings.HasSuffix(rt.EntityPattern, "/") && len(rt.EntityPattern) >= 2 {
		if _, err := regexp.Compile(rt.EntityPattern[1 : len(rt.EntityPattern)-1]); err != nil {
			return model.TriggerConfig{}, fmt.Errorf("trigger config: trigger %q has invalid regex entity_pattern: %w", rt.Name, err)
		}
	}

	filter, err := coerceStateFilter(rt.Name, rt.StateFilter)
	if err != nil {
		return model.TriggerConfig{}, err
	}

	debounce := 0.0
	if rt.DebounceSeconds != nil {
		if *rt.DebounceSeconds < 0 {
			return model.TriggerConfig{}, fmt.Errorf("trigger config: trigger %q has negative debounce_seconds", rt.Name)
		}
		debounce = *rt.DebounceSeconds
	}

	return model.TriggerConfig{
		Name:            rt.Name,
		EntityPattern:   rt.EntityPattern,
		StateFilter:     filter,
		DebounceSeconds: debounce,
	}, nil
}

func coerceStateFilter(name string, raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("trigger config: trigger %q has non-string state_filter entry", name)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("trigger config: trigger %q has invalid state_filter type", name)
	}
}

// ReloadedCallback is invoked with the new snapshot on a successful
// hot-reload, or with an error (and the stale snapshot retained) on failure.
type ReloadedCallback func(cfg model.TriggersConfig, err error)

// Watcher observes the trigger file for changes and debounces reloads.
type Watcher struct {
	loader *ConfigLoader
	log    *throttlelog.Logger
	onLoad ReloadedCallback

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
}

// NewWatcher builds a Watcher. Call Start to begin observing.
func NewWatcher(loader *ConfigLoader, log *throttlelog.Logger, onLoad ReloadedCallback) *Watcher {
	return &Watcher{loader: loader, log: log, onLoad: onLoad}
}

// Start begins watching the loader's file. Returns an error if the
// underlying OS watch cannot be established.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("trigger config watch: %w", err)
	}
	if err := fw.Add(w.loader.path); err != nil {
		fw.Close()
		return fmt.Errorf("trigger config watch: add %s: %w", w.loader.path, err)
	}

	w.mu.Lock()
	w.watcher = fw
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(fw)
	return nil
}

// Stop tears down the watch and cancels any pending debounce timer.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
	if w.done != nil {
		<-w.done
	}
}

func (w *Watcher) loop(fw *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("trigger.watch_error", "trigger config watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, func() {
		cfg, err := w.loader.Load()
		w.onLoad(cfg, err)
	})
}
