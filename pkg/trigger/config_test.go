package trigger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/flapboard/contentcore/pkg/model"
	"github.com/flapboard/contentcore/pkg/throttlelog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeTriggerFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeTriggerFile(t, `
triggers:
  - name: front-door
    entity_pattern: binary_sensor.front_door
    state_filter: "on"
    debounce_seconds: 30
  - name: any-motion
    entity_pattern: "binary_sensor.*_motion"
    state_filter: ["on", "detected"]
`)

	cfg, err := NewConfigLoader(path).Load()
	require.NoError(t, err)
	require.Len(t, cfg.Triggers, 2)

	assert.Equal(t, "front-door", cfg.Triggers[0].Name)
	assert.Equal(t, []string{"on"}, cfg.Triggers[0].StateFilter)
	assert.Equal(t, 30.0, cfg.Triggers[0].DebounceSeconds)

	assert.Equal(t, []string{"on", "detected"}, cfg.Triggers[1].StateFilter)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := NewConfigLoader(filepath.Join(t.TempDir(), "does-not-exist.yaml")).Load()
	assert.Error(t, err)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := writeTriggerFile(t, "not: [valid: yaml")
	_, err := NewConfigLoader(path).Load()
	assert.Error(t, err)
}

func TestLoad_MissingNameFails(t *testing.T) {
	path := writeTriggerFile(t, `
triggers:
  - entity_pattern: binary_sensor.front_door
`)
	_, err := NewConfigLoader(path).Load()
	assert.Error(t, err)
}

func TestLoad_MissingEntityPatternFails(t *testing.T) {
	path := writeTriggerFile(t, `
triggers:
  - name: front-door
`)
	_, err := NewConfigLoader(path).Load()
	assert.Error(t, err)
}

func TestLoad_InvalidRegexEntityPatternFails(t *testing.T) {
	path := writeTriggerFile(t, `
triggers:
  - name: bad
    entity_pattern: "/(unclosed/"
`)
	_, err := NewConfigLoader(path).Load()
	assert.Error(t, err)
}

func TestLoad_NegativeDebounceFails(t *testing.T) {
	path := writeTriggerFile(t, `
triggers:
  - name: bad
    entity_pattern: binary_sensor.x
    debounce_seconds: -5
`)
	_, err := NewConfigLoader(path).Load()
	assert.Error(t, err)
}

func TestLoad_NoStateFilterMeansAlwaysMatch(t *testing.T) {
	path := writeTriggerFile(t, `
triggers:
  - name: any-state
    entity_pattern: binary_sensor.x
`)
	cfg, err := NewConfigLoader(path).Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Triggers[0].StateFilter)
}

func TestLoad_EmptyTriggerListIsValid(t *testing.T) {
	path := writeTriggerFile(t, "triggers: []\n")
	cfg, err := NewConfigLoader(path).Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Triggers)
}

func testWatcherLogger() *throttlelog.Logger {
	return throttlelog.New(zap.NewNop(), time.Minute, 10)
}

func TestWatcher_ReloadsOnFileWrite(t *testing.T) {
	path := writeTriggerFile(t, "triggers: []\n")
	loader := NewConfigLoader(path)

	reloaded := make(chan model.TriggersConfig, 1)
	w := NewWatcher(loader, testWatcherLogger(), func(cfg model.TriggersConfig, err error) {
		require.NoError(t, err)
		reloaded <- cfg
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`
triggers:
  - name: front-door
    entity_pattern: binary_sensor.front_door
`), 0o644))

	select {
	case cfg := <-reloaded:
		require.Len(t, cfg.Triggers, 1)
		assert.Equal(t, "front-door", cfg.Triggers[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for debounced reload")
	}
}

func TestWatcher_StopWaitsForLoopExit(t *testing.T) {
	path := writeTriggerFile(t, "triggers: []\n")
	loader := NewConfigLoader(path)
	w := NewWatcher(loader, testWatcherLogger(), func(cfg model.TriggersConfig, err error) {})
	require.NoError(t, w.Start())
	w.Stop()
	// Stop blocking until the watch loop goroutine exits is itself the
	// assertion: a leaked goroutine here is caught by TestMain's goleak check.
}
