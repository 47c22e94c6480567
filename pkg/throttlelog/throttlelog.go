// Package throttlelog de-duplicates and rate-limits identical error logs.
// It wraps a *zap.Logger with an LRU-bounded per-key window instead of
// unbounded state.
package throttlelog

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	defaultWindow     = 5 * time.Minute
	defaultMaxEntries = 100
)

type entry struct {
	firstLoggedAt time.Time
	windowEnd     time.Time
	suppressed    int
}

// Logger de-duplicates warn/error calls keyed by caller-supplied key.
type Logger struct {
	base       *zap.Logger
	window     time.Duration
	mu         sync.Mutex
	entries    *lru.Cache[string, *entry]
}

// New builds a Logger. window and maxEntries fall back to spec defaults
// (5 minutes, 100 keys) when zero.
func New(base *zap.Logger, window time.Duration, maxEntries int) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if window <= 0 {
		window = defaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	cache, _ := lru.New[string, *entry](maxEntries)
	return &Logger{base: base, window: window, entries: cache}
}

// Warn logs at warn level, suppressing repeats of the same key within the
// throttle window and appending a suppressed count on the next log after
// the window expires.
func (l *Logger) Warn(key, msg string, fields ...zap.Field) {
	l.emit(zapcoreWarn, key, msg, fields)
}

// Error logs at error level with the same de-duplication policy as Warn.
func (l *Logger) Error(key, msg string, fields ...zap.Field) {
	l.emit(zapcoreError, key, msg, fields)
}

type level int

const (
	zapcoreWarn level = iota
	zapcoreError
)

func (l *Logger) emit(lv level, key, msg string, fields []zap.Field) {
	now := time.Now()

	l.mu.Lock()
	e, ok := l.entries.Get(key)
	if !ok || now.After(e.windowEnd) {
		suppressed := 0
		if ok {
			suppressed = e.suppressed
		}
		e = &entry{firstLoggedAt: now, windowEnd: now.Add(l.window)}
		l.entries.Add(key, e)
		l.mu.Unlock()

		if suppressed > 0 {
			fields = append(fields, zap.Int("suppressed_since_last", suppressed))
		}
		l.log(lv, msg, fields)
		return
	}

	e.suppressed++
	l.mu.Unlock()
}

func (l *Logger) log(lv level, msg string, fields []zap.Field) {
	switch lv {
	case zapcoreWarn:
		l.base.Warn(msg, fields...)
	case zapcoreError:
		l.base.Error(msg, fields...)
	}
}
