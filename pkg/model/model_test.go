package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddWarning_AppendsWithoutReplacing(t *testing.T) {
	c := &ContentData{}
	c.AddWarning("first")
	c.AddWarning("second")
	assert.Equal(t, []string{"first", "second"}, c.Warnings)
}

func TestScheduleWindow_ContainsWithinSameDayWindow(t *testing.T) {
	w := ScheduleWindow{StartMinute: 8 * 60, EndMinute: 17 * 60}
	assert.True(t, w.Contains(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 1, 1, 7, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 1, 1, 17, 0, 0, 0, time.UTC)))
}

func TestScheduleWindow_ContainsWrapsPastMidnight(t *testing.T) {
	w := ScheduleWindow{StartMinute: 22 * 60, EndMinute: 6 * 60}
	assert.True(t, w.Contains(time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)))
}

func TestDefaultFormatOptions_MatchesDocumentedDefaults(t *testing.T) {
	opts := DefaultFormatOptions()
	assert.Equal(t, 5, opts.MaxLines)
	assert.Equal(t, 21, opts.MaxCharsPerLine)
	assert.Equal(t, AlignCenter, opts.TextAlign)
	assert.True(t, opts.WordWrap)
}
