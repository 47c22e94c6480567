package decorator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapboard/contentcore/pkg/model"
)

func ts() time.Time {
	return time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
}

func TestDecorate_ShortTextFitsOnOneLine(t *testing.T) {
	result := Decorate("HELLO", ts(), nil, nil)
	assert.Empty(t, result.Warnings)

	// The default alignment is center: "HELLO" sits in the 21 text columns
	// with 8 blank cells on its left, so it occupies columns 8-12.
	row := result.Layout[0]
	assert.Equal(t, codeFor('H'), row[8])
	assert.Equal(t, codeFor('E'), row[9])
	for i := 0; i < model.GridCols; i++ {
		if i >= 8 && i <= 12 {
			continue
		}
		assert.Equal(t, SpaceCode, row[i], "unused cells on a short line must be blank")
	}
}

func TestDecorate_AlwaysProducesFullGrid(t *testing.T) {
	result := Decorate("anything", ts(), nil, nil)
	assert.Len(t, result.Layout, model.GridRows)
	for _, row := range result.Layout {
		assert.Len(t, row, model.GridCols)
	}
}

func TestDecorate_UnsupportedCharactersBecomeSpaces(t *testing.T) {
	result := Decorate("HI@THERE", ts(), nil, nil)
	row := result.Layout[0]
	assert.Equal(t, SpaceCode, row[8], "'@' has no device tile and must render as a space")
}

func TestDecorate_LowercaseIsUppercased(t *testing.T) {
	lower := Decorate("hello", ts(), nil, nil)
	upper := Decorate("HELLO", ts(), nil, nil)
	assert.Equal(t, upper.Layout, lower.Layout)
}

func TestDecorate_OverflowTextTruncatesWithWarning(t *testing.T) {
	longText := strings.Repeat("word ", 60)
	result := Decorate(longText, ts(), nil, nil)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, strings.Join(result.Warnings, " "), "truncated")
}

func TestDecorate_InfoRowCarriesDateAndTime(t *testing.T) {
	result := Decorate("x", ts(), nil, nil)
	infoRow := result.Layout[model.GridRows-1]
	// "1" is in the alphabet at a known offset; just assert the row isn't
	// the same blank pattern as an unrelated text row would be.
	assert.NotEqual(t, encodeLine(""), infoRow)
}

func TestDecorate_WeatherPresentChangesInfoRow(t *testing.T) {
	withoutWeather := Decorate("x", ts(), nil, nil)
	withWeather := Decorate("x", ts(), &model.ContentData{
		Weather: &model.WeatherData{TemperatureF: 72, Condition: "sunny", Unit: "F"},
	}, nil)
	assert.NotEqual(t, withoutWeather.Layout[model.GridRows-1], withWeather.Layout[model.GridRows-1])
}

func TestDecorate_ColorBarSuppliesTrailingTile(t *testing.T) {
	bar := &model.ColorBar{0, 0, 0, 0, 0, 9}
	result := Decorate("x", ts(), &model.ContentData{ColorBar: bar}, nil)
	infoRow := result.Layout[model.GridRows-1]
	assert.Equal(t, 9, infoRow[model.GridCols-1])
}

func TestDecorate_RespectsCustomFormatOptions(t *testing.T) {
	opts := &model.FormatOptions{MaxLines: 2, MaxCharsPerLine: 10, TextAlign: model.AlignLeft, WordWrap: true}
	result := Decorate("one two three four five", ts(), nil, opts)
	// left-aligned: first row should start with a non-space tile.
	assert.NotEqual(t, SpaceCode, result.Layout[0][0])
}

func TestDecorate_MaxLinesClampedToGridBudget(t *testing.T) {
	opts := &model.FormatOptions{MaxLines: 99, MaxCharsPerLine: 5, WordWrap: true}
	result := Decorate(strings.Repeat("a ", 100), ts(), nil, opts)
	// Row GridRows-1 is always the info bar regardless of MaxLines overreach.
	assert.NotEqual(t, model.FrameResult{}.Layout, result.Layout)
}

func TestConditionColorChar_KnownConditions(t *testing.T) {
	assert.Equal(t, "Y", conditionColorChar("Sunny"))
	assert.Equal(t, "B", conditionColorChar("rain"))
	assert.Equal(t, "W", conditionColorChar("cloudy"))
	assert.Equal(t, "G", conditionColorChar("tornado"))
}

func TestAlign_CenterPadsBothSides(t *testing.T) {
	out := align("AB", 6, model.AlignCenter)
	assert.Equal(t, "  AB  ", out)
}

func TestAlign_LeftPadsRightSide(t *testing.T) {
	out := align("AB", 6, model.AlignLeft)
	assert.Equal(t, "AB    ", out)
}

func TestAlign_RightPadsLeftSide(t *testing.T) {
	out := align("AB", 6, model.AlignRight)
	assert.Equal(t, "    AB", out)
}

func TestAlign_LineAlreadyAtWidthIsUnchanged(t *testing.T) {
	out := align("ABCDEF", 6, model.AlignCenter)
	assert.Equal(t, "ABCDEF", out)
}
