// Package decorator composes a 6x22 split-flap grid from generated text
// plus a time/weather/color status row. It is pure computation over
// pkg/model types, hand-rolled against the device's tile alphabet (no
// third-party library addresses fixed-width glyph layout; see DESIGN.md).
package decorator

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/flapboard/contentcore/pkg/model"
)

// SpaceCode is the tile code for a blank cell.
const SpaceCode = 0

// neutralColorCode is used for the info bar's trailing tile when no color
// bar data is available.
const neutralColorCode = 1

// alphabet maps supported runes to device tile codes. A-Z -> 2..27,
// 0-9 -> 28..37, a small punctuation set follows. Unsupported characters
// are substituted with a space per spec §4.4.
var alphabet = buildAlphabet()

func buildAlphabet() map[rune]int {
	m := make(map[rune]int)
	code := 2
	for r := 'A'; r <= 'Z'; r++ {
		m[r] = code
		code++
	}
	for r := '0'; r <= '9'; r++ {
		m[r] = code
		code++
	}
	for _, r := range []rune{'.', ',', '!', '?', '\'', '-', ':', '/'} {
		m[r] = code
		code++
	}
	m[' '] = SpaceCode
	return m
}

func codeFor(r rune) int {
	r = unicode.ToUpper(r)
	if c, ok := alphabet[r]; ok {
		return c
	}
	return SpaceCode
}

func encodeLine(s string) [model.GridCols]int {
	var row [model.GridCols]int
	runes := []rune(s)
	for i := 0; i < model.GridCols; i++ {
		if i < len(runes) {
			row[i] = codeFor(runes[i])
		} else {
			row[i] = SpaceCode
		}
	}
	return row
}

// Decorate composes the full grid. It never fails: on catastrophic input it
// falls back to a minimal single-line grid, still 6x22.
func Decorate(text string, ts time.Time, data *model.ContentData, opts *model.FormatOptions) (result model.FrameResult) {
	defer func() {
		if r := recover(); r != nil {
			result = catastrophicFallback(text)
		}
	}()

	resolved := model.DefaultFormatOptions()
	if opts != nil {
		if opts.MaxLines > 0 {
			resolved.MaxLines = opts.MaxLines
		}
		if opts.MaxCharsPerLine > 0 {
			resolved.MaxCharsPerLine = opts.MaxCharsPerLine
		}
		if opts.TextAlign != "" {
			resolved.TextAlign = opts.TextAlign
		}
		resolved.WordWrap = opts.WordWrap || opts.MaxCharsPerLine == 0
	}
	if resolved.MaxLines > model.GridRows-1 {
		resolved.MaxLines = model.GridRows - 1
	}

	lines, warnings := wrap(strings.ToUpper(text), resolved.MaxCharsPerLine, resolved.MaxLines)
	result.Warnings = append(result.Warnings, warnings...)

	for i := 0; i < model.GridRows-1; i++ {
		var line string
		if i < len(lines) {
			line = align(lines[i], resolved.MaxCharsPerLine, resolved.TextAlign)
		}
		result.Layout[i] = encodeLine(line)
	}

	infoLine, colorCode := infoBar(ts, data)
	row := encodeLine(infoLine)
	row[model.GridCols-1] = colorCode
	result.Layout[model.GridRows-1] = row

	return result
}

// wrap greedily word-wraps text to maxChars-wide lines, truncating at
// maxLines and emitting a warning when content does not fit.
func wrap(text string, maxChars, maxLines int) ([]string, []string) {
	if maxChars <= 0 {
		maxChars = 21
	}
	words := strings.Fields(text)
	var lines []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
	}

	for _, w := range words {
		if len(w) > maxChars {
			// Single word longer than a line: hard-truncate it.
			w = w[:maxChars]
		}
		if current.Len() == 0 {
			current.WriteString(w)
			continue
		}
		if current.Len()+1+len(w) > maxChars {
			flush()
			current.WriteString(w)
		} else {
			current.WriteByte(' ')
			current.WriteString(w)
		}
	}
	flush()

	var warnings []string
	if len(lines) > maxLines {
		warnings = append(warnings, fmt.Sprintf("content truncated from %d to %d lines", len(lines), maxLines))
		lines = lines[:maxLines]
	}
	for i, l := range lines {
		if len(l) > maxChars {
			lines[i] = l[:maxChars]
			warnings = append(warnings, "line truncated to fit device width")
		}
	}
	return lines, warnings
}

func align(line string, width int, mode model.TextAlign) string {
	if len(line) >= width {
		return line
	}
	padding := width - len(line)
	switch mode {
	case model.AlignRight:
		return strings.Repeat(" ", padding) + line
	case model.AlignLeft:
		return line + strings.Repeat(" ", padding)
	default: // center
		left := padding / 2
		right := padding - left
		return strings.Repeat(" ", left) + line + strings.Repeat(" ", right)
	}
}

// infoBar formats row 5: "{DAY} {DATE}{MON} {HH:MM}   {ColorChar}{TEMP}{UNIT}"
// packed into 21 columns, right-padded with spaces. The trailing column's
// color tile code is returned separately.
func infoBar(ts time.Time, data *model.ContentData) (string, int) {
	day := strings.ToUpper(ts.Format("Mon"))
	date := fmt.Sprintf("%d", ts.Day())
	mon := strings.ToUpper(ts.Format("Jan"))
	clock := ts.Format("15:04")

	unit := "F"
	colorChar := "G"
	temp := ""
	colorCode := neutralColorCode

	if data != nil && data.Weather != nil {
		w := data.Weather
		if w.Unit != "" {
			unit = w.Unit
		}
		temp = fmt.Sprintf("%d", int(w.TemperatureF+0.5))
		colorChar = conditionColorChar(w.Condition)
	}

	line := fmt.Sprintf("%s %s%s %s   %s%s%s", day, date, mon, clock, colorChar, temp, unit)
	if len(line) > 21 {
		line = line[:21]
	}
	line = line + strings.Repeat(" ", 21-len(line))

	if data != nil && data.ColorBar != nil {
		colorCode = data.ColorBar[model.GridRows-1]
	}

	return line, colorCode
}

// catastrophicFallback produces the minimal valid grid required by spec
// §4.4 when decoration panics: the first 22 uppercase characters of text in
// row 0, spaces elsewhere.
func catastrophicFallback(text string) model.FrameResult {
	var result model.FrameResult
	result.Layout[0] = encodeLine(strings.ToUpper(text))
	result.Warnings = []string{"catastrophic decoration failure: emitted minimal fallback grid"}
	return result
}

func conditionColorChar(condition string) string {
	switch strings.ToLower(condition) {
	case "sunny", "clear":
		return "Y"
	case "rain", "rainy", "showers":
		return "B"
	case "cloudy", "overcast":
		return "W"
	case "snow", "snowy":
		return "W"
	default:
		return "G"
	}
}
