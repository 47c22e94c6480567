//go:build property

package decorator

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/flapboard/contentcore/pkg/model"
)

// TestPropertyDecorateAlwaysProducesValidGrid checks spec invariant 8:
// decorate(text, ...).layout is always shape 6x22, every value in the
// device alphabet, for arbitrary input text.
func TestPropertyDecorateAlwaysProducesValidGrid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")

		result := Decorate(text, time.Now(), nil, nil)

		for row := 0; row < model.GridRows; row++ {
			for col := 0; col < model.GridCols; col++ {
				if row == model.GridRows-1 && col == model.GridCols-1 {
					continue // info row's trailing color tile, not a glyph
				}
				code := result.Layout[row][col]
				if !isValidTileCode(code) {
					t.Fatalf("row %d col %d has invalid tile code %d for input %q", row, col, code, text)
				}
			}
		}
	})
}

func isValidTileCode(code int) bool {
	if code == SpaceCode {
		return true
	}
	return code >= 2 && code <= 45
}
