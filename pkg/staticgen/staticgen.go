// Package staticgen implements model.Generator with a fixed text payload,
// for the P3 static fallback every deployment must register: the tier of
// last resort that runs when every higher-priority generator and the
// primary selection both fail.
package staticgen

import (
	"strings"

	"github.com/flapboard/contentcore/pkg/apperrors"
	"github.com/flapboard/contentcore/pkg/model"
)

// Generator returns a fixed line of text regardless of context.
type Generator struct {
	text string
}

// New builds a Generator that always produces text.
func New(text string) *Generator {
	return &Generator{text: text}
}

var _ model.Generator = (*Generator)(nil)

// Validate rejects an empty payload — a static fallback with nothing to
// show defeats its purpose.
func (g *Generator) Validate() error {
	if strings.TrimSpace(g.text) == "" {
		return apperrors.New(apperrors.KindInvalidRequest, "staticgen.Validate", "static fallback text must not be empty")
	}
	return nil
}

// Generate ignores ctxData and returns the fixed text.
func (g *Generator) Generate(_ model.GenerationContext) (*model.GeneratedContent, error) {
	return &model.GeneratedContent{Text: g.text, OutputMode: model.OutputText}, nil
}
