// Package tierselect maps a (tier, preferred-provider, available-providers)
// query to a concrete (provider, model) pair, and finds a cross-provider
// alternate for failover. Per spec §9, the model table is external
// configuration rather than hard-coded.
package tierselect

import "github.com/flapboard/contentcore/pkg/model"

// Selection is a concrete (provider, model) pair.
type Selection struct {
	Provider string
	Model    string
}

// ModelTable maps provider -> tier -> model identifier.
type ModelTable map[string]map[model.ModelTier]string

// DefaultModelTable is the compiled-in fallback so the core starts with
// zero configuration; New uses it when given a nil table.
func DefaultModelTable() ModelTable {
	return ModelTable{
		"anthropic": {
			model.TierLight:  "claude-3-5-haiku-latest",
			model.TierMedium: "claude-sonnet-4-5",
			model.TierHeavy:  "claude-opus-4-1",
		},
		"openai": {
			model.TierLight:  "gpt-4o-mini",
			model.TierMedium: "gpt-4o",
			model.TierHeavy:  "gpt-4.1",
		},
		"gemini": {
			model.TierLight:  "gemini-2.0-flash-lite",
			model.TierMedium: "gemini-2.0-flash",
			model.TierHeavy:  "gemini-2.0-pro",
		},
		"bedrock": {
			model.TierLight:  "anthropic.claude-3-5-haiku-20241022-v1:0",
			model.TierMedium: "anthropic.claude-3-7-sonnet-20250219-v1:0",
			model.TierHeavy:  "anthropic.claude-3-opus-20240229-v1:0",
		},
	}
}

// Selector is immutable after construction.
type Selector struct {
	preferredProvider  string
	availableProviders []string
	table              ModelTable
}

// New builds a Selector over the given preferred provider, the providers
// actually available at runtime, and a model table (nil uses the default).
func New(preferredProvider string, availableProviders []string, table ModelTable) *Selector {
	if table == nil {
		table = DefaultModelTable()
	}
	return &Selector{
		preferredProvider:  preferredProvider,
		availableProviders: append([]string(nil), availableProviders...),
		table:              table,
	}
}

func (s *Selector) contains(provider string) bool {
	for _, p := range s.availableProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// Select returns preferredProvider if available, else the first available
// provider, paired with that provider's model for tier.
func (s *Selector) Select(tier model.ModelTier) (Selection, bool) {
	provider := s.preferredProvider
	if !s.contains(provider) {
		if len(s.availableProviders) == 0 {
			return Selection{}, false
		}
		provider = s.availableProviders[0]
	}
	m, ok := s.table[provider][tier]
	if !ok {
		return Selection{}, false
	}
	return Selection{Provider: provider, Model: m}, true
}

// reverseTier finds the tier a given model belongs to for provider, falling
// back to TierMedium when the model is unrecognized, per spec §4.2.
func (s *Selector) reverseTier(provider, modelID string) model.ModelTier {
	for tier, id := range s.table[provider] {
		if id == modelID {
			return tier
		}
	}
	return model.TierMedium
}

// GetAlternate returns a selection using any available provider other than
// current.Provider, matching current's tier. It never returns a selection
// whose provider equals current.Provider, and returns (Selection{}, false)
// when no alternate exists.
func (s *Selector) GetAlternate(current Selection) (Selection, bool) {
	tier := s.reverseTier(current.Provider, current.Model)
	for _, provider := range s.availableProviders {
		if provider == current.Provider {
			continue
		}
		if m, ok := s.table[provider][tier]; ok {
			return Selection{Provider: provider, Model: m}, true
		}
	}
	return Selection{}, false
}
