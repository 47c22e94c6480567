package tierselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapboard/contentcore/pkg/model"
)

func TestSelect_PrefersPreferredProviderWhenAvailable(t *testing.T) {
	s := New("openai", []string{"anthropic", "openai"}, DefaultModelTable())

	sel, ok := s.Select(model.TierMedium)
	require.True(t, ok)
	assert.Equal(t, "openai", sel.Provider)
	assert.Equal(t, "gpt-4o", sel.Model)
}

func TestSelect_FallsBackToFirstAvailableWhenPreferredMissing(t *testing.T) {
	s := New("gemini", []string{"anthropic", "openai"}, DefaultModelTable())

	sel, ok := s.Select(model.TierLight)
	require.True(t, ok)
	assert.Equal(t, "anthropic", sel.Provider)
}

func TestSelect_NoAvailableProvidersFails(t *testing.T) {
	s := New("anthropic", nil, DefaultModelTable())
	_, ok := s.Select(model.TierLight)
	assert.False(t, ok)
}

func TestGetAlternate_PicksDifferentProviderSameTier(t *testing.T) {
	s := New("anthropic", []string{"anthropic", "openai"}, DefaultModelTable())
	primary, ok := s.Select(model.TierHeavy)
	require.True(t, ok)

	alt, ok := s.GetAlternate(primary)
	require.True(t, ok)
	assert.NotEqual(t, primary.Provider, alt.Provider)
	assert.Equal(t, "gpt-4.1", alt.Model)
}

func TestGetAlternate_NoOtherProviderFails(t *testing.T) {
	s := New("anthropic", []string{"anthropic"}, DefaultModelTable())
	primary, ok := s.Select(model.TierLight)
	require.True(t, ok)

	_, ok = s.GetAlternate(primary)
	assert.False(t, ok, "a single-provider deployment has no failover target")
}

func TestGetAlternate_NeverReturnsSameProvider(t *testing.T) {
	table := ModelTable{
		"anthropic": {model.TierLight: "a-light"},
		"openai":    {model.TierLight: "o-light"},
		"bedrock":   {model.TierLight: "b-light"},
	}
	s := New("anthropic", []string{"anthropic", "openai", "bedrock"}, table)
	primary, ok := s.Select(model.TierLight)
	require.True(t, ok)

	alt, ok := s.GetAlternate(primary)
	require.True(t, ok)
	assert.NotEqual(t, "anthropic", alt.Provider)
}
