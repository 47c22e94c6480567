package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable_MatchesTheSpecTaxonomy(t *testing.T) {
	cases := []struct {
		kind      Kind
		retryable bool
	}{
		{KindRateLimit, true},
		{KindOverloaded, true},
		{KindTransient, true},
		{KindValidationFailed, true},
		{KindAuthentication, false},
		{KindInvalidRequest, false},
		{KindCircuitOpen, false},
		{KindNoAlternate, false},
		{KindStoreUnavailable, false},
		{KindBusDisconnected, false},
	}
	for _, c := range cases {
		err := New(c.kind, "op", "msg")
		assert.Equal(t, c.retryable, IsRetryable(err), "kind %s", c.kind)
	}
}

func TestIsRetryable_NilAndPlainErrorsAreNotRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestKindOf_DefaultsToTransientForUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, KindTransient, KindOf(errors.New("plain")))
}

func TestKindOf_ExtractsTaggedKind(t *testing.T) {
	err := New(KindRateLimit, "op", "msg")
	assert.Equal(t, KindRateLimit, KindOf(err))
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindTransient, "op", "wrapped", cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_IncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindTransient, "orchestrator.run", "generation failed", cause)
	assert.Contains(t, err.Error(), "root cause")
	assert.Contains(t, err.Error(), "orchestrator.run")
}

func TestWithRetryAfter_ReturnsSameErrorForChaining(t *testing.T) {
	err := New(KindRateLimit, "op", "msg")
	chained := err.WithRetryAfter(0)
	assert.Same(t, err, chained)
}
