//go:build property

package breaker

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/flapboard/contentcore/pkg/model"
)

// TestPropertyRecordFailureThresholdOpensCircuit checks spec invariant 1:
// for all sequences of circuit operations, after recordFailure(id) is
// called N >= threshold times on an "on" provider circuit, the next
// isCircuitOpen(id) returns true.
func TestPropertyRecordFailureThresholdOpensCircuit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		threshold := uint64(rapid.IntRange(1, 10).Draw(t, "threshold"))
		extra := uint64(rapid.IntRange(0, 5).Draw(t, "extra"))

		svc := New(newFakeStore(), testLogger(), nil)
		def := model.CircuitDefinition{
			CircuitID:        "provider:anthropic",
			CircuitType:      model.CircuitProvider,
			DefaultState:     model.CircuitOn,
			FailureThreshold: threshold,
		}
		svc.InitializeCircuit(context.Background(), def)

		for i := uint64(0); i < threshold+extra; i++ {
			svc.RecordFailure(def.CircuitID)
		}

		if !svc.IsCircuitOpen(def.CircuitID) {
			t.Fatalf("expected circuit open after %d failures (threshold %d)", threshold+extra, threshold)
		}
	})
}

// TestPropertyInitializeCircuitIgnoresSecondDefaultState checks spec
// invariant 2: initializeCircuit(def) called twice with different
// defaultState does not change the stored state.
func TestPropertyInitializeCircuitIgnoresSecondDefaultState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := "manual:" + rapid.StringOfN(rapid.SampledFrom([]rune("abcdefghijklmnopqrstuvwxyz")), 3, 10, -1).Draw(t, "id")
		states := []model.CircuitState{model.CircuitOn, model.CircuitOff}
		first := rapid.SampledFrom(states).Draw(t, "first")
		second := rapid.SampledFrom(states).Draw(t, "second")

		svc := New(newFakeStore(), testLogger(), nil)
		svc.InitializeCircuit(context.Background(), model.CircuitDefinition{
			CircuitID:        id,
			CircuitType:      model.CircuitManual,
			DefaultState:     first,
			FailureThreshold: 3,
		})
		before := svc.GetState(id).State

		svc.InitializeCircuit(context.Background(), model.CircuitDefinition{
			CircuitID:        id,
			CircuitType:      model.CircuitManual,
			DefaultState:     second,
			FailureThreshold: 3,
		})
		after := svc.GetState(id).State

		if before != after {
			t.Fatalf("state changed from %v to %v across re-initialization with a different default", before, after)
		}
	})
}
