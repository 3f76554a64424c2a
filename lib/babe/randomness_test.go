// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomnessAccumulator(t *testing.T) {
	acc := NewRandomnessAccumulator(0, Randomness{1})
	acc.Accumulate([32]byte{10})
	acc.Accumulate([32]byte{11})

	// the preview does not mutate the accumulator
	preview := acc.NextEpochRandomness()
	require.Equal(t, preview, acc.NextEpochRandomness())

	next := acc.FinalizeEpochRandomness(1)
	require.Equal(t, preview, next)
	require.NotEqual(t, Randomness{1}, next)
}

func TestRandomnessAccumulator_Deterministic(t *testing.T) {
	a := NewRandomnessAccumulator(4, Randomness{9})
	b := NewRandomnessAccumulator(4, Randomness{9})

	for _, out := range [][32]byte{{1}, {2}, {3}} {
		a.Accumulate(out)
		b.Accumulate(out)
	}

	require.Equal(t, a.FinalizeEpochRandomness(5), b.FinalizeEpochRandomness(5))
}

func TestRandomnessAccumulator_OrderMatters(t *testing.T) {
	a := NewRandomnessAccumulator(0, Randomness{})
	a.Accumulate([32]byte{1})
	a.Accumulate([32]byte{2})

	b := NewRandomnessAccumulator(0, Randomness{})
	b.Accumulate([32]byte{2})
	b.Accumulate([32]byte{1})

	require.NotEqual(t, a.FinalizeEpochRandomness(1), b.FinalizeEpochRandomness(1))
}

func TestRandomnessAccumulator_EpochIsolation(t *testing.T) {
	// once epoch 1's randomness is frozen, outputs of epoch 1's blocks
	// feed epoch 2 only
	acc := NewRandomnessAccumulator(0, Randomness{1})
	acc.Accumulate([32]byte{10})

	frozen := acc.FinalizeEpochRandomness(1)

	acc.Accumulate([32]byte{20})
	require.Equal(t, frozen, acc.current)

	later := acc.FinalizeEpochRandomness(2)
	require.NotEqual(t, frozen, later)
}

func TestRandomnessAccumulator_SkipTo(t *testing.T) {
	// skipping ahead must equal finalising each epoch in turn
	a := NewRandomnessAccumulator(0, Randomness{6})
	a.Accumulate([32]byte{1})
	skipped := a.SkipTo(3)

	b := NewRandomnessAccumulator(0, Randomness{6})
	b.Accumulate([32]byte{1})
	b.FinalizeEpochRandomness(1)
	b.FinalizeEpochRandomness(2)
	stepped := b.FinalizeEpochRandomness(3)

	require.Equal(t, stepped, skipped)

	// the accumulator resumes in order from the skipped-to epoch
	require.NotPanics(t, func() {
		a.FinalizeEpochRandomness(4)
	})
}

func TestRandomnessAccumulator_OutOfOrderFinalisePanics(t *testing.T) {
	acc := NewRandomnessAccumulator(0, Randomness{})

	require.Panics(t, func() {
		acc.FinalizeEpochRandomness(2)
	})

	acc.FinalizeEpochRandomness(1)
	require.Panics(t, func() {
		// repeated finalisation of the same epoch
		acc.FinalizeEpochRandomness(1)
	})
}

func TestRandomnessAccumulator_PendingOutputs(t *testing.T) {
	a := NewRandomnessAccumulator(0, Randomness{1})
	a.Accumulate([32]byte{10})

	// previewing with a pending output equals accumulating it first
	preview := a.NextEpochRandomness([32]byte{11})

	b := NewRandomnessAccumulator(0, Randomness{1})
	b.Accumulate([32]byte{10})
	b.Accumulate([32]byte{11})
	require.Equal(t, b.FinalizeEpochRandomness(1), preview)

	// the pending output is not retained
	a.Accumulate([32]byte{11})
	require.Equal(t, preview, a.FinalizeEpochRandomness(1))
}

func TestRandomnessAccumulator_Adopt(t *testing.T) {
	acc := NewRandomnessAccumulator(0, Randomness{})
	acc.Accumulate([32]byte{1})

	adopted := Randomness{0xab}
	acc.AdoptEpochRandomness(1, adopted)

	// the adopted value replaces the local fold and seeds the next epoch
	acc.Accumulate([32]byte{2})
	expected := computeEpochRandomness(adopted, 1, [][32]byte{{2}})
	require.Equal(t, expected, acc.FinalizeEpochRandomness(2))
}

func TestRandomnessAccumulator_OutOfOrderAdoptPanics(t *testing.T) {
	acc := NewRandomnessAccumulator(3, Randomness{})

	require.Panics(t, func() {
		acc.AdoptEpochRandomness(5, Randomness{1})
	})
	require.Panics(t, func() {
		acc.AdoptEpochRandomness(3, Randomness{1})
	})
}
