// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
)

// RandomnessAccumulator folds the VRF outputs of blocks produced during
// one epoch into the randomness of the next. Randomness for epoch N is a
// pure function of epoch N-1's outputs, so no block within epoch N can
// influence it.
type RandomnessAccumulator struct {
	mu sync.Mutex
	// epoch whose blocks are currently being accumulated
	epoch   uint64
	current Randomness
	outputs [][sr25519.VRFOutputLength]byte
}

// NewRandomnessAccumulator starts accumulating outputs of the given
// epoch, folding over that epoch's own randomness
func NewRandomnessAccumulator(epoch uint64, current Randomness) *RandomnessAccumulator {
	return &RandomnessAccumulator{
		epoch:   epoch,
		current: current,
	}
}

// Accumulate folds one block's VRF output into the accumulator. Called
// once per authored or verified block of the accumulating epoch.
func (r *RandomnessAccumulator) Accumulate(output [sr25519.VRFOutputLength]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, output)
}

// NextEpochRandomness returns the randomness the accumulator would freeze
// for the next epoch, without resetting. Pending outputs are folded in
// after the accumulated ones: the block announcing the next epoch counts
// its own output, which only reaches Accumulate once the block passes
// verification.
func (r *RandomnessAccumulator) NextEpochRandomness(
	pending ...[sr25519.VRFOutputLength]byte) Randomness {
	r.mu.Lock()
	defer r.mu.Unlock()

	outputs := r.outputs
	if len(pending) > 0 {
		outputs = make([][sr25519.VRFOutputLength]byte, 0, len(r.outputs)+len(pending))
		outputs = append(outputs, r.outputs...)
		outputs = append(outputs, pending...)
	}
	return computeEpochRandomness(r.current, r.epoch, outputs)
}

// FinalizeEpochRandomness freezes the accumulator into the randomness of
// the given epoch and resets the accumulator for that epoch's blocks.
// The given epoch must immediately follow the accumulating epoch: calling
// out of order is a programming-invariant violation and panics.
func (r *RandomnessAccumulator) FinalizeEpochRandomness(epoch uint64) Randomness {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch+1 {
		panic(fmt.Sprintf(
			"out-of-order epoch randomness finalisation: accumulating epoch %d, finalising epoch %d",
			r.epoch, epoch))
	}

	next := computeEpochRandomness(r.current, r.epoch, r.outputs)

	r.epoch = epoch
	r.current = next
	r.outputs = nil

	return next
}

// AdoptEpochRandomness replaces the next epoch's randomness with the
// value announced on the chain, discarding outputs accumulated from
// competing forks, and resets the accumulator for the new epoch's blocks.
// The same in-order constraint as FinalizeEpochRandomness applies.
func (r *RandomnessAccumulator) AdoptEpochRandomness(epoch uint64, randomness Randomness) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if epoch != r.epoch+1 {
		panic(fmt.Sprintf(
			"out-of-order epoch randomness adoption: accumulating epoch %d, adopting epoch %d",
			r.epoch, epoch))
	}

	r.epoch = epoch
	r.current = randomness
	r.outputs = nil
}

// SkipTo finalises randomness for every epoch after the accumulating one
// up to and including the given epoch, in order. Skipped epochs saw no
// blocks, so they contribute no outputs. Returns the randomness of the
// given epoch.
func (r *RandomnessAccumulator) SkipTo(epoch uint64) Randomness {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.epoch < epoch {
		r.current = computeEpochRandomness(r.current, r.epoch, r.outputs)
		r.epoch++
		r.outputs = nil
	}
	return r.current
}

// computeEpochRandomness hashes the current randomness, the accumulated
// epoch's index and each VRF output into the next randomness seed
func computeEpochRandomness(current Randomness, accumulatedEpoch uint64,
	outputs [][sr25519.VRFOutputLength]byte) Randomness {
	epochEncoded := make([]byte, 8)
	binary.LittleEndian.PutUint64(epochEncoded, accumulatedEpoch)

	data := make([]byte, 0, len(current)+8+len(outputs)*sr25519.VRFOutputLength)
	data = append(data, current[:]...)
	data = append(data, epochEncoded...)
	for _, output := range outputs {
		data = append(data, output[:]...)
	}

	return Randomness(common.MustBlake2bHash(data))
}
