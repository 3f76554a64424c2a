// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package forks

import (
	"fmt"

	"github.com/arborchain/arbor/dot/types"
)

// EpochChange is a pending epoch transition announced in a block's
// consensus digest, anchored to the announcing block and activating at
// StartSlot.
type EpochChange struct {
	// EpochIndex is the index of the epoch this change begins
	EpochIndex uint64
	// StartSlot is the first slot at which this change is active
	StartSlot uint64
	// Authorities is the authority set for the new epoch
	Authorities []types.Authority
	// Randomness is the accumulated randomness for the new epoch
	Randomness types.Randomness
	// Config is the threshold configuration for the new epoch; nil means
	// the configuration of the governing ancestor change is inherited
	Config *types.ConfigData
}

func (ec *EpochChange) String() string {
	return fmt.Sprintf("epoch=%d startSlot=%d authorities=%d",
		ec.EpochIndex, ec.StartSlot, len(ec.Authorities))
}

// Epoch is the fully resolved consensus context of one epoch on one fork:
// an EpochChange with its inherited configuration materialised.
type Epoch struct {
	Index       uint64
	StartSlot   uint64
	Authorities []types.Authority
	Randomness  types.Randomness
	Config      types.ConfigData
}

// Threshold parameters for the epoch as a (C1, C2) rational
func (e *Epoch) Threshold() (c1, c2 uint64) {
	return e.Config.C1, e.Config.C2
}
