// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"fmt"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
)

// Randomness is an alias for a byte array with length types.RandomnessLength
type Randomness = [types.RandomnessLength]byte

// VrfOutputAndProof represents the fields for VRF output and proof
type VrfOutputAndProof struct {
	output [sr25519.VRFOutputLength]byte
	proof  [sr25519.VRFProofLength]byte
}

// Slot represents a production slot
type Slot struct {
	start    time.Time
	duration time.Duration
	number   uint64
}

// NewSlot returns a new Slot
func NewSlot(start time.Time, duration time.Duration, number uint64) *Slot {
	return &Slot{
		start:    start,
		duration: duration,
		number:   number,
	}
}

// Number returns the slot number
func (s Slot) Number() uint64 {
	return s.number
}

// Authorities is an alias for []types.Authority
type Authorities []types.Authority

// String returns the Authorities as a formatted string
func (d Authorities) String() string {
	str := ""
	for _, di := range []types.Authority(d) {
		str = str + fmt.Sprintf("[key=0x%x weight=%d] ", di.Key.Encode(), di.Weight)
	}
	return str
}

// constants are the slot timing parameters, fixed at genesis
type constants struct {
	slotDuration time.Duration
	epochLength  uint64
}

// epochData is the consensus context claims are made under: the epoch
// change governing the fork being built on. Its index can trail the
// wall-clock epoch when no change has activated on the fork yet.
type epochData struct {
	index          uint64
	randomness     Randomness
	authorityIndex uint32
	authorities    []types.Authority
	threshold      *common.Uint128
	secondarySlots types.SecondarySlots
}

func (ed *epochData) String() string {
	return fmt.Sprintf("index=%d randomness=%x authorityIndex=%d authorities=%v threshold=%s",
		ed.index,
		ed.randomness,
		ed.authorityIndex,
		ed.authorities,
		ed.threshold,
	)
}
