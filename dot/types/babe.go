// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

// RandomnessLength is the length of the epoch randomness (32 bytes)
const RandomnessLength = 32

// Randomness is the per-epoch VRF randomness seed
type Randomness [RandomnessLength]byte

// SecondarySlots selects the secondary slot claiming policy for an epoch.
type SecondarySlots byte

const (
	// SecondarySlotsNone disables secondary claims: slots without a
	// primary winner stay empty.
	SecondarySlotsNone SecondarySlots = iota
	// SecondarySlotsPlain enables plain round-robin secondary claims.
	SecondarySlotsPlain
	// SecondarySlotsVRF enables VRF-mixed round-robin secondary claims.
	SecondarySlotsVRF
)

// BabeConfiguration contains the genesis data for block production
type BabeConfiguration struct {
	SlotDuration       uint64 // milliseconds
	EpochLength        uint64 // duration of epoch in slots
	C1                 uint64 // (c1/c2) is the probability of a slot being non-empty
	C2                 uint64
	GenesisAuthorities []AuthorityRaw
	Randomness         Randomness
	SecondarySlots     SecondarySlots
}

// EpochData is the authority set and randomness in effect for one epoch
type EpochData struct {
	Authorities []Authority
	Randomness  Randomness
}

// ToEpochDataRaw returns the EpochData with raw authority keys
func (d *EpochData) ToEpochDataRaw() *EpochDataRaw {
	return &EpochDataRaw{
		Authorities: AuthoritiesToRaw(d.Authorities),
		Randomness:  d.Randomness,
	}
}

// EpochDataRaw is an EpochData with undecoded authority keys
type EpochDataRaw struct {
	Authorities []AuthorityRaw
	Randomness  Randomness
}

// ToEpochData decodes the raw authority keys
func (d *EpochDataRaw) ToEpochData() (*EpochData, error) {
	auths, err := AuthoritiesFromRaw(d.Authorities)
	if err != nil {
		return nil, err
	}

	return &EpochData{
		Authorities: auths,
		Randomness:  d.Randomness,
	}, nil
}

// ConfigData is the threshold configuration in effect for one epoch
type ConfigData struct {
	C1             uint64
	C2             uint64
	SecondarySlots SecondarySlots
}
