// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

// BabeEquivocationProof proves that an authority produced more than one
// block in the same slot. The proof is the two distinct headers, both
// independently validly sealed by the offender.
type BabeEquivocationProof struct {
	// Offender is the public key of the equivocator.
	Offender AuthorityID
	// Slot is the slot at which the equivocation happened.
	Slot uint64
	// FirstHeader is the first header involved in the equivocation.
	FirstHeader Header
	// SecondHeader is the second header involved in the equivocation.
	SecondHeader Header
}
