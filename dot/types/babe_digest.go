// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/arborchain/arbor/lib/crypto/sr25519"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

const (
	babePrimaryPreDigestType        = byte(1)
	babeSecondaryPlainPreDigestType = byte(2)
	babeSecondaryVRFPreDigestType   = byte(3)
)

// ErrUnknownPreDigestType is returned when decoding an unrecognised
// pre-runtime digest variant
var ErrUnknownPreDigestType = errors.New("invalid BABE pre-runtime digest type")

// BabePreDigest is one of BabePrimaryPreDigest, BabeSecondaryPlainPreDigest
// or BabeSecondaryVRFPreDigest.
type BabePreDigest interface {
	GetAuthorityIndex() uint32
	GetSlotNumber() uint64
	IsPrimary() bool
	ToPreRuntimeDigest() (*PreRuntimeDigest, error)
}

// BabePrimaryPreDigest is the claim of an authority that won the
// primary VRF lottery for the slot.
type BabePrimaryPreDigest struct {
	AuthorityIndex uint32
	SlotNumber     uint64
	VRFOutput      [sr25519.VRFOutputLength]byte
	VRFProof       [sr25519.VRFProofLength]byte
}

// NewBabePrimaryPreDigest returns a new BabePrimaryPreDigest
func NewBabePrimaryPreDigest(authorityIndex uint32, slotNumber uint64,
	vrfOutput [sr25519.VRFOutputLength]byte, vrfProof [sr25519.VRFProofLength]byte) *BabePrimaryPreDigest {
	return &BabePrimaryPreDigest{
		AuthorityIndex: authorityIndex,
		SlotNumber:     slotNumber,
		VRFOutput:      vrfOutput,
		VRFProof:       vrfProof,
	}
}

// GetAuthorityIndex returns the claiming authority's set index
func (d *BabePrimaryPreDigest) GetAuthorityIndex() uint32 { return d.AuthorityIndex }

// GetSlotNumber returns the claimed slot
func (d *BabePrimaryPreDigest) GetSlotNumber() uint64 { return d.SlotNumber }

// IsPrimary returns true: a primary claim carries full fork-choice weight
func (d *BabePrimaryPreDigest) IsPrimary() bool { return true }

// ToPreRuntimeDigest returns the claim wrapped in a PreRuntimeDigest
func (d *BabePrimaryPreDigest) ToPreRuntimeDigest() (*PreRuntimeDigest, error) {
	return encodePreDigest(babePrimaryPreDigestType, d)
}

// BabeSecondaryPlainPreDigest is the claim of the deterministic round-robin
// fallback author for a slot without a primary winner.
type BabeSecondaryPlainPreDigest struct {
	AuthorityIndex uint32
	SlotNumber     uint64
}

// NewBabeSecondaryPlainPreDigest returns a new BabeSecondaryPlainPreDigest
func NewBabeSecondaryPlainPreDigest(authorityIndex uint32, slotNumber uint64) *BabeSecondaryPlainPreDigest {
	return &BabeSecondaryPlainPreDigest{
		AuthorityIndex: authorityIndex,
		SlotNumber:     slotNumber,
	}
}

// GetAuthorityIndex returns the claiming authority's set index
func (d *BabeSecondaryPlainPreDigest) GetAuthorityIndex() uint32 { return d.AuthorityIndex }

// GetSlotNumber returns the claimed slot
func (d *BabeSecondaryPlainPreDigest) GetSlotNumber() uint64 { return d.SlotNumber }

// IsPrimary returns false
func (d *BabeSecondaryPlainPreDigest) IsPrimary() bool { return false }

// ToPreRuntimeDigest returns the claim wrapped in a PreRuntimeDigest
func (d *BabeSecondaryPlainPreDigest) ToPreRuntimeDigest() (*PreRuntimeDigest, error) {
	return encodePreDigest(babeSecondaryPlainPreDigestType, d)
}

// BabeSecondaryVRFPreDigest is a secondary claim carrying a VRF output,
// used when the epoch config enables VRF-mixed secondary slots.
type BabeSecondaryVRFPreDigest struct {
	AuthorityIndex uint32
	SlotNumber     uint64
	VrfOutput      [sr25519.VRFOutputLength]byte
	VrfProof       [sr25519.VRFProofLength]byte
}

// NewBabeSecondaryVRFPreDigest returns a new BabeSecondaryVRFPreDigest
func NewBabeSecondaryVRFPreDigest(authorityIndex uint32, slotNumber uint64,
	vrfOutput [sr25519.VRFOutputLength]byte, vrfProof [sr25519.VRFProofLength]byte) *BabeSecondaryVRFPreDigest {
	return &BabeSecondaryVRFPreDigest{
		AuthorityIndex: authorityIndex,
		SlotNumber:     slotNumber,
		VrfOutput:      vrfOutput,
		VrfProof:       vrfProof,
	}
}

// GetAuthorityIndex returns the claiming authority's set index
func (d *BabeSecondaryVRFPreDigest) GetAuthorityIndex() uint32 { return d.AuthorityIndex }

// GetSlotNumber returns the claimed slot
func (d *BabeSecondaryVRFPreDigest) GetSlotNumber() uint64 { return d.SlotNumber }

// IsPrimary returns false
func (d *BabeSecondaryVRFPreDigest) IsPrimary() bool { return false }

// ToPreRuntimeDigest returns the claim wrapped in a PreRuntimeDigest
func (d *BabeSecondaryVRFPreDigest) ToPreRuntimeDigest() (*PreRuntimeDigest, error) {
	return encodePreDigest(babeSecondaryVRFPreDigestType, d)
}

func encodePreDigest(variant byte, digest interface{}) (*PreRuntimeDigest, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := scale.NewEncoder(buffer)

	if err := encoder.PushByte(variant); err != nil {
		return nil, err
	}

	if err := encoder.Encode(digest); err != nil {
		return nil, err
	}

	return NewBABEPreRuntimeDigest(buffer.Bytes()), nil
}

// DecodeBabePreDigest decodes the input into one of the BABE
// pre-runtime digest variants
func DecodeBabePreDigest(in []byte) (BabePreDigest, error) {
	decoder := scale.NewDecoder(bytes.NewReader(in))

	variant, err := decoder.ReadOneByte()
	if err != nil {
		return nil, err
	}

	var digest BabePreDigest
	switch variant {
	case babePrimaryPreDigestType:
		digest = new(BabePrimaryPreDigest)
	case babeSecondaryPlainPreDigestType:
		digest = new(BabeSecondaryPlainPreDigest)
	case babeSecondaryVRFPreDigestType:
		digest = new(BabeSecondaryVRFPreDigest)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownPreDigestType, variant)
	}

	if err := decoder.Decode(digest); err != nil {
		return nil, err
	}
	return digest, nil
}
