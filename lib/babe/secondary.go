// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
)

// getSecondarySlotAuthor returns the index of the deterministic fallback
// author for the slot: blake2b(randomness ++ slot) mod numAuths
func getSecondarySlotAuthor(slot uint64, numAuths int, randomness Randomness) (uint32, error) {
	if numAuths == 0 {
		return 0, ErrUnknownAuthority
	}

	s := make([]byte, 8)
	binary.LittleEndian.PutUint64(s, slot)
	rand, err := common.Blake2bHash(append(randomness[:], s...))
	if err != nil {
		return 0, err
	}

	randBig := new(big.Int).SetBytes(rand[:])
	num := big.NewInt(int64(numAuths))

	idx := new(big.Int).Mod(randBig, num)
	return uint32(idx.Uint64()), nil
}

// claimSecondarySlot claims the slot if this authority is the round-robin
// fallback author, using the epoch's secondary slot policy. The returned
// proof is nil for a plain claim.
func claimSecondarySlot(randomness Randomness,
	slot, epoch uint64,
	authorities []types.Authority,
	keypair *sr25519.Keypair,
	authorityIndex uint32,
	policy types.SecondarySlots,
) (*VrfOutputAndProof, error) {
	if policy == types.SecondarySlotsNone {
		return nil, errSecondarySlotsDisabled
	}

	secondarySlotAuthor, err := getSecondarySlotAuthor(slot, len(authorities), randomness)
	if err != nil {
		return nil, fmt.Errorf("cannot get secondary slot author: %w", err)
	}

	if authorityIndex != secondarySlotAuthor {
		return nil, errNotOurTurnToPropose
	}

	if policy == types.SecondarySlotsPlain {
		logger.Debugf("claimed plain secondary slot, for slot number: %d", slot)
		return nil, nil
	}

	transcript := makeTranscript(randomness, slot, epoch)
	out, proof, err := keypair.VrfSign(transcript)
	if err != nil {
		return nil, fmt.Errorf("cannot sign transcript: %w", err)
	}

	logger.Debugf("claimed VRF secondary slot, for slot number: %d", slot)
	return &VrfOutputAndProof{
		output: out,
		proof:  proof,
	}, nil
}

func verifySecondarySlotPlain(authorityIndex uint32, slot uint64, numAuths int,
	randomness Randomness) error {
	expected, err := getSecondarySlotAuthor(slot, numAuths, randomness)
	if err != nil {
		return err
	}

	logger.Tracef(
		"verifySecondarySlotPlain authority index %d, %d authorities, slot number %d, randomness 0x%x and expected index %d",
		authorityIndex, numAuths, slot, randomness, expected)

	if authorityIndex != expected {
		return ErrBadSecondarySlotClaim
	}

	return nil
}

func verifySecondarySlotVRF(digest *types.BabeSecondaryVRFPreDigest,
	pk *sr25519.PublicKey,
	epoch uint64,
	numAuths int,
	randomness Randomness,
) (bool, error) {
	expected, err := getSecondarySlotAuthor(digest.SlotNumber, numAuths, randomness)
	if err != nil {
		return false, err
	}

	logger.Tracef(
		"verifySecondarySlotVRF authority index %d, public key %s, %d authorities, slot number %d, epoch %d, randomness 0x%x and expected index %d",
		digest.AuthorityIndex, pk.Hex(), numAuths, digest.SlotNumber, epoch, randomness, expected)

	if digest.AuthorityIndex != expected {
		return false, ErrBadSecondarySlotClaim
	}

	t := makeTranscript(randomness, digest.SlotNumber, epoch)
	return pk.VrfVerify(t, digest.VrfOutput, digest.VrfProof)
}
