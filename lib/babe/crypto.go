// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto"
	"github.com/arborchain/arbor/lib/crypto/sr25519"

	"github.com/gtank/merlin"
)

var babeVRFPrefix = []byte("substrate-babe-vrf")

func makeTranscript(randomness Randomness, slot, epoch uint64) *merlin.Transcript {
	t := merlin.NewTranscript("BABE")
	crypto.AppendUint64(t, []byte("slot number"), slot)
	crypto.AppendUint64(t, []byte("current epoch"), epoch)
	t.AppendMessage([]byte("chain randomness"), randomness[:])
	return t
}

// claimPrimarySlot runs the slot lottery for the given slot. If the slot
// cannot be claimed, the wrapped error errOverPrimarySlotThreshold is
// returned.
func claimPrimarySlot(randomness Randomness,
	slot, epoch uint64,
	threshold *common.Uint128,
	keypair *sr25519.Keypair,
) (*VrfOutputAndProof, error) {
	transcript := makeTranscript(randomness, slot, epoch)

	out, proof, err := keypair.VrfSign(transcript)
	if err != nil {
		return nil, err
	}

	logger.Tracef("claimPrimarySlot pub=%s slot=%d epoch=%d output=0x%x proof=0x%x",
		keypair.Public().Hex(), slot, epoch, out, proof)

	ok, err := checkPrimaryThreshold(randomness, slot, epoch, out, threshold,
		keypair.Public().(*sr25519.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to compare with threshold: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: for slot %d, epoch %d and threshold %s",
			errOverPrimarySlotThreshold, slot, epoch, threshold)
	}

	return &VrfOutputAndProof{
		output: out,
		proof:  proof,
	}, nil
}

// checkPrimaryThreshold returns true if the given VRF output authorises the
// authority to produce a primary block in the given slot and epoch
func checkPrimaryThreshold(randomness Randomness,
	slot, epoch uint64,
	output [sr25519.VRFOutputLength]byte,
	threshold *common.Uint128,
	pub *sr25519.PublicKey,
) (bool, error) {
	t := makeTranscript(randomness, slot, epoch)
	inout, err := sr25519.AttachInput(output, pub, t)
	if err != nil {
		return false, fmt.Errorf("attaching sr25519 input: %w", err)
	}

	const size = 16
	res, err := inout.MakeBytes(size, babeVRFPrefix)
	if err != nil {
		return false, fmt.Errorf("making sr25519 bytes: %w", err)
	}

	inoutUint, err := common.NewUint128FromLEBytes(res)
	if err != nil {
		return false, fmt.Errorf("converting bytes to Uint128: %w", err)
	}

	logger.Tracef(
		"checkPrimaryThreshold pub=%s randomness=0x%x slot=%d epoch=%d threshold=%s output=0x%x inout=0x%x",
		pub.Hex(), randomness, slot, epoch, threshold, output, res)

	return inoutUint.Compare(threshold) < 0, nil
}

// CalculateThreshold calculates the primary slot lottery threshold for one
// authority, weighted by its share of the total authority weight.
// equation: threshold = 2^128 * (1 - (1-c)^(weight/totalWeight))
func CalculateThreshold(c1, c2, weight, totalWeight uint64) (*common.Uint128, error) {
	if c1 == 0 || c2 == 0 {
		return nil, ErrThresholdOneIsZero
	}
	c := float64(c1) / float64(c2)
	if c > 1 {
		return nil, errors.New("invalid C1/C2: greater than 1")
	}

	if weight == 0 || totalWeight == 0 || weight > totalWeight {
		return nil, fmt.Errorf("invalid authority weight %d of total %d", weight, totalWeight)
	}

	// weight/totalWeight
	theta := float64(weight) / float64(totalWeight)

	// (1-c)^(theta)
	pp := 1 - c
	ppExp := math.Pow(pp, theta)

	// 1 - (1-c)^(theta)
	p := 1 - ppExp
	pRat := new(big.Rat).SetFloat64(p)

	// 1 << 128
	shift := new(big.Int).Lsh(big.NewInt(1), 128)
	numer := new(big.Int).Mul(shift, pRat.Num())
	denom := pRat.Denom()

	// (1 << 128) * (1 - (1-c)^(weight/totalWeight))
	thresholdBig := new(big.Int).Div(numer, denom)

	// case where the threshold is the maximum, ie. c = 1
	if thresholdBig.Cmp(shift) >= 0 {
		return common.MaxUint128, nil
	}

	if len(thresholdBig.Bytes()) > 16 {
		return nil, errors.New("threshold must be under or equal to 16 bytes")
	}

	return common.NewUint128FromBigInt(thresholdBig)
}

// thresholdForAuthority computes the threshold of the authority at the
// given index in the set
func thresholdForAuthority(c1, c2 uint64, authorities []types.Authority,
	authorityIndex uint32) (*common.Uint128, error) {
	if int(authorityIndex) >= len(authorities) {
		return nil, fmt.Errorf("%w: index %d of %d authorities",
			ErrUnknownAuthority, authorityIndex, len(authorities))
	}

	return CalculateThreshold(c1, c2,
		authorities[authorityIndex].Weight, types.TotalWeight(authorities))
}
