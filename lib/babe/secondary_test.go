// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"testing"

	"github.com/arborchain/arbor/dot/types"

	"github.com/stretchr/testify/require"
)

func TestGetSecondarySlotAuthor(t *testing.T) {
	randomness := Randomness{7}

	first, err := getSecondarySlotAuthor(77, 4, randomness)
	require.NoError(t, err)
	require.Less(t, first, uint32(4))

	// deterministic for the same inputs
	again, err := getSecondarySlotAuthor(77, 4, randomness)
	require.NoError(t, err)
	require.Equal(t, first, again)

	_, err = getSecondarySlotAuthor(77, 0, randomness)
	require.ErrorIs(t, err, ErrUnknownAuthority)
}

func TestClaimSecondarySlot_Disabled(t *testing.T) {
	auths, keypairs := newTestAuthorities(t, 1, 1)

	_, err := claimSecondarySlot(Randomness{}, 1, 0, auths, keypairs[0], 0,
		types.SecondarySlotsNone)
	require.ErrorIs(t, err, errSecondarySlotsDisabled)
}

func TestClaimSecondarySlot_Plain(t *testing.T) {
	randomness := Randomness{3}
	auths, keypairs := newTestAuthorities(t, 1, 1, 1)

	const slot = 130
	author, err := getSecondarySlotAuthor(slot, len(auths), randomness)
	require.NoError(t, err)

	// the round-robin author claims with no proof
	proof, err := claimSecondarySlot(randomness, slot, 0, auths,
		keypairs[author], author, types.SecondarySlotsPlain)
	require.NoError(t, err)
	require.Nil(t, proof)

	// everyone else is turned away
	other := (author + 1) % uint32(len(auths))
	_, err = claimSecondarySlot(randomness, slot, 0, auths,
		keypairs[other], other, types.SecondarySlotsPlain)
	require.ErrorIs(t, err, errNotOurTurnToPropose)
}

func TestClaimSecondarySlot_VRF(t *testing.T) {
	randomness := Randomness{4}
	auths, keypairs := newTestAuthorities(t, 1, 1, 1)

	const slot = 131
	const epoch = 2
	author, err := getSecondarySlotAuthor(slot, len(auths), randomness)
	require.NoError(t, err)

	proof, err := claimSecondarySlot(randomness, slot, epoch, auths,
		keypairs[author], author, types.SecondarySlotsVRF)
	require.NoError(t, err)
	require.NotNil(t, proof)

	digest := types.NewBabeSecondaryVRFPreDigest(author, slot, proof.output, proof.proof)
	ok, err := verifySecondarySlotVRF(digest, auths[author].Key, epoch,
		len(auths), randomness)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifySecondarySlotPlain(t *testing.T) {
	randomness := Randomness{5}
	const slot = 20

	expected, err := getSecondarySlotAuthor(slot, 3, randomness)
	require.NoError(t, err)

	err = verifySecondarySlotPlain(expected, slot, 3, randomness)
	require.NoError(t, err)

	wrong := (expected + 1) % 3
	err = verifySecondarySlotPlain(wrong, slot, 3, randomness)
	require.ErrorIs(t, err, ErrBadSecondarySlotClaim)
}
