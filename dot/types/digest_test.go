// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"testing"

	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"

	"github.com/stretchr/testify/require"
)

func TestDecodeBabePreDigest(t *testing.T) {
	primary := NewBabePrimaryPreDigest(1, 301, [32]byte{0x01}, [64]byte{0x02})
	preRuntime, err := primary.ToPreRuntimeDigest()
	require.NoError(t, err)
	require.Equal(t, BabeEngineID, preRuntime.ConsensusEngineID)

	decoded, err := DecodeBabePreDigest(preRuntime.Data)
	require.NoError(t, err)
	require.Equal(t, primary, decoded)
	require.True(t, decoded.IsPrimary())
	require.Equal(t, uint64(301), decoded.GetSlotNumber())

	secondary := NewBabeSecondaryPlainPreDigest(0, 302)
	preRuntime, err = secondary.ToPreRuntimeDigest()
	require.NoError(t, err)

	decoded, err = DecodeBabePreDigest(preRuntime.Data)
	require.NoError(t, err)
	require.Equal(t, secondary, decoded)
	require.False(t, decoded.IsPrimary())
}

func TestDecodeBabeConsensusDigest(t *testing.T) {
	kp, err := sr25519.GenerateKeypair()
	require.NoError(t, err)

	auth := NewAuthority(kp.Public().(*sr25519.PublicKey), 1)
	next := NextEpochData{
		Authorities: AuthoritiesToRaw([]Authority{auth}),
		Randomness:  Randomness{0x0a},
	}

	consensus, err := next.ToConsensusDigest()
	require.NoError(t, err)
	require.Equal(t, BabeEngineID, consensus.ConsensusEngineID)

	decoded, err := DecodeBabeConsensusDigest(consensus.Data)
	require.NoError(t, err)
	require.Equal(t, next, decoded)

	config := NextConfigData{C1: 1, C2: 4, SecondarySlots: SecondarySlotsPlain}
	consensus, err = config.ToConsensusDigest()
	require.NoError(t, err)

	decoded, err = DecodeBabeConsensusDigest(consensus.Data)
	require.NoError(t, err)
	require.Equal(t, config, decoded)
}

func TestHeaderEncodeDecode(t *testing.T) {
	pre, err := NewBabeSecondaryPlainPreDigest(0, 77).ToPreRuntimeDigest()
	require.NoError(t, err)

	digest := NewDigest(pre, &SealDigest{
		ConsensusEngineID: BabeEngineID,
		Data:              []byte{0xde, 0xad},
	})

	header := NewHeader(common.Hash{1}, common.Hash{2}, common.Hash{3}, 10, digest)

	enc, err := header.Encode()
	require.NoError(t, err)

	decoded, err := DecodeHeader(enc)
	require.NoError(t, err)
	require.Equal(t, header.Hash(), decoded.Hash())
	require.Equal(t, header.Digest, decoded.Digest)
	require.Equal(t, uint(10), decoded.Number)
}

func TestHeaderHashChangesWithDigest(t *testing.T) {
	headerA := NewHeader(common.Hash{1}, common.Hash{}, common.Hash{}, 1, NewDigest())
	headerB := NewHeader(common.Hash{1}, common.Hash{}, common.Hash{}, 1, NewDigest(
		NewBABEPreRuntimeDigest([]byte{0x01}),
	))
	require.NotEqual(t, headerA.Hash(), headerB.Hash())
}
