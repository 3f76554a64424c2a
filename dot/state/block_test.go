// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"testing"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"

	"github.com/stretchr/testify/require"
)

func newTestBlockState(t *testing.T) (*BlockState, *types.Header) {
	t.Helper()

	genesis := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{},
		0, types.NewDigest())
	bs, err := NewBlockStateFromGenesis(NewInMemoryDB(t), genesis)
	require.NoError(t, err)

	return bs, genesis
}

// newTestHeader returns a header claiming the given slot with a primary
// or secondary-plain pre-digest
func newTestHeader(t *testing.T, parent *types.Header, slot uint64,
	isPrimary bool) *types.Header {
	t.Helper()

	var babeDigest types.BabePreDigest
	if isPrimary {
		babeDigest = types.NewBabePrimaryPreDigest(0, slot, [32]byte{}, [64]byte{})
	} else {
		babeDigest = types.NewBabeSecondaryPlainPreDigest(0, slot)
	}

	pre, err := babeDigest.ToPreRuntimeDigest()
	require.NoError(t, err)

	return types.NewHeader(parent.Hash(), common.Hash{}, common.Hash{},
		parent.Number+1, types.NewDigest(pre))
}

func TestBlockState_AddBlock(t *testing.T) {
	bs, genesis := newTestBlockState(t)

	header := newTestHeader(t, genesis, 1, true)
	err := bs.AddBlock(header, time.Now())
	require.NoError(t, err)

	stored, err := bs.GetHeader(header.Hash())
	require.NoError(t, err)
	require.Equal(t, header.Hash(), stored.Hash())
	require.Equal(t, header.Number, stored.Number)

	require.Equal(t, header.Hash(), bs.BestBlockHash())

	slot, err := bs.GetSlotForBlock(header.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(1), slot)
}

func TestBlockState_AddBlock_NoPreDigest(t *testing.T) {
	bs, genesis := newTestBlockState(t)

	header := types.NewHeader(genesis.Hash(), common.Hash{}, common.Hash{},
		1, types.NewDigest())
	err := bs.AddBlock(header, time.Now())
	require.ErrorIs(t, err, ErrMissingPreRuntimeDigest)
}

func TestBlockState_GetHeader_NotFound(t *testing.T) {
	bs, _ := newTestBlockState(t)

	_, err := bs.GetHeader(common.Hash{0x01})
	require.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestBlockState_BestChainByPrimaryWeight(t *testing.T) {
	bs, genesis := newTestBlockState(t)

	// fork A: two secondary blocks; fork B: one primary block
	a1 := newTestHeader(t, genesis, 1, false)
	require.NoError(t, bs.AddBlock(a1, time.Now()))
	a2 := newTestHeader(t, a1, 2, false)
	require.NoError(t, bs.AddBlock(a2, time.Now()))

	b1 := newTestHeader(t, genesis, 3, true)
	require.NoError(t, bs.AddBlock(b1, time.Now()))

	require.Equal(t, b1.Hash(), bs.BestBlockHash())

	best, err := bs.BestBlockHeader()
	require.NoError(t, err)
	require.Equal(t, b1.Hash(), best.Hash())
}

func TestBlockState_Finalise(t *testing.T) {
	bs, genesis := newTestBlockState(t)

	a1 := newTestHeader(t, genesis, 1, true)
	require.NoError(t, bs.AddBlock(a1, time.Now()))
	a2 := newTestHeader(t, a1, 2, true)
	require.NoError(t, bs.AddBlock(a2, time.Now()))

	b1 := newTestHeader(t, genesis, 3, false)
	require.NoError(t, bs.AddBlock(b1, time.Now()))

	err := bs.Finalise(a1.Hash())
	require.NoError(t, err)

	finalised, err := bs.GetFinalisedHash()
	require.NoError(t, err)
	require.Equal(t, a1.Hash(), finalised)

	// the competing fork is gone from the tree, its header stays stored
	require.False(t, bs.HasBlock(b1.Hash()))
	require.True(t, bs.HasBlock(a2.Hash()))

	has, err := bs.HasHeader(b1.Hash())
	require.NoError(t, err)
	require.True(t, has)
}

func TestBlockState_IsDescendantOf(t *testing.T) {
	bs, genesis := newTestBlockState(t)

	a1 := newTestHeader(t, genesis, 1, true)
	require.NoError(t, bs.AddBlock(a1, time.Now()))
	b1 := newTestHeader(t, genesis, 2, false)
	require.NoError(t, bs.AddBlock(b1, time.Now()))

	is, err := bs.IsDescendantOf(genesis.Hash(), a1.Hash())
	require.NoError(t, err)
	require.True(t, is)

	is, err = bs.IsDescendantOf(a1.Hash(), b1.Hash())
	require.NoError(t, err)
	require.False(t, is)
}
