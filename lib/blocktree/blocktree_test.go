// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package blocktree

import (
	"testing"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"

	"github.com/stretchr/testify/require"
)

func newTestBlockTree(t *testing.T) (*BlockTree, *types.Header) {
	t.Helper()
	root := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, types.NewDigest())
	return NewBlockTreeFromRoot(root), root
}

// addChain extends the tree from parent with n blocks, one per slot
// starting at startSlot, all claimed the same way. It returns the headers.
func addChain(t *testing.T, bt *BlockTree, parent *types.Header,
	n int, startSlot uint64, isPrimary bool) []*types.Header {
	t.Helper()

	headers := make([]*types.Header, 0, n)
	for i := 0; i < n; i++ {
		slot := startSlot + uint64(i)
		// key the digest on the slot so sibling headers at the same
		// number hash differently
		d := types.NewDigest(types.NewBABEPreRuntimeDigest([]byte{byte(slot)}))

		header := types.NewHeader(parent.Hash(), common.Hash{}, common.Hash{},
			parent.Number+1, d)
		err := bt.AddBlock(header, slot, isPrimary, time.Unix(int64(i), 0))
		require.NoError(t, err)

		headers = append(headers, header)
		parent = header
	}

	return headers
}

func TestBlockTree_AddBlock(t *testing.T) {
	bt, root := newTestBlockTree(t)
	chain := addChain(t, bt, root, 3, 1, true)

	require.True(t, bt.Has(chain[2].Hash()))
	require.Equal(t, []common.Hash{chain[2].Hash()}, bt.Leaves())
}

func TestBlockTree_AddBlock_ParentNotFound(t *testing.T) {
	bt, _ := newTestBlockTree(t)

	header := types.NewHeader(common.MustHexToHash(
		"0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"),
		common.Hash{}, common.Hash{}, 1, types.NewDigest())
	err := bt.AddBlock(header, 1, true, time.Now())
	require.ErrorIs(t, err, ErrParentNotFound)
}

func TestBlockTree_AddBlock_BlockExists(t *testing.T) {
	bt, root := newTestBlockTree(t)
	chain := addChain(t, bt, root, 1, 1, true)

	err := bt.AddBlock(chain[0], 1, true, time.Now())
	require.ErrorIs(t, err, ErrBlockExists)
}

func TestBlockTree_AddBlock_SlotNotIncreasing(t *testing.T) {
	bt, root := newTestBlockTree(t)
	chain := addChain(t, bt, root, 1, 5, true)

	header := types.NewHeader(chain[0].Hash(), common.Hash{}, common.Hash{},
		2, types.NewDigest())
	err := bt.AddBlock(header, 5, true, time.Now())
	require.ErrorIs(t, err, ErrSlotNotIncreasing)

	err = bt.AddBlock(header, 4, true, time.Now())
	require.ErrorIs(t, err, ErrSlotNotIncreasing)

	err = bt.AddBlock(header, 6, true, time.Now())
	require.NoError(t, err)
}

func TestBlockTree_BestBlock_PrimaryWeight(t *testing.T) {
	bt, root := newTestBlockTree(t)

	// a longer chain of secondary claims loses to a shorter primary chain
	secondary := addChain(t, bt, root, 4, 1, false)
	primary := addChain(t, bt, root, 2, 10, true)

	require.Equal(t, primary[1].Hash(), bt.BestBlockHash())
	require.NotEqual(t, secondary[3].Hash(), bt.BestBlockHash())
}

func TestBlockTree_BestBlock_TieBreakByNumber(t *testing.T) {
	bt, root := newTestBlockTree(t)

	// equal primary weight, the longer chain wins
	short := addChain(t, bt, root, 2, 1, true)
	long := addChain(t, bt, root, 2, 10, true)
	longer := addChain(t, bt, long[1], 2, 20, false)

	require.Equal(t, longer[1].Hash(), bt.BestBlockHash())
	require.True(t, bt.Has(short[1].Hash()))
}

func TestBlockTree_BestBlock_TieBreakByArrival(t *testing.T) {
	bt, root := newTestBlockTree(t)

	first := types.NewHeader(root.Hash(), common.Hash{}, common.Hash{}, 1,
		types.NewDigest(types.NewBABEPreRuntimeDigest([]byte{1})))
	err := bt.AddBlock(first, 1, true, time.Unix(100, 0))
	require.NoError(t, err)

	second := types.NewHeader(root.Hash(), common.Hash{}, common.Hash{}, 1,
		types.NewDigest(types.NewBABEPreRuntimeDigest([]byte{2})))
	err = bt.AddBlock(second, 1, true, time.Unix(200, 0))
	require.NoError(t, err)

	// same weight and number, earliest arrival wins
	require.Equal(t, first.Hash(), bt.BestBlockHash())
}

func TestBlockTree_IsDescendantOf(t *testing.T) {
	bt, root := newTestBlockTree(t)
	chain := addChain(t, bt, root, 3, 1, true)
	fork := addChain(t, bt, root, 2, 10, false)

	is, err := bt.IsDescendantOf(root.Hash(), chain[2].Hash())
	require.NoError(t, err)
	require.True(t, is)

	is, err = bt.IsDescendantOf(chain[2].Hash(), chain[2].Hash())
	require.NoError(t, err)
	require.True(t, is)

	is, err = bt.IsDescendantOf(chain[0].Hash(), fork[1].Hash())
	require.NoError(t, err)
	require.False(t, is)

	_, err = bt.IsDescendantOf(common.Hash{0xff}, chain[0].Hash())
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestBlockTree_HighestCommonAncestor(t *testing.T) {
	bt, root := newTestBlockTree(t)
	chain := addChain(t, bt, root, 2, 1, true)
	forkA := addChain(t, bt, chain[1], 2, 10, true)
	forkB := addChain(t, bt, chain[1], 2, 20, false)

	ancestor, err := bt.HighestCommonAncestor(forkA[1].Hash(), forkB[1].Hash())
	require.NoError(t, err)
	require.Equal(t, chain[1].Hash(), ancestor)

	ancestor, err = bt.HighestCommonAncestor(forkA[1].Hash(), chain[0].Hash())
	require.NoError(t, err)
	require.Equal(t, chain[0].Hash(), ancestor)
}

func TestBlockTree_Prune(t *testing.T) {
	bt, root := newTestBlockTree(t)
	chain := addChain(t, bt, root, 3, 1, true)
	fork := addChain(t, bt, chain[0], 3, 10, false)

	pruned := bt.Prune(chain[1].Hash())

	// the fork off chain[0] and the old root are gone, the finalised
	// block's descendants survive
	require.Contains(t, pruned, root.Hash())
	for _, header := range fork {
		require.Contains(t, pruned, header.Hash())
	}
	require.NotContains(t, pruned, chain[1].Hash())
	require.NotContains(t, pruned, chain[2].Hash())

	require.False(t, bt.Has(fork[2].Hash()))
	require.True(t, bt.Has(chain[2].Hash()))
	require.Equal(t, chain[2].Hash(), bt.BestBlockHash())
	require.Equal(t, []common.Hash{chain[2].Hash()}, bt.Leaves())
}

func TestBlockTree_GetHashByNumber(t *testing.T) {
	bt, root := newTestBlockTree(t)
	chain := addChain(t, bt, root, 3, 1, true)
	// a heavier fork should not affect lookups below the divergence
	addChain(t, bt, root, 1, 10, false)

	hash, err := bt.GetHashByNumber(2)
	require.NoError(t, err)
	require.Equal(t, chain[1].Hash(), hash)

	_, err = bt.GetHashByNumber(10)
	require.ErrorIs(t, err, ErrNodeNotFound)
}
