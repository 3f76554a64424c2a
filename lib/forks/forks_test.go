// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package forks

import (
	"testing"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"

	"github.com/stretchr/testify/require"
)

// testAncestry is an in-memory parent map implementing Ancestry
type testAncestry struct {
	parents map[common.Hash]common.Hash
	removed map[common.Hash]bool
}

func newTestAncestry() *testAncestry {
	return &testAncestry{
		parents: make(map[common.Hash]common.Hash),
		removed: make(map[common.Hash]bool),
	}
}

func (a *testAncestry) addBlock(hash, parent common.Hash) {
	a.parents[hash] = parent
}

func (a *testAncestry) IsDescendantOf(ancestor, child common.Hash) (bool, error) {
	for curr := child; ; {
		if curr == ancestor {
			return true, nil
		}
		parent, ok := a.parents[curr]
		if !ok {
			return false, nil
		}
		curr = parent
	}
}

func (a *testAncestry) HasBlock(hash common.Hash) bool {
	if a.removed[hash] {
		return false
	}
	_, ok := a.parents[hash]
	return ok
}

func hash(b byte) common.Hash {
	return common.Hash{b}
}

func testAuthorities(t *testing.T, n int) []types.Authority {
	t.Helper()
	auths := make([]types.Authority, n)
	for i := range auths {
		kp, err := sr25519.GenerateKeypair()
		require.NoError(t, err)
		auths[i] = types.NewAuthority(kp.Public().(*sr25519.PublicKey), 1)
	}
	return auths
}

func newTestTracker(t *testing.T) (*EpochChanges, *testAncestry, []types.Authority) {
	t.Helper()

	ancestry := newTestAncestry()
	ancestry.addBlock(hash(0), common.Hash{0xff}) // genesis, parent unknown

	tracker := NewEpochChanges(ancestry)
	genesisAuths := testAuthorities(t, 2)
	err := tracker.ImportGenesis(hash(0), &EpochChange{
		EpochIndex:  0,
		StartSlot:   1,
		Authorities: genesisAuths,
		Randomness:  types.Randomness{1},
		Config:      &types.ConfigData{C1: 1, C2: 2, SecondarySlots: types.SecondarySlotsPlain},
	})
	require.NoError(t, err)

	return tracker, ancestry, genesisAuths
}

func TestEpochChanges_ImportGenesisTwice(t *testing.T) {
	tracker, _, auths := newTestTracker(t)

	err := tracker.ImportGenesis(hash(9), &EpochChange{
		Authorities: auths,
		Config:      &types.ConfigData{C1: 1, C2: 2},
	})
	require.ErrorIs(t, err, ErrGenesisExists)
}

func TestEpochChanges_EpochFor_Genesis(t *testing.T) {
	tracker, ancestry, auths := newTestTracker(t)
	ancestry.addBlock(hash(1), hash(0))

	epoch, err := tracker.EpochFor(hash(1), 5)
	require.NoError(t, err)
	require.Equal(t, uint64(0), epoch.Index)
	require.Equal(t, auths, epoch.Authorities)
	require.Equal(t, uint64(1), epoch.Config.C1)
}

func TestEpochChanges_ImportEpochChange_UnknownParent(t *testing.T) {
	tracker, _, auths := newTestTracker(t)

	// block 7's parent was never seen by the ancestry
	err := tracker.ImportEpochChange(hash(7), hash(6), 7, &EpochChange{
		EpochIndex:  1,
		StartSlot:   100,
		Authorities: auths,
	})
	require.ErrorIs(t, err, ErrUnknownParent)
}

func TestEpochChanges_SiblingForks(t *testing.T) {
	tracker, ancestry, _ := newTestTracker(t)

	// two forks off genesis, each announcing a different authority set
	ancestry.addBlock(hash(1), hash(0))
	ancestry.addBlock(hash(2), hash(0))

	authsA := testAuthorities(t, 1)
	authsB := testAuthorities(t, 3)

	err := tracker.ImportEpochChange(hash(1), hash(0), 1, &EpochChange{
		EpochIndex:  1,
		StartSlot:   100,
		Authorities: authsA,
		Randomness:  types.Randomness{0xaa},
	})
	require.NoError(t, err)

	err = tracker.ImportEpochChange(hash(2), hash(0), 1, &EpochChange{
		EpochIndex:  1,
		StartSlot:   100,
		Authorities: authsB,
		Randomness:  types.Randomness{0xbb},
	})
	require.NoError(t, err)

	// children on each fork
	ancestry.addBlock(hash(3), hash(1))
	ancestry.addBlock(hash(4), hash(2))

	epochA, err := tracker.EpochFor(hash(3), 100)
	require.NoError(t, err)
	epochB, err := tracker.EpochFor(hash(4), 100)
	require.NoError(t, err)

	require.Equal(t, authsA, epochA.Authorities)
	require.Equal(t, authsB, epochB.Authorities)
	require.NotEqual(t, epochA.Randomness, epochB.Randomness)

	// config inherited from genesis on both forks
	require.Equal(t, uint64(1), epochA.Config.C1)
	require.Equal(t, uint64(1), epochB.Config.C1)
}

func TestEpochChanges_EpochFor_ActivationSlot(t *testing.T) {
	tracker, ancestry, genesisAuths := newTestTracker(t)
	ancestry.addBlock(hash(1), hash(0))
	ancestry.addBlock(hash(2), hash(1))

	nextAuths := testAuthorities(t, 1)
	err := tracker.ImportEpochChange(hash(1), hash(0), 1, &EpochChange{
		EpochIndex:  1,
		StartSlot:   100,
		Authorities: nextAuths,
	})
	require.NoError(t, err)

	// before the activation slot the genesis epoch still applies
	epoch, err := tracker.EpochFor(hash(2), 99)
	require.NoError(t, err)
	require.Equal(t, uint64(0), epoch.Index)
	require.Equal(t, genesisAuths, epoch.Authorities)

	// at the activation slot the announced change takes effect
	epoch, err = tracker.EpochFor(hash(2), 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1), epoch.Index)
	require.Equal(t, nextAuths, epoch.Authorities)
}

func TestEpochChanges_EpochFor_MissingEpochData(t *testing.T) {
	tracker, ancestry, _ := newTestTracker(t)

	// a block on a chain the tracker has never seen
	ancestry.addBlock(hash(8), common.Hash{0xee})
	_, err := tracker.EpochFor(hash(8), 5)
	require.ErrorIs(t, err, ErrMissingEpochData)
}

func TestEpochChanges_Finalise_DiscardsSiblings(t *testing.T) {
	tracker, ancestry, _ := newTestTracker(t)

	ancestry.addBlock(hash(1), hash(0))
	ancestry.addBlock(hash(2), hash(0))
	ancestry.addBlock(hash(3), hash(1))
	ancestry.addBlock(hash(4), hash(2))

	err := tracker.ImportEpochChange(hash(1), hash(0), 1, &EpochChange{
		EpochIndex: 1, StartSlot: 100, Authorities: testAuthorities(t, 1),
	})
	require.NoError(t, err)
	err = tracker.ImportEpochChange(hash(2), hash(0), 1, &EpochChange{
		EpochIndex: 1, StartSlot: 100, Authorities: testAuthorities(t, 1),
	})
	require.NoError(t, err)
	require.Equal(t, 3, tracker.NodeCount())

	err = tracker.Finalise(hash(3))
	require.NoError(t, err)
	require.Equal(t, 1, tracker.NodeCount())

	// the surviving fork still resolves, with config carried over the
	// dropped genesis node
	epoch, err := tracker.EpochFor(hash(3), 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1), epoch.Index)
	require.Equal(t, uint64(1), epoch.Config.C1)

	// the discarded sibling no longer resolves
	_, err = tracker.EpochFor(hash(4), 100)
	require.ErrorIs(t, err, ErrMissingEpochData)
}

func TestEpochChanges_PruneConflicting(t *testing.T) {
	tracker, ancestry, _ := newTestTracker(t)

	ancestry.addBlock(hash(1), hash(0))
	ancestry.addBlock(hash(2), hash(0))

	err := tracker.ImportEpochChange(hash(1), hash(0), 1, &EpochChange{
		EpochIndex: 1, StartSlot: 100, Authorities: testAuthorities(t, 1),
	})
	require.NoError(t, err)
	err = tracker.ImportEpochChange(hash(2), hash(0), 1, &EpochChange{
		EpochIndex: 1, StartSlot: 100, Authorities: testAuthorities(t, 1),
	})
	require.NoError(t, err)

	// nothing removed from the chain state: nothing to prune
	require.Equal(t, 0, tracker.PruneConflicting())

	// block 2 gets discarded by chain-state finalisation
	ancestry.removed[hash(2)] = true
	require.Equal(t, 1, tracker.PruneConflicting())
	require.Equal(t, 2, tracker.NodeCount())
}
