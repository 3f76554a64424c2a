// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

// Package forks tracks the branching timeline of epoch changes across
// competing forks. Announced epoch changes form a tree mirroring the
// ancestry of their announcing blocks; each block's applicable epoch is
// resolved through the nearest tracked ancestor.
package forks

import (
	"fmt"
	"sync"

	"github.com/arborchain/arbor/internal/log"
	"github.com/arborchain/arbor/lib/common"

	"github.com/qdm12/gotree"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "forks"))

// Ancestry resolves block ancestry for the tracker. Implemented by the
// block state over its blocktree.
type Ancestry interface {
	// IsDescendantOf returns true if child has ancestor as an ancestor;
	// a block is a descendant of itself
	IsDescendantOf(ancestor, child common.Hash) (bool, error)
	// HasBlock returns whether the block is still part of the unfinalised
	// chain state
	HasBlock(hash common.Hash) bool
}

// node is one announced epoch change in the tree
type node struct {
	blockHash common.Hash
	number    uint
	change    *EpochChange
	parent    *node
	children  []*node
}

func (n *node) string() string {
	return fmt.Sprintf("block=%s number=%d %s", n.blockHash.Short(), n.number, n.change)
}

func (n *node) stringNode(out *gotree.Node) {
	for _, child := range n.children {
		sub := out.Appendf("%s", child.string())
		child.stringNode(sub)
	}
}

func (n *node) deleteChild(toDelete *node) {
	for i, child := range n.children {
		if child == toDelete {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// collect adds the node and all its descendants to the given map
func (n *node) collect(into map[common.Hash]*node) {
	into[n.blockHash] = n
	for _, child := range n.children {
		child.collect(into)
	}
}

// EpochChanges is the epoch-change fork tracker. Reads take a shared
// lock; tree mutation takes the exclusive lock.
type EpochChanges struct {
	mu       sync.RWMutex
	ancestry Ancestry
	root     *node
	nodes    map[common.Hash]*node
	// heads caches the governing node per queried block, cleared on any
	// tree mutation; guarded by its own mutex so lookups under the shared
	// tree lock can still fill it
	headsMu sync.Mutex
	heads   map[common.Hash]*node
}

// NewEpochChanges returns an empty tracker. Genesis epoch data must be
// imported before any EpochFor query can succeed.
func NewEpochChanges(ancestry Ancestry) *EpochChanges {
	return &EpochChanges{
		ancestry: ancestry,
		nodes:    make(map[common.Hash]*node),
		heads:    make(map[common.Hash]*node),
	}
}

// ImportGenesis seeds the tracker with the epoch data in effect from the
// genesis block. The change must carry a threshold configuration.
func (ec *EpochChanges) ImportGenesis(genesisHash common.Hash, change *EpochChange) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.root != nil {
		return ErrGenesisExists
	}

	if change.Config == nil {
		return fmt.Errorf("%w: genesis change has no config", errNoConfig)
	}

	n := &node{
		blockHash: genesisHash,
		number:    0,
		change:    change,
	}
	ec.root = n
	ec.nodes[genesisHash] = n
	return nil
}

// ImportEpochChange inserts the change announced by the block with the
// given hash and number. It fails with ErrUnknownParent when no tracked
// change governs the block's parent.
func (ec *EpochChanges) ImportEpochChange(blockHash, parentHash common.Hash,
	number uint, change *EpochChange) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if _, has := ec.nodes[blockHash]; has {
		return fmt.Errorf("%w: %s", ErrChangeExists, blockHash)
	}

	parent, err := ec.governingNode(parentHash)
	if err != nil {
		return fmt.Errorf("%w: parent %s", ErrUnknownParent, parentHash)
	}

	n := &node{
		blockHash: blockHash,
		number:    number,
		change:    change,
		parent:    parent,
	}
	parent.children = append(parent.children, n)
	ec.nodes[blockHash] = n
	ec.clearHeads()

	logger.Debugf("imported epoch change at block %s: %s", blockHash.Short(), change)
	return nil
}

// EpochFor returns the epoch applicable at the given slot on the fork
// identified by blockHash: the closest tracked ancestor change whose
// activation slot does not exceed slot, with inherited configuration
// resolved. It fails with ErrMissingEpochData when no tracked change
// covers the block.
func (ec *EpochChanges) EpochFor(blockHash common.Hash, slot uint64) (*Epoch, error) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	n, err := ec.governingNode(blockHash)
	if err != nil {
		return nil, err
	}

	for n != nil && n.change.StartSlot > slot {
		n = n.parent
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s before any tracked activation slot",
			ErrMissingEpochData, blockHash)
	}

	return materialise(n)
}

// governingNode returns the nearest tracked node at or above blockHash.
// Callers must hold at least the read lock.
func (ec *EpochChanges) governingNode(blockHash common.Hash) (*node, error) {
	ec.headsMu.Lock()
	n, ok := ec.heads[blockHash]
	ec.headsMu.Unlock()
	if ok {
		return n, nil
	}

	var nearest *node
	for _, n := range ec.nodes {
		is, err := ec.ancestry.IsDescendantOf(n.blockHash, blockHash)
		if err != nil || !is {
			continue
		}
		if nearest == nil || n.number > nearest.number {
			nearest = n
		}
	}

	if nearest == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingEpochData, blockHash)
	}

	ec.headsMu.Lock()
	ec.heads[blockHash] = nearest
	ec.headsMu.Unlock()
	return nearest, nil
}

func (ec *EpochChanges) clearHeads() {
	ec.headsMu.Lock()
	ec.heads = make(map[common.Hash]*node)
	ec.headsMu.Unlock()
}

// materialise resolves the inherited configuration of the node's change
// by walking towards the root
func materialise(n *node) (*Epoch, error) {
	change := n.change
	for cfg := n; cfg != nil; cfg = cfg.parent {
		if cfg.change.Config == nil {
			continue
		}
		return &Epoch{
			Index:       change.EpochIndex,
			StartSlot:   change.StartSlot,
			Authorities: change.Authorities,
			Randomness:  change.Randomness,
			Config:      *cfg.change.Config,
		}, nil
	}

	return nil, fmt.Errorf("%w: for change at block %s", errNoConfig, n.blockHash)
}

// Finalise moves the tracker root to the change governing the finalised
// block, discarding sibling subtrees off the finalised path and all
// ancestors behind the new root. Discarded forks can never become
// canonical.
func (ec *EpochChanges) Finalise(finalised common.Hash) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	f, err := ec.governingNode(finalised)
	if err != nil {
		return err
	}

	if f == ec.root {
		return nil
	}

	// resolve inherited config before the ancestor chain is dropped
	epoch, err := materialise(f)
	if err != nil {
		return err
	}
	f.change.Config = &epoch.Config

	f.parent = nil
	ec.root = f
	ec.nodes = make(map[common.Hash]*node)
	f.collect(ec.nodes)
	ec.clearHeads()

	logger.Debugf("finalised epoch changes at block %s, %d nodes retained",
		f.blockHash.Short(), len(ec.nodes))
	return nil
}

// PruneConflicting drops tracked changes whose announcing block is no
// longer part of the chain state. Only blocks already discarded by
// finalisation elsewhere can disappear from the ancestry, so this never
// removes a branch that could still be re-orged to.
func (ec *EpochChanges) PruneConflicting() (pruned int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	for _, n := range ec.nodes {
		if n == ec.root || ec.ancestry.HasBlock(n.blockHash) {
			continue
		}

		removed := make(map[common.Hash]*node)
		n.collect(removed)
		if n.parent != nil {
			n.parent.deleteChild(n)
		}
		for hash := range removed {
			delete(ec.nodes, hash)
		}
		pruned += len(removed)
	}

	if pruned > 0 {
		ec.clearHeads()
		logger.Debugf("pruned %d conflicting epoch changes", pruned)
	}
	return pruned
}

// NodeCount returns the number of tracked epoch changes
func (ec *EpochChanges) NodeCount() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.nodes)
}

// String utilises gotree to create a printable tree
func (ec *EpochChanges) String() string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	if ec.root == nil {
		return "<empty>"
	}

	tree := gotree.New(ec.root.string())
	ec.root.stringNode(tree)
	return fmt.Sprintf("\n%s\n", tree)
}
