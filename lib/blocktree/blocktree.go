// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package blocktree

import (
	"fmt"
	"sync"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/internal/log"
	"github.com/arborchain/arbor/lib/common"

	"github.com/qdm12/gotree"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "blocktree"))

// Hash common.Hash
type Hash = common.Hash

// BlockTree represents the current state with all possible blocks
// since the last finalised block. The fork choice rule weighs each
// chain by the number of primary slot claims it contains.
type BlockTree struct {
	sync.RWMutex
	root   *node
	leaves *leafMap
}

// NewEmptyBlockTree creates a BlockTree with no root
func NewEmptyBlockTree() *BlockTree {
	return &BlockTree{
		root:   nil,
		leaves: newEmptyLeafMap(),
	}
}

// NewBlockTreeFromRoot initialises a blocktree with a root block.
// The root carries zero primary weight; weights accumulate from there.
func NewBlockTreeFromRoot(root *types.Header) *BlockTree {
	n := &node{
		hash:        root.Hash(),
		parent:      nil,
		children:    []*node{},
		number:      root.Number,
		arrivalTime: time.Now(),
	}

	return &BlockTree{
		root:   n,
		leaves: newLeafMap(n),
	}
}

// AddBlock inserts the block as a child of its parent node.
// slot is the claimed slot of the block and isPrimary reports whether
// the slot was claimed with a primary VRF claim; primary claims add
// to the chain's weight, secondary claims do not.
func (bt *BlockTree) AddBlock(header *types.Header, slot uint64, isPrimary bool, arrivalTime time.Time) error {
	bt.Lock()
	defer bt.Unlock()

	parent := bt.root.getNode(header.ParentHash)
	if parent == nil {
		return ErrParentNotFound
	}

	hash := header.Hash()
	if bt.root.getNode(hash) != nil {
		return ErrBlockExists
	}

	// the root's slot is unknown (it may be the genesis block), so the
	// monotonicity check only applies below it
	if parent != bt.root && slot <= parent.slot {
		return fmt.Errorf("%w: got slot %d, parent slot %d",
			ErrSlotNotIncreasing, slot, parent.slot)
	}

	weight := parent.primaryWeight
	if isPrimary {
		weight++
	}

	n := &node{
		hash:          hash,
		parent:        parent,
		children:      []*node{},
		number:        header.Number,
		slot:          slot,
		primaryWeight: weight,
		arrivalTime:   arrivalTime,
	}
	parent.addChild(n)

	if len(parent.children) == 1 {
		// parent was a leaf
		bt.leaves.replace(parent, n)
	} else {
		bt.leaves.store(n.hash, n)
	}

	logger.Tracef("added block %s number %d slot %d weight %d",
		hash.Short(), header.Number, slot, weight)
	return nil
}

// GetAllBlocksAtNumber will return all blocks hashes with the number of the given hash plus one
func (bt *BlockTree) GetAllBlocksAtNumber(hash common.Hash) []common.Hash {
	bt.RLock()
	defer bt.RUnlock()

	hashes := []common.Hash{}
	n := bt.root.getNode(hash)
	if n == nil {
		return hashes
	}

	number := n.number + 1
	var collect func(n *node)
	collect = func(n *node) {
		if n.number == number {
			hashes = append(hashes, n.hash)
			return
		}
		for _, child := range n.children {
			collect(child)
		}
	}
	collect(bt.root)

	return hashes
}

// GetAllBlocks returns all the hashes in the blocktree
func (bt *BlockTree) GetAllBlocks() []common.Hash {
	bt.RLock()
	defer bt.RUnlock()
	return bt.root.getAllDescendants(nil)
}

// Has returns whether the given hash is in the blocktree
func (bt *BlockTree) Has(hash common.Hash) bool {
	bt.RLock()
	defer bt.RUnlock()
	return bt.root.getNode(hash) != nil
}

// GetHashByNumber returns the block hash with the given number on the
// best chain
func (bt *BlockTree) GetHashByNumber(number uint) (common.Hash, error) {
	bt.RLock()
	defer bt.RUnlock()

	best := bt.leaves.bestBlock()
	if best == nil {
		return common.Hash{}, ErrNodeNotFound
	}
	if best.number < number {
		return common.Hash{}, ErrNodeNotFound
	}

	for curr := best; curr != nil; curr = curr.parent {
		if curr.number == number {
			return curr.hash, nil
		}
	}

	return common.Hash{}, ErrNodeNotFound
}

// BestBlockHash returns the hash of the head of the chain with the
// most primary slot claims. Ties are broken by block number, then by
// earliest arrival time.
func (bt *BlockTree) BestBlockHash() common.Hash {
	bt.RLock()
	defer bt.RUnlock()

	if bt.leaves == nil {
		return common.Hash{}
	}

	best := bt.leaves.bestBlock()
	if best == nil {
		return common.Hash{}
	}
	return best.hash
}

// Leaves returns the leaves of the blocktree as an array
func (bt *BlockTree) Leaves() []common.Hash {
	bt.RLock()
	defer bt.RUnlock()
	return bt.leaves.hashes()
}

// IsDescendantOf checks if the child is a descendant of parent
// (isDescendantOf(x, x) is true)
func (bt *BlockTree) IsDescendantOf(parent, child common.Hash) (bool, error) {
	bt.RLock()
	defer bt.RUnlock()

	pn := bt.root.getNode(parent)
	if pn == nil {
		return false, fmt.Errorf("%w: %s", ErrNodeNotFound, parent)
	}

	cn := bt.root.getNode(child)
	if cn == nil {
		return false, fmt.Errorf("%w: %s", ErrNodeNotFound, child)
	}

	return cn.isDescendantOf(pn), nil
}

// HighestCommonAncestor returns the highest block that is an ancestor
// of both a and b
func (bt *BlockTree) HighestCommonAncestor(a, b common.Hash) (common.Hash, error) {
	bt.RLock()
	defer bt.RUnlock()

	an := bt.root.getNode(a)
	if an == nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrNodeNotFound, a)
	}

	bn := bt.root.getNode(b)
	if bn == nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrNodeNotFound, b)
	}

	ancestor := an.highestCommonAncestor(bn)
	if ancestor == nil {
		return common.Hash{}, ErrNoCommonAncestor
	}

	return ancestor.hash, nil
}

// Prune sets the given block as the new blocktree root, removing every
// branch that does not contain it. It returns the hashes of the pruned
// blocks.
func (bt *BlockTree) Prune(finalised common.Hash) (pruned []common.Hash) {
	bt.Lock()
	defer bt.Unlock()

	if finalised == bt.root.hash {
		return nil
	}

	n := bt.root.getNode(finalised)
	if n == nil {
		return nil
	}

	pruned = bt.root.prune(n, nil)
	bt.root = n
	bt.root.parent = nil
	bt.leaves = newLeafMap(n)

	logger.Debugf("pruned %d blocks, new root %s number %d",
		len(pruned), n.hash.Short(), n.number)
	return pruned
}

// String utilises gotree to create a printable tree
func (bt *BlockTree) String() string {
	bt.RLock()
	defer bt.RUnlock()

	tree := gotree.New(bt.root.string())
	bt.root.stringNode(tree)

	return fmt.Sprintf("\n%s\n", tree)
}
