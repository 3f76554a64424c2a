// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package blocktree

import (
	"errors"
	"sync"

	"github.com/arborchain/arbor/lib/common"
)

// leafMap provides quick lookup for existing leaves
type leafMap struct {
	smap *sync.Map // map[common.Hash]*node
}

func newEmptyLeafMap() *leafMap {
	return &leafMap{
		smap: &sync.Map{},
	}
}

func newLeafMap(n *node) *leafMap {
	smap := &sync.Map{}
	for _, leaf := range n.getLeaves(nil) {
		smap.Store(leaf.hash, leaf)
	}

	return &leafMap{
		smap: smap,
	}
}

func (ls *leafMap) store(key common.Hash, value *node) {
	ls.smap.Store(key, value)
}

func (ls *leafMap) load(key common.Hash) (*node, error) {
	v, ok := ls.smap.Load(key)
	if !ok {
		return nil, errors.New("key not found")
	}

	return v.(*node), nil
}

// replace deletes the old node from the map and inserts the new one
func (ls *leafMap) replace(oldNode, newNode *node) {
	ls.smap.Delete(oldNode.hash)
	ls.store(newNode.hash, newNode)
}

// bestBlock returns the leaf heading the heaviest chain: the leaf with the
// greatest cumulative primary claim weight. Ties are broken by block
// number, then by earliest arrival time, so a primary-claimed chain beats
// a secondary-heavy chain of the same length.
func (ls *leafMap) bestBlock() *node {
	var best *node

	ls.smap.Range(func(_, n interface{}) bool {
		if n == nil {
			return true
		}

		leaf := n.(*node)
		switch {
		case best == nil,
			leaf.primaryWeight > best.primaryWeight:
			best = leaf
		case leaf.primaryWeight == best.primaryWeight:
			if leaf.number > best.number ||
				(leaf.number == best.number && leaf.arrivalTime.Before(best.arrivalTime)) {
				best = leaf
			}
		}

		return true
	})

	return best
}

func (ls *leafMap) nodes() []*node {
	nodes := []*node{}

	ls.smap.Range(func(_, n interface{}) bool {
		nodes = append(nodes, n.(*node))
		return true
	})

	return nodes
}

func (ls *leafMap) hashes() []common.Hash {
	hashes := []common.Hash{}

	ls.smap.Range(func(h, _ interface{}) bool {
		hashes = append(hashes, h.(common.Hash))
		return true
	})

	return hashes
}
