// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package blocktree

import (
	"fmt"
	"time"

	"github.com/arborchain/arbor/lib/common"

	"github.com/qdm12/gotree"
)

// node is an element in the BlockTree
type node struct {
	hash          common.Hash
	parent        *node
	children      []*node
	number        uint
	slot          uint64
	primaryWeight uint32 // cumulative count of primary slot claims up to this node
	arrivalTime   time.Time
}

// addChild appends node to n's list of children
func (n *node) addChild(node *node) {
	n.children = append(n.children, node)
}

// deleteChild removes the given child from n's list of children
func (n *node) deleteChild(toDelete *node) {
	for i, child := range n.children {
		if child == toDelete {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

func (n *node) string() string {
	return fmt.Sprintf("hash=%s number=%d slot=%d weight=%d",
		n.hash.Short(), n.number, n.slot, n.primaryWeight)
}

// stringNode appends all the node's children to the given printable tree node
func (n *node) stringNode(stringNode *gotree.Node) {
	for _, child := range n.children {
		sub := stringNode.Appendf("%s", child.string())
		child.stringNode(sub)
	}
}

// getNode recursively searches for a node with the given hash
func (n *node) getNode(h common.Hash) *node {
	if n == nil {
		return nil
	}

	if n.hash == h {
		return n
	}

	for _, child := range n.children {
		if found := child.getNode(h); found != nil {
			return found
		}
	}

	return nil
}

// isDescendantOf returns true if the receiver has ancestor as an ancestor
// (a node is considered a descendant of itself)
func (n *node) isDescendantOf(ancestor *node) bool {
	if n == nil || ancestor == nil {
		return false
	}

	for curr := n; curr != nil; curr = curr.parent {
		if curr.hash == ancestor.hash {
			return true
		}
	}

	return false
}

func (n *node) highestCommonAncestor(other *node) *node {
	for curr := n; curr != nil; curr = curr.parent {
		if other.isDescendantOf(curr) {
			return curr
		}
	}

	return nil
}

// getLeaves returns all leaf nodes that have the current node as an ancestor
func (n *node) getLeaves(leaves []*node) []*node {
	if n == nil {
		return leaves
	}

	if len(n.children) == 0 {
		leaves = append(leaves, n)
	}

	for _, child := range n.children {
		leaves = child.getLeaves(leaves)
	}

	return leaves
}

// getAllDescendants returns the node's hash and all its descendants' hashes
func (n *node) getAllDescendants(desc []common.Hash) []common.Hash {
	if n == nil {
		return desc
	}

	desc = append(desc, n.hash)
	for _, child := range n.children {
		desc = child.getAllDescendants(desc)
	}

	return desc
}

// prune collects the hashes of all nodes that are not the finalised node,
// its ancestors or its descendants.
func (n *node) prune(finalised *node, pruned []common.Hash) []common.Hash {
	if n == nil || finalised == nil {
		return pruned
	}

	if n.isDescendantOf(finalised) {
		return pruned
	}

	if finalised.isDescendantOf(n) {
		// ancestor of the finalised node: its hash goes, but some
		// children may still lead to the finalised branch
		pruned = append(pruned, n.hash)
		for _, child := range n.children {
			pruned = child.prune(finalised, pruned)
		}
		return pruned
	}

	// a sibling branch: the whole subtree can never become canonical
	return n.getAllDescendants(pruned)
}
