// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package blocktree

import "errors"

var (
	// ErrParentNotFound is returned if the parent hash does not exist in the blocktree
	ErrParentNotFound = errors.New("cannot find parent block in blocktree")

	// ErrBlockExists is returned if attempting to re-add a block
	ErrBlockExists = errors.New("cannot add block to blocktree that already exists")

	// ErrNodeNotFound is returned if a node with given hash doesn't exist
	ErrNodeNotFound = errors.New("could not find node")

	// ErrSlotNotIncreasing is returned when a block's slot is not strictly
	// greater than its parent's slot
	ErrSlotNotIncreasing = errors.New("block slot is not greater than parent slot")

	// ErrNoCommonAncestor is returned when a common ancestor cannot be found
	// between two nodes
	ErrNoCommonAncestor = errors.New("no common ancestor between two nodes")
)
