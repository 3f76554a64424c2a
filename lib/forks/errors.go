// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package forks

import "errors"

var (
	// ErrUnknownParent is returned by ImportEpochChange when no tracked
	// epoch change governs the parent of the announcing block
	ErrUnknownParent = errors.New("parent is not covered by a tracked epoch change")

	// ErrMissingEpochData is returned by EpochFor when no tracked epoch
	// change applies to the queried block, meaning the caller must supply
	// genesis epoch data or fetch missing ancestors
	ErrMissingEpochData = errors.New("no epoch data tracked for block")

	// ErrChangeExists is returned when importing an epoch change for a
	// block that already announced one
	ErrChangeExists = errors.New("epoch change already tracked for block")

	// ErrGenesisExists is returned when importing genesis epoch data twice
	ErrGenesisExists = errors.New("genesis epoch data already imported")

	// errNoConfig indicates an epoch change chain with no resolvable
	// threshold configuration, which means the genesis import was malformed
	errNoConfig = errors.New("no config data resolvable for epoch change")
)
