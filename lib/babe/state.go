// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"context"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/forks"
)

// BlockState is the blockchain state interface the engine consumes
type BlockState interface {
	BestBlockHash() common.Hash
	BestBlockHeader() (*types.Header, error)
	GetHeader(hash common.Hash) (*types.Header, error)
	GenesisHash() common.Hash
	AddBlock(header *types.Header, arrivalTime time.Time) error
	GetSlotForBlock(hash common.Hash) (uint64, error)
	IsDescendantOf(ancestor, child common.Hash) (bool, error)
	HasBlock(hash common.Hash) bool
}

// EpochState is the persistent epoch data interface the engine consumes
type EpochState interface {
	GetCurrentEpoch() (uint64, error)
	SetCurrentEpoch(epoch uint64) error
	GetEpochData(epoch uint64) (*types.EpochData, error)
	SetEpochData(epoch uint64, data *types.EpochData) error
	HasEpochData(epoch uint64) (bool, error)
	GetConfigData(epoch uint64) (*types.ConfigData, error)
	SetConfigData(epoch uint64, data *types.ConfigData) error
	GetStartSlotForEpoch(epoch uint64) (uint64, error)
	GetFirstSlot() (uint64, error)
	SetFirstSlot(slot uint64) error
	GetEpochForSlot(slot uint64) (uint64, error)
	EpochLength() uint64
	SlotDuration() uint64
}

// SlotState records per-slot claims for equivocation detection
type SlotState interface {
	CheckEquivocation(slotNow, slot uint64, header *types.Header,
		signer types.AuthorityID) (*types.BabeEquivocationProof, error)
}

// EpochTracker answers which epoch applies to a block on its fork and
// tracks announced epoch changes across forks
type EpochTracker interface {
	ImportEpochChange(blockHash, parentHash common.Hash, number uint,
		change *forks.EpochChange) error
	EpochFor(blockHash common.Hash, slot uint64) (*forks.Epoch, error)
	Finalise(hash common.Hash) error
	PruneConflicting() int
}

// BlockBuilder produces an unsealed block body for the given parent and
// slot. The engine does not inspect body semantics.
type BlockBuilder interface {
	BuildBlockBody(ctx context.Context, parent *types.Header, slot Slot) (types.Body, error)
}

// BlockImportHandler handles blocks produced by this node
type BlockImportHandler interface {
	HandleBlockProduced(block *types.Block) error
}

// EquivocationSink receives equivocation proofs, fire-and-forget
type EquivocationSink interface {
	Report(proof *types.BabeEquivocationProof)
}
