// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/ChainSafe/chaindb"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/internal/log"
	"github.com/arborchain/arbor/lib/blocktree"
	"github.com/arborchain/arbor/lib/common"
)

const blockTablePrefix = "block"

var (
	headerPrefix     = []byte("hdr")
	finalisedHashKey = []byte("finalised_head")
)

var (
	// ErrHeaderNotFound is returned when a header is not in the database
	ErrHeaderNotFound = errors.New("header not found")

	// ErrMissingPreRuntimeDigest is returned when a block header carries
	// no pre-runtime digest
	ErrMissingPreRuntimeDigest = errors.New("header does not contain a pre-runtime digest")
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "state"))

func headerKey(hash common.Hash) []byte {
	return append(headerPrefix, hash.ToBytes()...)
}

// BlockState keeps track of unfinalised blocks in a blocktree and
// persists headers in the database
type BlockState struct {
	bt          *blocktree.BlockTree
	db          chaindb.Database
	genesisHash common.Hash
}

// NewBlockStateFromGenesis initialises a BlockState from a genesis header
func NewBlockStateFromGenesis(db *chaindb.BadgerDB, genesisHeader *types.Header) (*BlockState, error) {
	bs := &BlockState{
		bt:          blocktree.NewBlockTreeFromRoot(genesisHeader),
		db:          chaindb.NewTable(db, blockTablePrefix),
		genesisHash: genesisHeader.Hash(),
	}

	if err := bs.setHeader(genesisHeader); err != nil {
		return nil, fmt.Errorf("setting genesis header: %w", err)
	}

	if err := bs.db.Put(finalisedHashKey, bs.genesisHash.ToBytes()); err != nil {
		return nil, fmt.Errorf("setting finalised head: %w", err)
	}

	return bs, nil
}

// GenesisHash returns the hash of the genesis block
func (bs *BlockState) GenesisHash() common.Hash {
	return bs.genesisHash
}

func (bs *BlockState) setHeader(header *types.Header) error {
	enc, err := header.Encode()
	if err != nil {
		return err
	}

	return bs.db.Put(headerKey(header.Hash()), enc)
}

// GetHeader returns the header with the given hash
func (bs *BlockState) GetHeader(hash common.Hash) (*types.Header, error) {
	enc, err := bs.db.Get(headerKey(hash))
	if err != nil {
		if errors.Is(err, chaindb.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrHeaderNotFound, hash)
		}
		return nil, err
	}

	return types.DecodeHeader(enc)
}

// HasHeader returns whether a header with the given hash is in the database
func (bs *BlockState) HasHeader(hash common.Hash) (bool, error) {
	return bs.db.Has(headerKey(hash))
}

// slotAndClaimFor extracts the claimed slot and claim kind from the
// header's pre-runtime digest
func slotAndClaimFor(header *types.Header) (slot uint64, isPrimary bool, err error) {
	for _, item := range header.Digest {
		pre, ok := item.(*types.PreRuntimeDigest)
		if !ok {
			continue
		}

		digest, err := types.DecodeBabePreDigest(pre.Data)
		if err != nil {
			return 0, false, fmt.Errorf("decoding pre-runtime digest: %w", err)
		}

		return digest.GetSlotNumber(), digest.IsPrimary(), nil
	}

	return 0, false, ErrMissingPreRuntimeDigest
}

// GetSlotForBlock returns the claimed slot of the block with the given hash
func (bs *BlockState) GetSlotForBlock(hash common.Hash) (uint64, error) {
	header, err := bs.GetHeader(hash)
	if err != nil {
		return 0, err
	}

	slot, _, err := slotAndClaimFor(header)
	return slot, err
}

// AddBlock adds the header to the blocktree and persists it. The claimed
// slot and its primary/secondary kind are taken from the header's
// pre-runtime digest; primary claims contribute to the chain's
// fork-choice weight.
func (bs *BlockState) AddBlock(header *types.Header, arrivalTime time.Time) error {
	slot, isPrimary, err := slotAndClaimFor(header)
	if err != nil {
		return err
	}

	if err := bs.bt.AddBlock(header, slot, isPrimary, arrivalTime); err != nil {
		return err
	}

	if err := bs.setHeader(header); err != nil {
		return fmt.Errorf("setting header: %w", err)
	}

	logger.Debugf("added block %s number %d slot %d", header.Hash().Short(),
		header.Number, slot)
	return nil
}

// BestBlockHash returns the hash of the head of the heaviest chain
func (bs *BlockState) BestBlockHash() common.Hash {
	return bs.bt.BestBlockHash()
}

// BestBlockHeader returns the header of the head of the heaviest chain
func (bs *BlockState) BestBlockHeader() (*types.Header, error) {
	return bs.GetHeader(bs.BestBlockHash())
}

// IsDescendantOf returns whether child has ancestor as an ancestor in
// the blocktree
func (bs *BlockState) IsDescendantOf(ancestor, child common.Hash) (bool, error) {
	return bs.bt.IsDescendantOf(ancestor, child)
}

// HasBlock returns whether the block is part of the unfinalised blocktree
func (bs *BlockState) HasBlock(hash common.Hash) bool {
	return bs.bt.Has(hash)
}

// HighestCommonAncestor returns the highest shared ancestor of the two blocks
func (bs *BlockState) HighestCommonAncestor(a, b common.Hash) (common.Hash, error) {
	return bs.bt.HighestCommonAncestor(a, b)
}

// Leaves returns the heads of all live forks
func (bs *BlockState) Leaves() []common.Hash {
	return bs.bt.Leaves()
}

// GetHashByNumber returns the hash at the given number on the best chain
func (bs *BlockState) GetHashByNumber(number uint) (common.Hash, error) {
	return bs.bt.GetHashByNumber(number)
}

// Finalise marks the block as finalised, pruning all branches of the
// blocktree that do not contain it. Headers stay in the database; only
// the in-memory tree is pruned.
func (bs *BlockState) Finalise(hash common.Hash) error {
	has, err := bs.HasHeader(hash)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: %s", ErrHeaderNotFound, hash)
	}

	pruned := bs.bt.Prune(hash)
	if err := bs.db.Put(finalisedHashKey, hash.ToBytes()); err != nil {
		return fmt.Errorf("setting finalised head: %w", err)
	}

	logger.Infof("finalised block %s, pruned %d blocks", hash.Short(), len(pruned))
	return nil
}

// GetFinalisedHash returns the hash of the most recently finalised block
func (bs *BlockState) GetFinalisedHash() (common.Hash, error) {
	enc, err := bs.db.Get(finalisedHashKey)
	if err != nil {
		return common.Hash{}, err
	}
	return common.NewHash(enc), nil
}
