// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

// Package dot assembles the node: database, chain state, epoch tracking,
// block verification and block production.
package dot

import (
	"context"
	"fmt"
	"time"

	"github.com/ChainSafe/chaindb"

	"github.com/arborchain/arbor/dot/state"
	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/internal/log"
	"github.com/arborchain/arbor/lib/babe"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
	"github.com/arborchain/arbor/lib/forks"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "dot"))

// Config is the node configuration
type Config struct {
	LogLvl        log.Level
	DataDir       string
	InMemory      bool
	Authority     bool
	Keypair       *sr25519.Keypair
	GenesisConfig *types.BabeConfiguration
}

// Node is a fully wired node instance
type Node struct {
	db          *chaindb.BadgerDB
	blockState  *state.BlockState
	epochState  *state.EpochState
	tracker     *forks.EpochChanges
	verifier    *babe.VerificationManager
	babeService *babe.Service
}

// NewNode initialises the chain database and the services of a node from
// the given configuration
func NewNode(cfg *Config) (*Node, error) {
	logger.Patch(log.SetLevel(cfg.LogLvl))

	db, err := chaindb.NewBadgerDB(&chaindb.Config{
		DataDir:  cfg.DataDir,
		InMemory: cfg.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("opening chain database: %w", err)
	}

	genesisHeader := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{},
		0, types.NewDigest())

	blockState, err := state.NewBlockStateFromGenesis(db, genesisHeader)
	if err != nil {
		return nil, fmt.Errorf("creating block state: %w", err)
	}

	epochState, err := state.NewEpochStateFromGenesis(db, cfg.GenesisConfig)
	if err != nil {
		return nil, fmt.Errorf("creating epoch state: %w", err)
	}

	genesisAuthorities, err := types.AuthoritiesFromRaw(cfg.GenesisConfig.GenesisAuthorities)
	if err != nil {
		return nil, fmt.Errorf("decoding genesis authorities: %w", err)
	}

	tracker := forks.NewEpochChanges(blockState)
	err = tracker.ImportGenesis(genesisHeader.Hash(), &forks.EpochChange{
		EpochIndex:  0,
		StartSlot:   0,
		Authorities: genesisAuthorities,
		Randomness:  cfg.GenesisConfig.Randomness,
		Config: &types.ConfigData{
			C1:             cfg.GenesisConfig.C1,
			C2:             cfg.GenesisConfig.C2,
			SecondarySlots: cfg.GenesisConfig.SecondarySlots,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("importing genesis epoch: %w", err)
	}

	accumulator := babe.NewRandomnessAccumulator(0, cfg.GenesisConfig.Randomness)

	verifier, err := babe.NewVerificationManager(babe.VerificationManagerConfig{
		BlockState:  blockState,
		EpochState:  epochState,
		SlotState:   state.NewSlotState(db),
		Tracker:     tracker,
		Sink:        loggingSink{},
		Accumulator: accumulator,
	})
	if err != nil {
		return nil, fmt.Errorf("creating verification manager: %w", err)
	}

	node := &Node{
		db:         db,
		blockState: blockState,
		epochState: epochState,
		tracker:    tracker,
		verifier:   verifier,
	}

	babeService, err := babe.NewService(&babe.ServiceConfig{
		LogLvl:             cfg.LogLvl,
		BlockState:         blockState,
		EpochState:         epochState,
		Tracker:            tracker,
		BlockBuilder:       emptyBlockBuilder{},
		BlockImportHandler: node,
		Accumulator:        accumulator,
		Keypair:            cfg.Keypair,
		Authority:          cfg.Authority,
	})
	if err != nil {
		return nil, fmt.Errorf("creating block production service: %w", err)
	}
	node.babeService = babeService

	return node, nil
}

// Start starts the node's services
func (n *Node) Start() error {
	logger.Infof("starting node, genesis hash %s", n.blockState.GenesisHash())
	return n.babeService.Start()
}

// Stop stops the node's services and closes the database
func (n *Node) Stop() error {
	if err := n.babeService.Stop(); err != nil {
		logger.Warnf("stopping block production: %s", err)
	}
	return n.db.Close()
}

// finalityLag is the number of blocks the finalised head trails the best
// block. A dev chain runs no finality gadget; depth stands in for it.
const finalityLag = 32

// HandleBlockProduced imports a block authored by this node: it is
// verified like any peer block, then added to the chain state. Each
// import also advances the trailing finalised head.
func (n *Node) HandleBlockProduced(block *types.Block) error {
	if err := n.verifier.VerifyBlock(&block.Header, time.Now()); err != nil {
		return fmt.Errorf("verifying own block: %w", err)
	}

	if err := n.blockState.AddBlock(&block.Header, time.Now()); err != nil {
		return fmt.Errorf("adding block to chain state: %w", err)
	}

	if err := n.finaliseTrailing(); err != nil {
		return fmt.Errorf("finalising trailing block: %w", err)
	}
	return nil
}

// finaliseTrailing finalises the block finalityLag behind the best block
// on the best chain, then lets the epoch tracker discard changes whose
// announcing blocks were pruned with the dead forks
func (n *Node) finaliseTrailing() error {
	best, err := n.blockState.BestBlockHeader()
	if err != nil {
		return fmt.Errorf("getting best block header: %w", err)
	}
	if best.Number <= finalityLag {
		return nil
	}

	hash, err := n.blockState.GetHashByNumber(best.Number - finalityLag)
	if err != nil {
		return fmt.Errorf("getting block at number %d: %w", best.Number-finalityLag, err)
	}

	if err := n.blockState.Finalise(hash); err != nil {
		return fmt.Errorf("finalising block %s: %w", hash, err)
	}
	if err := n.tracker.Finalise(hash); err != nil {
		return fmt.Errorf("finalising epoch changes: %w", err)
	}

	n.tracker.PruneConflicting()
	return nil
}

// emptyBlockBuilder builds empty block bodies. Transaction pooling is
// outside the production engine; a dev chain produces empty blocks.
type emptyBlockBuilder struct{}

func (emptyBlockBuilder) BuildBlockBody(_ context.Context, _ *types.Header,
	_ babe.Slot) (types.Body, error) {
	return types.Body{}, nil
}

// loggingSink reports equivocation proofs to the log. A full node would
// submit them for slashing instead.
type loggingSink struct{}

func (loggingSink) Report(proof *types.BabeEquivocationProof) {
	logger.Warnf("authority 0x%x equivocated in slot %d: blocks %s and %s",
		proof.Offender, proof.Slot,
		proof.FirstHeader.Hash().Short(), proof.SecondHeader.Hash().Short())
}
