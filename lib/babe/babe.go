// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

// Package babe implements slot-based VRF block production: a weighted
// slot lottery for primary claims, deterministic round-robin secondary
// claims, header sealing and verification, and epoch randomness
// accumulation.
package babe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/internal/log"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
	"github.com/arborchain/arbor/lib/forks"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "babe"))

// Service drives block authoring: once per claimed slot it requests a
// body from the external builder, seals the header and hands the block
// to the import handler
type Service struct {
	ctx       context.Context
	cancel    context.CancelFunc
	authority bool
	constants constants

	blockState         BlockState
	epochState         EpochState
	tracker            EpochTracker
	blockBuilder       BlockBuilder
	blockImportHandler BlockImportHandler
	accumulator        *RandomnessAccumulator

	keypair *sr25519.Keypair

	sync.RWMutex
	pause chan struct{}
}

// ServiceConfig represents the configuration of the authoring service
type ServiceConfig struct {
	LogLvl             log.Level
	BlockState         BlockState
	EpochState         EpochState
	Tracker            EpochTracker
	BlockBuilder       BlockBuilder
	BlockImportHandler BlockImportHandler
	Accumulator        *RandomnessAccumulator
	Keypair            *sr25519.Keypair
	Authority          bool
}

// NewService returns a new authoring service
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg.Keypair == nil && cfg.Authority {
		return nil, errNoAuthorityKeyProvided
	}
	if cfg.BlockState == nil {
		return nil, errNilBlockState
	}
	if cfg.EpochState == nil {
		return nil, errNilEpochState
	}
	if cfg.Tracker == nil {
		return nil, errNilEpochTracker
	}
	if cfg.BlockBuilder == nil {
		return nil, errNilBlockBuilder
	}
	if cfg.BlockImportHandler == nil {
		return nil, errNilBlockImportHandler
	}
	if cfg.Accumulator == nil {
		return nil, errNilAccumulator
	}

	logger.Patch(log.SetLevel(cfg.LogLvl))

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		ctx:                ctx,
		cancel:             cancel,
		authority:          cfg.Authority,
		blockState:         cfg.BlockState,
		epochState:         cfg.EpochState,
		tracker:            cfg.Tracker,
		blockBuilder:       cfg.BlockBuilder,
		blockImportHandler: cfg.BlockImportHandler,
		accumulator:        cfg.Accumulator,
		keypair:            cfg.Keypair,
		pause:              make(chan struct{}),
		constants: constants{
			slotDuration: time.Duration(cfg.EpochState.SlotDuration()) * time.Millisecond,
			epochLength:  cfg.EpochState.EpochLength(),
		},
	}

	logger.Debugf(
		"created service with block producer=%t, slot duration=%s, epoch length (slots)=%d",
		cfg.Authority, svc.constants.slotDuration, svc.constants.epochLength)
	return svc, nil
}

// Start starts block authoring. Non-authority nodes do nothing.
func (b *Service) Start() error {
	if !b.authority {
		logger.Info("not an authority, block production disabled")
		return nil
	}

	epoch, err := b.epochState.GetCurrentEpoch()
	if err != nil {
		return fmt.Errorf("getting current epoch: %w", err)
	}

	go b.initiate(epoch)
	return nil
}

// SlotDuration returns the slot duration
func (b *Service) SlotDuration() time.Duration {
	return b.constants.slotDuration
}

// EpochLength returns the epoch length in slots
func (b *Service) EpochLength() uint64 {
	return b.constants.epochLength
}

// Pause pauses block production
func (b *Service) Pause() error {
	b.Lock()
	defer b.Unlock()

	if b.IsPaused() {
		return nil
	}

	close(b.pause)
	return nil
}

// Resume resumes block production
func (b *Service) Resume() error {
	b.Lock()
	defer b.Unlock()

	if !b.IsPaused() {
		return nil
	}

	b.pause = make(chan struct{})

	epoch, err := b.epochState.GetCurrentEpoch()
	if err != nil {
		return fmt.Errorf("getting current epoch: %w", err)
	}

	if b.authority {
		go b.initiate(epoch)
	}

	logger.Infof("service resumed in epoch %d", epoch)
	return nil
}

// IsPaused returns whether block production is paused
func (b *Service) IsPaused() bool {
	select {
	case <-b.pause:
		return true
	default:
		return false
	}
}

// Stop stops the service. A stopped service cannot be resumed.
func (b *Service) Stop() error {
	if b.ctx.Err() != nil {
		return errServiceStopped
	}

	b.cancel()
	return nil
}

// IsStopped returns true if the service is stopped
func (b *Service) IsStopped() bool {
	return b.ctx.Err() != nil
}

func (b *Service) getAuthorityIndex(authorities []types.Authority) (uint32, error) {
	if !b.authority {
		return 0, ErrNotAuthority
	}

	pub := b.keypair.Public()
	for i, auth := range authorities {
		if bytes.Equal(pub.Encode(), auth.Key.Encode()) {
			return uint32(i), nil
		}
	}

	return 0, fmt.Errorf("%w: key %s", ErrNotAuthority, pub.Hex())
}

func (b *Service) initiate(epoch uint64) {
	if err := b.runEngine(epoch); err != nil && !errors.Is(err, context.Canceled) {
		logger.Criticalf("block authoring error: %s", err)
	}
}

func (b *Service) runEngine(epoch uint64) error {
	for {
		select {
		case <-b.ctx.Done():
			return b.ctx.Err()
		case <-b.pause:
			return nil
		default:
		}

		err := b.handleEpoch(epoch)
		switch {
		case errors.Is(err, errEpochPast):
			// we fell behind more than an epoch; resync to the wall clock
			resynced, resyncErr := b.epochState.GetEpochForSlot(getCurrentSlot(b.constants.slotDuration))
			if resyncErr != nil {
				return fmt.Errorf("resyncing epoch: %w", resyncErr)
			}
			if err := b.resyncEpochData(epoch, resynced); err != nil {
				return fmt.Errorf("resyncing epoch data: %w", err)
			}
			logger.Warnf("epoch %d has passed, resyncing to epoch %d", epoch, resynced)
			epoch = resynced
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// deadline means the epoch completed
			if b.ctx.Err() != nil {
				return nil
			}
		case err != nil:
			return err
		}

		select {
		case <-b.pause:
			// paused mid-epoch; the epoch is not over, so its randomness
			// must not be finalised yet
			return nil
		default:
		}

		next, err := b.incrementEpoch(epoch)
		if err != nil {
			return fmt.Errorf("incrementing epoch: %w", err)
		}

		logger.Infof("epoch %d complete, upcoming epoch: %d", epoch, next)
		epoch = next
	}
}

// handleEpoch authors blocks for one epoch, returning when the epoch is
// over or the service is stopped or paused
func (b *Service) handleEpoch(epoch uint64) error {
	epochStart, err := b.epochStartSlot(epoch)
	if err != nil {
		return err
	}

	epochData, err := b.loadEpochData(epochStart)
	if err != nil {
		return fmt.Errorf("loading epoch data for epoch %d: %w", epoch, err)
	}

	handler, err := newEpochHandler(epoch, epochStart, epochData, b.constants,
		b.handleSlot, b.keypair)
	if err != nil {
		return fmt.Errorf("creating epoch handler: %w", err)
	}

	logger.Infof("initiating epoch %d, first slot %d", epoch, epochStart)

	epochEnd := getSlotStartTime(epochStart+b.constants.epochLength, b.constants.slotDuration)
	ctx, cancel := context.WithDeadline(b.ctx, epochEnd)
	defer cancel()

	errCh := make(chan error, 1)
	go handler.run(ctx, errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.pause:
		return nil
	case err := <-errCh:
		return err
	}
}

// epochStartSlot returns the first slot of the epoch. At genesis the
// network's first slot is not yet known: it is pinned to the wall clock
// and persisted.
func (b *Service) epochStartSlot(epoch uint64) (uint64, error) {
	if b.blockState.BestBlockHash() == b.blockState.GenesisHash() {
		startSlot := getCurrentSlot(b.constants.slotDuration) + 1
		if err := b.epochState.SetFirstSlot(startSlot); err != nil {
			return 0, fmt.Errorf("setting first slot: %w", err)
		}
		logger.Debugf("pinned first slot of the network to %d", startSlot)
		return startSlot, nil
	}

	startSlot, err := b.epochState.GetStartSlotForEpoch(epoch)
	if err != nil {
		return 0, fmt.Errorf("getting start slot for epoch %d: %w", epoch, err)
	}
	return startSlot, nil
}

// loadEpochData resolves the consensus context in effect at the given
// slot on the fork being built on. Verifiers resolve incoming headers
// the same way, so claims made under this context always check out on
// the other side.
func (b *Service) loadEpochData(epochStart uint64) (*epochData, error) {
	resolved, err := b.tracker.EpochFor(b.blockState.BestBlockHash(), epochStart)
	if err != nil {
		return nil, fmt.Errorf("resolving epoch context for fork: %w", err)
	}

	idx, err := b.getAuthorityIndex(resolved.Authorities)
	if err != nil {
		return nil, err
	}

	threshold, err := thresholdForAuthority(resolved.Config.C1, resolved.Config.C2,
		resolved.Authorities, idx)
	if err != nil {
		return nil, fmt.Errorf("calculating threshold: %w", err)
	}

	return &epochData{
		index:          resolved.Index,
		randomness:     resolved.Randomness,
		authorityIndex: idx,
		authorities:    resolved.Authorities,
		threshold:      threshold,
		secondarySlots: resolved.Config.SecondarySlots,
	}, nil
}

// incrementEpoch moves the randomness accumulator across the epoch
// boundary, persists the next epoch's data if no announcement already
// supplied it, and moves the epoch counter
func (b *Service) incrementEpoch(epoch uint64) (uint64, error) {
	next := epoch + 1

	nextRandomness, err := b.nextEpochRandomness(next)
	if err != nil {
		return 0, err
	}

	has, err := b.epochState.HasEpochData(next)
	if err != nil {
		return 0, err
	}

	if !has {
		data, err := b.epochState.GetEpochData(epoch)
		if err != nil {
			return 0, fmt.Errorf("getting epoch data: %w", err)
		}

		err = b.epochState.SetEpochData(next, &types.EpochData{
			Authorities: data.Authorities,
			Randomness:  nextRandomness,
		})
		if err != nil {
			return 0, fmt.Errorf("setting epoch data: %w", err)
		}
	}

	if err := b.epochState.SetCurrentEpoch(next); err != nil {
		return 0, fmt.Errorf("setting current epoch: %w", err)
	}

	return next, nil
}

// nextEpochRandomness crosses the accumulator over the epoch boundary.
// When the best fork carries an announcement for the next epoch its
// randomness is adopted, so authoring resumes with the same value
// verifiers resolve through the tracker; with no announcement the local
// fold is frozen instead.
func (b *Service) nextEpochRandomness(next uint64) (Randomness, error) {
	startSlot, err := b.epochState.GetStartSlotForEpoch(next)
	if err != nil {
		return Randomness{}, fmt.Errorf("getting start slot for epoch %d: %w", next, err)
	}

	resolved, err := b.tracker.EpochFor(b.blockState.BestBlockHash(), startSlot)
	if err != nil && !errors.Is(err, forks.ErrMissingEpochData) {
		return Randomness{}, fmt.Errorf("resolving epoch context for fork: %w", err)
	}

	if resolved != nil && resolved.Index == next {
		b.accumulator.AdoptEpochRandomness(next, resolved.Randomness)
		return resolved.Randomness, nil
	}

	return b.accumulator.FinalizeEpochRandomness(next), nil
}

// resyncEpochData fast-forwards the randomness accumulator over epochs
// that passed without any authored or imported blocks, seeds epoch data
// for the resynced epoch if no announcement supplied it, and moves the
// epoch counter
func (b *Service) resyncEpochData(from, to uint64) error {
	randomness := b.accumulator.SkipTo(to)

	has, err := b.epochState.HasEpochData(to)
	if err != nil {
		return err
	}

	if !has {
		data, err := b.epochState.GetEpochData(from)
		if err != nil {
			return fmt.Errorf("getting epoch data: %w", err)
		}

		err = b.epochState.SetEpochData(to, &types.EpochData{
			Authorities: data.Authorities,
			Randomness:  randomness,
		})
		if err != nil {
			return fmt.Errorf("setting epoch data: %w", err)
		}
	}

	return b.epochState.SetCurrentEpoch(to)
}

// handleSlot builds, seals and imports a block for a slot this node has
// claimed
func (b *Service) handleSlot(epoch uint64, slot Slot, authorityIndex uint32,
	preRuntimeDigest *types.PreRuntimeDigest) error {
	parentHeader, err := b.blockState.BestBlockHeader()
	if err != nil {
		return fmt.Errorf("getting best block header: %w", err)
	}

	// the best block may change while the block is being built
	parent, err := parentHeader.DeepCopy()
	if err != nil {
		return fmt.Errorf("copying parent header: %w", err)
	}

	if parent.Hash() != b.blockState.GenesisHash() {
		parentSlot, err := b.blockState.GetSlotForBlock(parent.Hash())
		if err != nil {
			return fmt.Errorf("getting parent slot: %w", err)
		}
		if slot.number <= parentSlot {
			return fmt.Errorf("%w: slot %d, parent slot %d", errLaggingSlot, slot.number, parentSlot)
		}
	}

	block, err := b.buildBlock(parent, slot, epoch, preRuntimeDigest)
	if err != nil {
		slotsSkipped.Inc()
		return fmt.Errorf("building block: %w", err)
	}

	logger.Infof("built block %s number %d slot %d epoch %d",
		block.Header.Hash(), block.Header.Number, slot.number, epoch)

	// the import handler runs the block through verification, which
	// accumulates the claim's VRF output for next epoch's randomness
	if err := b.blockImportHandler.HandleBlockProduced(block); err != nil {
		return fmt.Errorf("importing built block: %w", err)
	}

	blocksBuilt.Inc()
	return nil
}
