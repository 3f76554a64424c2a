// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"context"
	"testing"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/internal/log"
	"github.com/arborchain/arbor/lib/common"

	"github.com/stretchr/testify/require"
)

type capturingImporter struct {
	blocks []*types.Block
}

func (c *capturingImporter) HandleBlockProduced(block *types.Block) error {
	c.blocks = append(c.blocks, block)
	return nil
}

type emptyBuilder struct{}

func (emptyBuilder) BuildBlockBody(_ context.Context, _ *types.Header,
	_ Slot) (types.Body, error) {
	return types.Body{}, nil
}

func newTestService(t *testing.T, h *verifyHarness) (*Service, *capturingImporter) {
	t.Helper()

	importer := &capturingImporter{}
	svc, err := NewService(&ServiceConfig{
		LogLvl:             log.Error,
		BlockState:         h.blockState,
		EpochState:         h.epochState,
		Tracker:            h.tracker,
		BlockBuilder:       emptyBuilder{},
		BlockImportHandler: importer,
		Accumulator:        h.accumulator,
		Keypair:            h.keypair,
		Authority:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })
	return svc, importer
}

func TestNewService_MissingDependencies(t *testing.T) {
	h := newVerifyHarness(t, 1, 1)

	valid := func() *ServiceConfig {
		return &ServiceConfig{
			BlockState:         h.blockState,
			EpochState:         h.epochState,
			Tracker:            h.tracker,
			BlockBuilder:       emptyBuilder{},
			BlockImportHandler: &capturingImporter{},
			Accumulator:        h.accumulator,
			Keypair:            h.keypair,
			Authority:          true,
		}
	}

	cfg := valid()
	cfg.Keypair = nil
	_, err := NewService(cfg)
	require.ErrorIs(t, err, errNoAuthorityKeyProvided)

	cfg = valid()
	cfg.BlockState = nil
	_, err = NewService(cfg)
	require.ErrorIs(t, err, errNilBlockState)

	cfg = valid()
	cfg.EpochState = nil
	_, err = NewService(cfg)
	require.ErrorIs(t, err, errNilEpochState)

	cfg = valid()
	cfg.Tracker = nil
	_, err = NewService(cfg)
	require.ErrorIs(t, err, errNilEpochTracker)

	cfg = valid()
	cfg.BlockBuilder = nil
	_, err = NewService(cfg)
	require.ErrorIs(t, err, errNilBlockBuilder)

	cfg = valid()
	cfg.BlockImportHandler = nil
	_, err = NewService(cfg)
	require.ErrorIs(t, err, errNilBlockImportHandler)

	cfg = valid()
	cfg.Accumulator = nil
	_, err = NewService(cfg)
	require.ErrorIs(t, err, errNilAccumulator)
}

func TestService_PauseAndStop(t *testing.T) {
	h := newVerifyHarness(t, 1, 1)
	svc, _ := newTestService(t, h)

	require.False(t, svc.IsPaused())
	require.NoError(t, svc.Pause())
	require.True(t, svc.IsPaused())

	// pausing twice is a no-op
	require.NoError(t, svc.Pause())

	require.NoError(t, svc.Resume())
	require.False(t, svc.IsPaused())

	require.NoError(t, svc.Stop())
	require.True(t, svc.IsStopped())
	require.ErrorIs(t, svc.Stop(), errServiceStopped)
}

func TestService_HandleSlot(t *testing.T) {
	h := newVerifyHarness(t, 1, 1)
	svc, importer := newTestService(t, h)

	const slotNumber = 10
	claim, err := claimPrimarySlot(Randomness{}, slotNumber, 0, h.epochThreshold(t), h.keypair)
	require.NoError(t, err)
	pre, err := types.NewBabePrimaryPreDigest(0, slotNumber, claim.output, claim.proof).
		ToPreRuntimeDigest()
	require.NoError(t, err)

	slot := Slot{
		start:    slotTime(slotNumber),
		duration: svc.SlotDuration(),
		number:   slotNumber,
	}
	require.NoError(t, svc.handleSlot(0, slot, 0, pre))

	require.Len(t, importer.blocks, 1)
	block := importer.blocks[0]
	require.Equal(t, h.genesisHeader.Hash(), block.Header.ParentHash)
	require.Equal(t, uint(1), block.Header.Number)

	// the authored block must pass peer verification
	require.NoError(t, h.manager.VerifyBlock(&block.Header, slotTime(slotNumber)))
}

func TestService_HandleSlot_Lagging(t *testing.T) {
	h := newVerifyHarness(t, 1, 1)
	svc, _ := newTestService(t, h)

	existing := h.buildHeader(t, h.genesisHeader, 50, 0)
	require.NoError(t, h.blockState.AddBlock(existing, slotTime(50)))

	claim, err := claimPrimarySlot(Randomness{}, 50, 0, h.epochThreshold(t), h.keypair)
	require.NoError(t, err)
	pre, err := types.NewBabePrimaryPreDigest(0, 50, claim.output, claim.proof).
		ToPreRuntimeDigest()
	require.NoError(t, err)

	slot := Slot{start: slotTime(50), duration: svc.SlotDuration(), number: 50}
	err = svc.handleSlot(0, slot, 0, pre)
	require.ErrorIs(t, err, errLaggingSlot)
}

func TestService_EpochBoundaryAnnouncement(t *testing.T) {
	h := newVerifyHarness(t, 1, 1)
	svc, importer := newTestService(t, h)

	// slot 199 is the last slot of epoch 0 (epoch length 200)
	const slotNumber = 199
	claim, err := claimPrimarySlot(Randomness{}, slotNumber, 0, h.epochThreshold(t), h.keypair)
	require.NoError(t, err)
	pre, err := types.NewBabePrimaryPreDigest(0, slotNumber, claim.output, claim.proof).
		ToPreRuntimeDigest()
	require.NoError(t, err)

	slot := Slot{start: slotTime(slotNumber), duration: svc.SlotDuration(), number: slotNumber}
	require.NoError(t, svc.handleSlot(0, slot, 0, pre))

	require.Len(t, importer.blocks, 1)
	digest := importer.blocks[0].Header.Digest
	require.Len(t, digest, 3)

	consensus, ok := digest[1].(*types.ConsensusDigest)
	require.True(t, ok)

	decoded, err := types.DecodeBabeConsensusDigest(consensus.Data)
	require.NoError(t, err)
	announcement, ok := decoded.(types.NextEpochData)
	require.True(t, ok)

	// the announced randomness counts the announcing block's own output
	require.Equal(t, types.Randomness(h.accumulator.NextEpochRandomness(claim.output)),
		announcement.Randomness)
}

func TestService_AuthorsAcrossEpochBoundary(t *testing.T) {
	h := newVerifyHarness(t, 1, 1)
	svc, importer := newTestService(t, h)

	// author the last slot of epoch 0 (epoch length 200)
	const boundarySlot = 199
	claim, err := claimPrimarySlot(Randomness{}, boundarySlot, 0, h.epochThreshold(t), h.keypair)
	require.NoError(t, err)
	pre, err := types.NewBabePrimaryPreDigest(0, boundarySlot, claim.output, claim.proof).
		ToPreRuntimeDigest()
	require.NoError(t, err)

	slot := Slot{start: slotTime(boundarySlot), duration: svc.SlotDuration(), number: boundarySlot}
	require.NoError(t, svc.handleSlot(0, slot, 0, pre))
	require.Len(t, importer.blocks, 1)
	boundary := importer.blocks[0]

	// import the block the way the node does: verification accumulates its
	// output and feeds the announcement into the tracker
	require.NoError(t, h.manager.VerifyBlock(&boundary.Header, slotTime(boundarySlot)))
	require.NoError(t, h.blockState.AddBlock(&boundary.Header, slotTime(boundarySlot)))

	next, err := svc.incrementEpoch(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)

	// authoring resumes under the context verifiers resolve for the fork
	data, err := svc.loadEpochData(200)
	require.NoError(t, err)
	require.Equal(t, uint64(1), data.index)

	resolved, err := h.tracker.EpochFor(boundary.Header.Hash(), 200)
	require.NoError(t, err)
	require.Equal(t, types.Randomness(data.randomness), resolved.Randomness)

	// a block claimed under that context passes peer verification
	const nextSlot = 210
	claim, err = claimPrimarySlot(data.randomness, nextSlot, data.index, data.threshold, h.keypair)
	require.NoError(t, err)
	pre, err = types.NewBabePrimaryPreDigest(0, nextSlot, claim.output, claim.proof).
		ToPreRuntimeDigest()
	require.NoError(t, err)

	slot = Slot{start: slotTime(nextSlot), duration: svc.SlotDuration(), number: nextSlot}
	require.NoError(t, svc.handleSlot(1, slot, 0, pre))
	require.Len(t, importer.blocks, 2)

	epoch1Block := importer.blocks[1]
	require.Equal(t, boundary.Header.Hash(), epoch1Block.Header.ParentHash)
	require.NoError(t, h.manager.VerifyBlock(&epoch1Block.Header, slotTime(nextSlot)))
}

func TestService_IncrementEpoch(t *testing.T) {
	h := newVerifyHarness(t, 1, 1)
	svc, _ := newTestService(t, h)

	h.accumulator.Accumulate([32]byte{42})
	expected := h.accumulator.NextEpochRandomness()

	next, err := svc.incrementEpoch(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), next)

	current, err := h.epochState.GetCurrentEpoch()
	require.NoError(t, err)
	require.Equal(t, uint64(1), current)

	data, err := h.epochState.GetEpochData(1)
	require.NoError(t, err)
	require.Equal(t, types.Randomness(expected), data.Randomness)
}

func TestService_LoadEpochData(t *testing.T) {
	h := newVerifyHarness(t, 1, 2)
	svc, _ := newTestService(t, h)

	data, err := svc.loadEpochData(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), data.index)
	require.Equal(t, Randomness{}, data.randomness)
	require.Equal(t, uint32(0), data.authorityIndex)
	require.Len(t, data.authorities, 1)
	require.Equal(t, types.SecondarySlotsPlain, data.secondarySlots)

	// sole authority with c = 1/2
	expected, err := CalculateThreshold(1, 2, 1, 1)
	require.NoError(t, err)
	require.Equal(t, expected, data.threshold)
}

// epochThreshold resolves the harness authority's genesis threshold
func (h *verifyHarness) epochThreshold(t *testing.T) *common.Uint128 {
	t.Helper()

	cfg, err := h.epochState.GetConfigData(0)
	require.NoError(t, err)
	data, err := h.epochState.GetEpochData(0)
	require.NoError(t, err)

	threshold, err := thresholdForAuthority(cfg.C1, cfg.C2, data.Authorities, 0)
	require.NoError(t, err)
	return threshold
}
