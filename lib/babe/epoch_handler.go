// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
)

type handleSlotFunc = func(epoch uint64, slot Slot, authorityIndex uint32,
	preRuntimeDigest *types.PreRuntimeDigest) error

// epochHandler authors blocks for one epoch. The slots this node can
// claim are determined up front by running the VRF lottery over the
// whole epoch; a timer fires at each claimed slot's boundary.
type epochHandler struct {
	epochNumber uint64
	firstSlot   uint64

	constants constants
	epochData *epochData

	slotToPreRuntimeDigest map[uint64]*types.PreRuntimeDigest

	handleSlot handleSlotFunc
}

func newEpochHandler(epochNumber, firstSlot uint64, epochData *epochData, constants constants,
	handleSlot handleSlotFunc, keypair *sr25519.Keypair) (*epochHandler, error) {
	// determine which slots we'll be authoring in by pre-computing the lottery
	slotToPreRuntimeDigest := make(map[uint64]*types.PreRuntimeDigest)
	for i := firstSlot; i < firstSlot+constants.epochLength; i++ {
		digest, err := claimSlot(i, epochData, keypair)
		if err == nil {
			slotToPreRuntimeDigest[i] = digest
			logger.Debugf("epoch %d: claimed slot %d", epochNumber, i)
			continue
		}

		if errors.Is(err, errOverPrimarySlotThreshold) ||
			errors.Is(err, errNotOurTurnToPropose) ||
			errors.Is(err, errSecondarySlotsDisabled) {
			continue
		}

		return nil, fmt.Errorf("failed to run slot lottery at slot %d: %w", i, err)
	}

	return &epochHandler{
		epochNumber:            epochNumber,
		firstSlot:              firstSlot,
		constants:              constants,
		epochData:              epochData,
		handleSlot:             handleSlot,
		slotToPreRuntimeDigest: slotToPreRuntimeDigest,
	}, nil
}

// claimSlot attempts a primary claim first, falling back to the epoch's
// secondary slot policy, and returns the claim as a pre-runtime digest.
// The lottery runs under the epoch data's own index and randomness, which
// is what verifiers resolve for the fork.
func claimSlot(slotNumber uint64, epochData *epochData,
	keypair *sr25519.Keypair) (*types.PreRuntimeDigest, error) {
	proof, err := claimPrimarySlot(
		epochData.randomness,
		slotNumber,
		epochData.index,
		epochData.threshold,
		keypair,
	)
	if err == nil {
		return types.NewBabePrimaryPreDigest(epochData.authorityIndex, slotNumber,
			proof.output, proof.proof).ToPreRuntimeDigest()
	}
	if !errors.Is(err, errOverPrimarySlotThreshold) {
		return nil, fmt.Errorf("claiming primary slot: %w", err)
	}

	proof, err = claimSecondarySlot(epochData.randomness, slotNumber, epochData.index,
		epochData.authorities, keypair, epochData.authorityIndex, epochData.secondarySlots)
	if err != nil {
		return nil, err
	}

	if proof != nil {
		return types.NewBabeSecondaryVRFPreDigest(epochData.authorityIndex, slotNumber,
			proof.output, proof.proof).ToPreRuntimeDigest()
	}

	return types.NewBabeSecondaryPlainPreDigest(epochData.authorityIndex,
		slotNumber).ToPreRuntimeDigest()
}

func (h *epochHandler) run(ctx context.Context, errCh chan<- error) {
	currSlot := getCurrentSlot(h.constants.slotDuration)

	// if currSlot < h.firstSlot we're at genesis, waiting for the first
	// slot to arrive; checked here to prevent uint underflow
	if currSlot >= h.firstSlot && currSlot-h.firstSlot > h.constants.epochLength {
		logger.Warnf("attempted to start epoch that has passed: current slot=%d, start slot of epoch=%d",
			currSlot, h.firstSlot)
		errCh <- errEpochPast
		return
	}

	authoringSlots := getAuthoringSlots(h.slotToPreRuntimeDigest)

	type slotWithTimer struct {
		timer   *time.Timer
		slotNum uint64
	}

	slotTimeTimers := make([]*slotWithTimer, 0, len(authoringSlots))
	for _, authoringSlot := range authoringSlots {
		if authoringSlot < currSlot {
			// ignore slots already passed
			continue
		}

		startTime := getSlotStartTime(authoringSlot, h.constants.slotDuration)
		slotTimeTimers = append(slotTimeTimers, &slotWithTimer{
			timer:   time.NewTimer(time.Until(startTime)),
			slotNum: authoringSlot,
		})
		logger.Debugf("start time of slot %d: %v", authoringSlot, startTime)
	}

	defer func() {
		for _, swt := range slotTimeTimers {
			swt.timer.Stop()
		}
	}()

	logger.Debugf("authoring in %d slots in epoch %d", len(slotTimeTimers), h.epochNumber)

	for _, swt := range slotTimeTimers {
		logger.Debugf("waiting for next authoring slot %d", swt.slotNum)

		select {
		case <-ctx.Done():
			return
		case <-swt.timer.C:
			digest, has := h.slotToPreRuntimeDigest[swt.slotNum]
			if !has {
				// this should never happen
				panic(fmt.Sprintf("no claim for authoring slot! slot=%d", swt.slotNum))
			}

			slot := Slot{
				start:    time.Now(),
				duration: h.constants.slotDuration,
				number:   swt.slotNum,
			}

			err := h.handleSlot(h.epochNumber, slot, h.epochData.authorityIndex, digest)
			if err != nil {
				logger.Warnf("failed to handle slot %d: %s", swt.slotNum, err)
				continue
			}
		}
	}
}

// getAuthoringSlots returns an ordered slice of slot numbers where this
// node can author blocks
func getAuthoringSlots(slotToPreRuntimeDigest map[uint64]*types.PreRuntimeDigest) []uint64 {
	authoringSlots := make([]uint64, 0, len(slotToPreRuntimeDigest))
	for authoringSlot := range slotToPreRuntimeDigest {
		authoringSlots = append(authoringSlots, authoringSlot)
	}

	sort.Slice(authoringSlots, func(i, j int) bool {
		return authoringSlots[i] < authoringSlots[j]
	})

	return authoringSlots
}
