// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
	"github.com/arborchain/arbor/lib/forks"
)

// futureSlotTolerance is the number of slots ahead of the verifier's
// clock a claim may sit, covering clock drift between peers.
const futureSlotTolerance uint64 = 1

// pastSlotTolerance is the number of slots behind the verifier's clock a
// claim may sit; matched to the equivocation detection window so every
// accepted header is also checked for equivocation.
const pastSlotTolerance uint64 = 1000

// VerificationManager verifies incoming block headers, resolving the
// epoch data applicable to each header's fork through the epoch-change
// tracker, and feeds verified claims to equivocation detection and to
// the randomness accumulator.
type VerificationManager struct {
	lock        sync.Mutex
	blockState  BlockState
	epochState  EpochState
	slotState   SlotState
	tracker     EpochTracker
	sink        EquivocationSink
	accumulator *RandomnessAccumulator

	slotDuration time.Duration

	// authority indices disabled for the remainder of an epoch, keyed by
	// epoch index
	onDisabled map[uint64]map[uint32]struct{}
}

// VerificationManagerConfig holds the collaborators of a VerificationManager
type VerificationManagerConfig struct {
	BlockState  BlockState
	EpochState  EpochState
	SlotState   SlotState
	Tracker     EpochTracker
	Sink        EquivocationSink
	Accumulator *RandomnessAccumulator
}

// NewVerificationManager returns a new VerificationManager
func NewVerificationManager(cfg VerificationManagerConfig) (*VerificationManager, error) {
	if cfg.BlockState == nil {
		return nil, errNilBlockState
	}
	if cfg.EpochState == nil {
		return nil, errNilEpochState
	}
	if cfg.SlotState == nil {
		return nil, errNilSlotState
	}
	if cfg.Tracker == nil {
		return nil, errNilEpochTracker
	}

	return &VerificationManager{
		blockState:   cfg.BlockState,
		epochState:   cfg.EpochState,
		slotState:    cfg.SlotState,
		tracker:      cfg.Tracker,
		sink:         cfg.Sink,
		accumulator:  cfg.Accumulator,
		slotDuration: time.Duration(cfg.EpochState.SlotDuration()) * time.Millisecond,
		onDisabled:   make(map[uint64]map[uint32]struct{}),
	}, nil
}

// VerifyBlock verifies the header's slot claim and seal, with now
// supplying the verifier's wall-clock view. On success the claim has been
// recorded for equivocation detection and any epoch-change announcement
// in the header has been imported into the tracker.
//
// Failures are distinguishable through the returned sentinel:
// ErrBadSignature, ErrInvalidVrfProof, ErrThresholdNotMet,
// ErrUnknownAuthority, ErrSlotInThePast and ErrSlotInTheFuture for
// protocol violations; forks.ErrMissingEpochData when the header's
// ancestry is not tracked, in which case the caller may retry after
// fetching missing ancestors. Equivocation is not an error: the proof is
// reported to the sink and verification continues.
func (v *VerificationManager) VerifyBlock(header *types.Header, now time.Time) error {
	slotNow := uint64(now.UnixNano()) / uint64(v.slotDuration.Nanoseconds())

	babeDigest, seal, err := splitDigest(header)
	if err != nil {
		return err
	}

	slot := babeDigest.GetSlotNumber()
	if slot > slotNow+futureSlotTolerance {
		return fmt.Errorf("%w: claimed slot %d, current slot %d", ErrSlotInTheFuture, slot, slotNow)
	}
	if saturatingSub(slotNow, slot) > pastSlotTolerance {
		return fmt.Errorf("%w: claimed slot %d, current slot %d", ErrSlotInThePast, slot, slotNow)
	}

	epoch, err := v.tracker.EpochFor(header.ParentHash, slot)
	if err != nil {
		return fmt.Errorf("getting epoch for block %s: %w", header.Hash(), err)
	}

	idx := babeDigest.GetAuthorityIndex()
	if int(idx) >= len(epoch.Authorities) {
		return fmt.Errorf("%w: index %d of %d authorities",
			ErrUnknownAuthority, idx, len(epoch.Authorities))
	}

	if v.isDisabled(epoch.Index, idx) {
		return fmt.Errorf("%w: index %d in epoch %d", ErrAuthorityDisabled, idx, epoch.Index)
	}

	authority := epoch.Authorities[idx]
	if err := v.verifySlotClaim(babeDigest, authority, epoch); err != nil {
		return err
	}

	if err := verifySeal(header, seal, authority.Key); err != nil {
		return err
	}

	v.checkEquivocation(slotNow, slot, header, authority.ID())

	if v.accumulator != nil {
		if primary, ok := babeDigest.(*types.BabePrimaryPreDigest); ok {
			v.accumulator.Accumulate(primary.VRFOutput)
		}
	}

	if err := v.handleConsensusDigests(header, epoch); err != nil {
		return fmt.Errorf("handling consensus digests: %w", err)
	}

	headersVerified.Inc()
	return nil
}

// splitDigest validates the digest layout: a pre-runtime digest first and
// the seal last
func splitDigest(header *types.Header) (types.BabePreDigest, *types.SealDigest, error) {
	if len(header.Digest) < 2 {
		return nil, nil, fmt.Errorf("%w: got %d items", errMissingDigestItems, len(header.Digest))
	}

	pre, ok := header.Digest[0].(*types.PreRuntimeDigest)
	if !ok {
		return nil, nil, errNoPreRuntimeDigest
	}

	seal, ok := header.Digest[len(header.Digest)-1].(*types.SealDigest)
	if !ok {
		return nil, nil, errLastDigestItemNotSeal
	}

	babeDigest, err := types.DecodeBabePreDigest(pre.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding pre-runtime digest: %w", err)
	}

	return babeDigest, seal, nil
}

// verifySlotClaim recomputes the claim's VRF/threshold test for the
// claiming authority
func (v *VerificationManager) verifySlotClaim(babeDigest types.BabePreDigest,
	authority types.Authority, epoch *forks.Epoch) error {
	pub := authority.Key

	switch d := babeDigest.(type) {
	case *types.BabePrimaryPreDigest:
		transcript := makeTranscript(epoch.Randomness, d.SlotNumber, epoch.Index)
		ok, err := pub.VrfVerify(transcript, d.VRFOutput, d.VRFProof)
		if err != nil || !ok {
			return fmt.Errorf("%w: authority index %d, slot %d",
				ErrInvalidVrfProof, d.AuthorityIndex, d.SlotNumber)
		}

		threshold, err := CalculateThreshold(epoch.Config.C1, epoch.Config.C2,
			authority.Weight, types.TotalWeight(epoch.Authorities))
		if err != nil {
			return fmt.Errorf("calculating threshold: %w", err)
		}

		ok, err = checkPrimaryThreshold(epoch.Randomness, d.SlotNumber, epoch.Index,
			d.VRFOutput, threshold, pub)
		if err != nil {
			return fmt.Errorf("checking threshold: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: authority index %d, slot %d",
				ErrThresholdNotMet, d.AuthorityIndex, d.SlotNumber)
		}

	case *types.BabeSecondaryPlainPreDigest:
		if epoch.Config.SecondarySlots != types.SecondarySlotsPlain {
			return fmt.Errorf("%w: plain claims not allowed this epoch", ErrBadSecondarySlotClaim)
		}

		err := verifySecondarySlotPlain(d.AuthorityIndex, d.SlotNumber,
			len(epoch.Authorities), epoch.Randomness)
		if err != nil {
			return err
		}

	case *types.BabeSecondaryVRFPreDigest:
		if epoch.Config.SecondarySlots != types.SecondarySlotsVRF {
			return fmt.Errorf("%w: VRF claims not allowed this epoch", ErrBadSecondarySlotClaim)
		}

		ok, err := verifySecondarySlotVRF(d, pub, epoch.Index,
			len(epoch.Authorities), epoch.Randomness)
		if errors.Is(err, ErrBadSecondarySlotClaim) {
			return err
		}
		if err != nil || !ok {
			return fmt.Errorf("%w: authority index %d, slot %d",
				ErrInvalidVrfProof, d.AuthorityIndex, d.SlotNumber)
		}

	default:
		return types.ErrUnknownPreDigestType
	}

	return nil
}

// verifySeal checks the seal signature over the blake2b hash of the
// header without its seal digest
func verifySeal(header *types.Header, seal *types.SealDigest, pub *sr25519.PublicKey) error {
	unsealed := *header
	unsealed.Digest = header.Digest[:len(header.Digest)-1]

	enc, err := unsealed.Encode()
	if err != nil {
		return fmt.Errorf("encoding unsealed header: %w", err)
	}

	hash := common.MustBlake2bHash(enc)
	ok, err := pub.Verify(hash[:], seal.Data)
	if err != nil || !ok {
		return fmt.Errorf("%w: block %s", ErrBadSignature, header.Hash())
	}

	return nil
}

func (v *VerificationManager) isDisabled(epoch uint64, authorityIndex uint32) bool {
	v.lock.Lock()
	defer v.lock.Unlock()

	disabled, has := v.onDisabled[epoch]
	if !has {
		return false
	}
	_, is := disabled[authorityIndex]
	return is
}

// checkEquivocation records the claim and reports a proof to the sink if
// the authority already produced a different header for the slot. The
// slot state deduplicates, so each proof is reported exactly once.
func (v *VerificationManager) checkEquivocation(slotNow, slot uint64,
	header *types.Header, signer types.AuthorityID) {
	proof, err := v.slotState.CheckEquivocation(slotNow, slot, header, signer)
	if err != nil {
		logger.Warnf("could not check equivocation for slot %d: %s", slot, err)
		return
	}
	if proof == nil {
		return
	}

	logger.Warnf("equivocation detected: authority 0x%x produced two blocks in slot %d",
		proof.Offender, proof.Slot)
	equivocationsDetected.Inc()

	if v.sink != nil {
		v.sink.Report(proof)
	}
}

// handleConsensusDigests imports epoch-change announcements carried in
// the header's consensus digests into the fork tracker, and applies
// authority-disabling announcements.
func (v *VerificationManager) handleConsensusDigests(header *types.Header,
	epoch *forks.Epoch) error {
	var (
		nextEpochData  *types.NextEpochData
		nextConfigData *types.NextConfigData
	)

	for _, item := range header.Digest {
		consensus, ok := item.(*types.ConsensusDigest)
		if !ok || consensus.ConsensusEngineID != types.BabeEngineID {
			continue
		}

		decoded, err := types.DecodeBabeConsensusDigest(consensus.Data)
		if err != nil {
			return fmt.Errorf("decoding consensus digest: %w", err)
		}

		switch d := decoded.(type) {
		case types.NextEpochData:
			nextEpochData = &d
		case types.NextConfigData:
			nextConfigData = &d
		case types.OnDisabled:
			if err := v.setOnDisabled(epoch.Index, d.AuthorityIndex); err != nil {
				return err
			}
		}
	}

	if nextEpochData == nil {
		if nextConfigData != nil {
			// a config change can only ride along with an epoch change
			logger.Warnf("ignoring config data with no epoch data in block %s", header.Hash())
		}
		return nil
	}

	authorities, err := types.AuthoritiesFromRaw(nextEpochData.Authorities)
	if err != nil {
		return fmt.Errorf("decoding next epoch authorities: %w", err)
	}

	nextEpoch := epoch.Index + 1
	startSlot, err := v.epochState.GetStartSlotForEpoch(nextEpoch)
	if err != nil {
		return fmt.Errorf("getting start slot for epoch %d: %w", nextEpoch, err)
	}

	change := &forks.EpochChange{
		EpochIndex:  nextEpoch,
		StartSlot:   startSlot,
		Authorities: authorities,
		Randomness:  nextEpochData.Randomness,
	}
	if nextConfigData != nil {
		change.Config = nextConfigData.ToConfigData()
	}

	err = v.tracker.ImportEpochChange(header.Hash(), header.ParentHash, header.Number, change)
	if err != nil && !errors.Is(err, forks.ErrChangeExists) {
		return fmt.Errorf("importing epoch change: %w", err)
	}

	logger.Debugf("imported epoch change for epoch %d announced in block %s",
		nextEpoch, header.Hash().Short())
	return nil
}

func (v *VerificationManager) setOnDisabled(epoch uint64, authorityIndex uint32) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	disabled, has := v.onDisabled[epoch]
	if !has {
		disabled = make(map[uint32]struct{})
		v.onDisabled[epoch] = disabled
	}

	if _, is := disabled[authorityIndex]; is {
		return fmt.Errorf("%w: index %d in epoch %d",
			ErrAuthorityAlreadyDisabled, authorityIndex, epoch)
	}

	disabled[authorityIndex] = struct{}{}
	return nil
}

func saturatingSub(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}
