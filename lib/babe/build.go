// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"context"
	"fmt"
	"time"

	"github.com/arborchain/arbor/dot/types"
	"github.com/arborchain/arbor/lib/common"
	"github.com/arborchain/arbor/lib/crypto/sr25519"
)

// buildBlock builds a sealed block on top of parent for the given slot.
// The pre-runtime digest carries this node's slot claim; if the slot is
// the last of its epoch, a consensus digest announcing the next epoch's
// authorities and randomness is attached as well.
func (b *Service) buildBlock(parent *types.Header, slot Slot, epoch uint64,
	preRuntimeDigest *types.PreRuntimeDigest) (*types.Block, error) {
	digest := types.NewDigest(preRuntimeDigest)

	claim, err := types.DecodeBabePreDigest(preRuntimeDigest.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding slot claim: %w", err)
	}

	announcement, err := b.nextEpochAnnouncement(slot, epoch, claim)
	if err != nil {
		return nil, fmt.Errorf("building next epoch announcement: %w", err)
	}
	if announcement != nil {
		digest = append(digest, announcement)
	}

	header := types.NewHeader(parent.Hash(), common.Hash{}, common.Hash{},
		parent.Number+1, digest)

	// leave a margin to seal and import before the slot ends
	buildDeadline := slot.start.Add(slot.duration * 2 / 3)
	ctx, cancel := context.WithDeadline(b.ctx, buildDeadline)
	defer cancel()

	start := time.Now()
	body, err := b.blockBuilder.BuildBlockBody(ctx, parent, slot)
	if err != nil {
		return nil, fmt.Errorf("building block body: %w", err)
	}
	logger.Debugf("built body with %d extrinsics in %s", len(body), time.Since(start))

	bodyEnc, err := body.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	header.ExtrinsicsRoot, err = common.Blake2bHash(bodyEnc)
	if err != nil {
		return nil, fmt.Errorf("hashing body: %w", err)
	}
	header.ClearCachedHash()

	seal, err := b.buildBlockSeal(header)
	if err != nil {
		return nil, fmt.Errorf("sealing block: %w", err)
	}

	header.Digest = append(header.Digest, seal)
	header.ClearCachedHash()

	return &types.Block{
		Header: *header,
		Body:   body,
	}, nil
}

// buildBlockSeal signs the blake2b hash of the encoded unsealed header
func (b *Service) buildBlockSeal(header *types.Header) (*types.SealDigest, error) {
	encHeader, err := header.Encode()
	if err != nil {
		return nil, err
	}

	hash, err := common.Blake2bHash(encHeader)
	if err != nil {
		return nil, err
	}

	sig, err := b.keypair.Sign(hash[:])
	if err != nil {
		return nil, err
	}

	return &types.SealDigest{
		ConsensusEngineID: types.BabeEngineID,
		Data:              sig,
	}, nil
}

// nextEpochAnnouncement returns the NextEpochData consensus digest if
// the slot is the last of its epoch, nil otherwise
func (b *Service) nextEpochAnnouncement(slot Slot, epoch uint64,
	claim types.BabePreDigest) (*types.ConsensusDigest, error) {
	epochForNext, err := b.epochState.GetEpochForSlot(slot.number + 1)
	if err != nil {
		return nil, fmt.Errorf("getting epoch for slot %d: %w", slot.number+1, err)
	}
	if epochForNext == epoch {
		return nil, nil
	}

	data, err := b.epochState.GetEpochData(epoch)
	if err != nil {
		return nil, fmt.Errorf("getting epoch data: %w", err)
	}

	// the announcing block's own output belongs to the epoch being
	// frozen; it only reaches the accumulator once the block is verified
	var pending [][sr25519.VRFOutputLength]byte
	if primary, ok := claim.(*types.BabePrimaryPreDigest); ok {
		pending = append(pending, primary.VRFOutput)
	}

	next := types.NextEpochData{
		Authorities: types.AuthoritiesToRaw(data.Authorities),
		Randomness:  b.accumulator.NextEpochRandomness(pending...),
	}

	logger.Debugf("announcing epoch %d data in slot %d", epoch+1, slot.number)
	return next.ToConsensusDigest()
}
