// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package babe

import (
	"errors"
)

var (
	// ErrBadSignature is returned when the seal signature does not verify
	// under the claiming authority's key
	ErrBadSignature = errors.New("could not verify seal signature")

	// ErrInvalidVrfProof is returned when a claim's VRF proof does not
	// verify against the epoch transcript
	ErrInvalidVrfProof = errors.New("could not verify slot claim VRF proof")

	// ErrThresholdNotMet is returned when a primary claim's VRF output is
	// not under the authority's weighted threshold
	ErrThresholdNotMet = errors.New("vrf output over threshold")

	// ErrUnknownAuthority is returned when the claiming authority index is
	// not in the epoch's authority set
	ErrUnknownAuthority = errors.New("block producer is not in authority set")

	// ErrSlotInThePast is returned when the claimed slot is behind the
	// accepted window
	ErrSlotInThePast = errors.New("claimed slot is in the past")

	// ErrSlotInTheFuture is returned when the claimed slot is ahead of the
	// accepted window
	ErrSlotInTheFuture = errors.New("claimed slot is in the future")

	// ErrBadSecondarySlotClaim is returned when a secondary slot claim is invalid
	ErrBadSecondarySlotClaim = errors.New("invalid secondary slot claim")

	// ErrNotAuthority is returned when trying to perform authority functions
	// when not an authority
	ErrNotAuthority = errors.New("node is not an authority")

	// ErrAuthorityDisabled is returned when verifying a block produced by an
	// authority disabled for the remainder of the epoch
	ErrAuthorityDisabled = errors.New("authority has been disabled for the remaining slots in the epoch")

	// ErrAuthorityAlreadyDisabled is returned when disabling an
	// already-disabled authority
	ErrAuthorityAlreadyDisabled = errors.New("authority has already been disabled")

	// ErrThresholdOneIsZero is returned when one of or both threshold
	// parameters are zero
	ErrThresholdOneIsZero = errors.New("numerator or denominator cannot be 0")

	errNilBlockState          = errors.New("cannot have nil BlockState")
	errNilEpochState          = errors.New("cannot have nil EpochState")
	errNilSlotState           = errors.New("cannot have nil SlotState")
	errNilEpochTracker        = errors.New("cannot have nil epoch tracker")
	errNilBlockBuilder        = errors.New("cannot have nil block builder")
	errNilBlockImportHandler  = errors.New("cannot have nil BlockImportHandler")
	errNilAccumulator         = errors.New("cannot have nil randomness accumulator")
	errNoAuthorityKeyProvided = errors.New("cannot create service as authority; no keypair provided")

	errOverPrimarySlotThreshold = errors.New("cannot claim slot, over primary threshold")
	errNotOurTurnToPropose      = errors.New("cannot claim slot, not our turn to propose a block")
	errSecondarySlotsDisabled   = errors.New("secondary slots are disabled for this epoch")
	errMissingDigestItems       = errors.New("block header is missing digest items")
	errLastDigestItemNotSeal    = errors.New("last digest item is not seal")
	errNoPreRuntimeDigest       = errors.New("first digest item is not pre-runtime digest")
	errEpochPast                = errors.New("cannot run epoch that has already passed")
	errLaggingSlot              = errors.New("current slot is smaller than slot of best block")
	errServiceStopped           = errors.New("service already stopped")
)
