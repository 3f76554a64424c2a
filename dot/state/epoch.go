// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ChainSafe/chaindb"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"

	"github.com/arborchain/arbor/dot/types"
)

const epochTablePrefix = "epoch"

var (
	currentEpochKey  = []byte("current")
	firstSlotKey     = []byte("first_slot")
	epochDataPrefix  = []byte("epochdata")
	configDataPrefix = []byte("configdata")
)

var (
	// ErrEpochNotInDatabase is returned when epoch data for a given
	// epoch has not been set
	ErrEpochNotInDatabase = errors.New("epoch data not found in database")

	// ErrConfigNotFound is returned when no config data exists at or
	// below the given epoch
	ErrConfigNotFound = errors.New("config data not found")
)

func epochDataKey(epoch uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, epoch)
	return append(epochDataPrefix, buf...)
}

func configDataKey(epoch uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, epoch)
	return append(configDataPrefix, buf...)
}

func scaleEncode(value interface{}) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	if err := scale.NewEncoder(buffer).Encode(value); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func scaleDecode(data []byte, target interface{}) error {
	return scale.NewDecoder(bytes.NewReader(data)).Decode(target)
}

// EpochState persists per-epoch authority sets, randomness and threshold
// configuration, plus the chain's slot timing parameters
type EpochState struct {
	db           chaindb.Database
	epochLength  uint64
	slotDuration uint64
}

// NewEpochStateFromGenesis initialises an EpochState from the genesis
// block production configuration: epoch 0 gets the genesis authorities,
// randomness and threshold parameters.
func NewEpochStateFromGenesis(db *chaindb.BadgerDB,
	genesisConfig *types.BabeConfiguration) (*EpochState, error) {
	if genesisConfig.EpochLength == 0 {
		return nil, errors.New("epoch length is 0")
	}

	s := &EpochState{
		db:           chaindb.NewTable(db, epochTablePrefix),
		epochLength:  genesisConfig.EpochLength,
		slotDuration: genesisConfig.SlotDuration,
	}

	if err := s.SetCurrentEpoch(0); err != nil {
		return nil, err
	}

	err := s.setEpochDataRaw(0, &types.EpochDataRaw{
		Authorities: genesisConfig.GenesisAuthorities,
		Randomness:  genesisConfig.Randomness,
	})
	if err != nil {
		return nil, err
	}

	err = s.SetConfigData(0, &types.ConfigData{
		C1:             genesisConfig.C1,
		C2:             genesisConfig.C2,
		SecondarySlots: genesisConfig.SecondarySlots,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// EpochLength returns the number of slots per epoch
func (s *EpochState) EpochLength() uint64 {
	return s.epochLength
}

// SlotDuration returns the slot duration in milliseconds
func (s *EpochState) SlotDuration() uint64 {
	return s.slotDuration
}

// GetCurrentEpoch returns the current epoch index
func (s *EpochState) GetCurrentEpoch() (uint64, error) {
	enc, err := s.db.Get(currentEpochKey)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(enc), nil
}

// SetCurrentEpoch sets the current epoch index
func (s *EpochState) SetCurrentEpoch(epoch uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, epoch)
	return s.db.Put(currentEpochKey, buf)
}

// GetFirstSlot returns the slot of the first block produced on the chain.
// Epoch boundaries are computed relative to it.
func (s *EpochState) GetFirstSlot() (uint64, error) {
	enc, err := s.db.Get(firstSlotKey)
	if err != nil {
		if errors.Is(err, chaindb.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return binary.LittleEndian.Uint64(enc), nil
}

// SetFirstSlot sets the slot of the first block produced on the chain
func (s *EpochState) SetFirstSlot(slot uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, slot)
	return s.db.Put(firstSlotKey, buf)
}

func (s *EpochState) setEpochDataRaw(epoch uint64, raw *types.EpochDataRaw) error {
	enc, err := scaleEncode(raw)
	if err != nil {
		return fmt.Errorf("encoding epoch data: %w", err)
	}
	return s.db.Put(epochDataKey(epoch), enc)
}

// SetEpochData sets the authority set and randomness for the given epoch
func (s *EpochState) SetEpochData(epoch uint64, data *types.EpochData) error {
	return s.setEpochDataRaw(epoch, data.ToEpochDataRaw())
}

// GetEpochData returns the authority set and randomness for the given epoch
func (s *EpochState) GetEpochData(epoch uint64) (*types.EpochData, error) {
	enc, err := s.db.Get(epochDataKey(epoch))
	if err != nil {
		if errors.Is(err, chaindb.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: epoch %d", ErrEpochNotInDatabase, epoch)
		}
		return nil, err
	}

	raw := &types.EpochDataRaw{}
	if err := scaleDecode(enc, raw); err != nil {
		return nil, fmt.Errorf("decoding epoch data: %w", err)
	}

	return raw.ToEpochData()
}

// HasEpochData returns whether epoch data exists for the given epoch
func (s *EpochState) HasEpochData(epoch uint64) (bool, error) {
	return s.db.Has(epochDataKey(epoch))
}

// SetConfigData sets the threshold configuration taking effect at the
// given epoch
func (s *EpochState) SetConfigData(epoch uint64, data *types.ConfigData) error {
	enc, err := scaleEncode(data)
	if err != nil {
		return fmt.Errorf("encoding config data: %w", err)
	}
	return s.db.Put(configDataKey(epoch), enc)
}

// GetConfigData returns the threshold configuration in effect for the
// given epoch: the most recent config set at or before it
func (s *EpochState) GetConfigData(epoch uint64) (*types.ConfigData, error) {
	for e := epoch; ; e-- {
		has, err := s.db.Has(configDataKey(e))
		if err != nil {
			return nil, err
		}

		if has {
			enc, err := s.db.Get(configDataKey(e))
			if err != nil {
				return nil, err
			}

			data := &types.ConfigData{}
			if err := scaleDecode(enc, data); err != nil {
				return nil, fmt.Errorf("decoding config data: %w", err)
			}
			return data, nil
		}

		if e == 0 {
			return nil, fmt.Errorf("%w: at or below epoch %d", ErrConfigNotFound, epoch)
		}
	}
}

// GetEpochForSlot returns the epoch the given slot falls in
func (s *EpochState) GetEpochForSlot(slot uint64) (uint64, error) {
	firstSlot, err := s.GetFirstSlot()
	if err != nil {
		return 0, err
	}

	if slot < firstSlot {
		return 0, nil
	}

	return (slot - firstSlot) / s.epochLength, nil
}

// GetEpochForBlock returns the epoch the block's claimed slot falls in
func (s *EpochState) GetEpochForBlock(header *types.Header) (uint64, error) {
	slot, _, err := slotAndClaimFor(header)
	if err != nil {
		return 0, err
	}
	return s.GetEpochForSlot(slot)
}

// GetStartSlotForEpoch returns the first slot of the given epoch
func (s *EpochState) GetStartSlotForEpoch(epoch uint64) (uint64, error) {
	firstSlot, err := s.GetFirstSlot()
	if err != nil {
		return 0, err
	}
	return firstSlot + epoch*s.epochLength, nil
}
