// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

const (
	nextEpochDataType  = byte(1)
	onDisabledType     = byte(2)
	nextConfigDataType = byte(3)
)

// ErrUnknownConsensusDigestType is returned when decoding an unrecognised
// BABE consensus digest variant
var ErrUnknownConsensusDigestType = errors.New("invalid BABE consensus digest type")

// BabeConsensusDigest is one of NextEpochData, OnDisabled or NextConfigData.
type BabeConsensusDigest interface {
	ToConsensusDigest() (*ConsensusDigest, error)
}

// NextEpochData is the authority set and randomness for the next epoch,
// announced in the last block of the current epoch.
type NextEpochData struct {
	Authorities []AuthorityRaw
	Randomness  Randomness
}

// ToConsensusDigest encodes the announcement into a ConsensusDigest
func (d NextEpochData) ToConsensusDigest() (*ConsensusDigest, error) {
	return encodeConsensusDigest(nextEpochDataType, d)
}

// ToEpochDataRaw converts the announcement to an EpochDataRaw
func (d NextEpochData) ToEpochDataRaw() *EpochDataRaw {
	return &EpochDataRaw{
		Authorities: d.Authorities,
		Randomness:  d.Randomness,
	}
}

// OnDisabled announces that the authority with the given index is
// disabled for the remainder of the epoch.
type OnDisabled struct {
	AuthorityIndex uint32
}

// ToConsensusDigest encodes the announcement into a ConsensusDigest
func (d OnDisabled) ToConsensusDigest() (*ConsensusDigest, error) {
	return encodeConsensusDigest(onDisabledType, d)
}

// NextConfigData is the threshold configuration for the next epoch,
// announced in the last block of the current epoch.
type NextConfigData struct {
	C1             uint64
	C2             uint64
	SecondarySlots SecondarySlots
}

// ToConsensusDigest encodes the announcement into a ConsensusDigest
func (d NextConfigData) ToConsensusDigest() (*ConsensusDigest, error) {
	return encodeConsensusDigest(nextConfigDataType, d)
}

// ToConfigData converts the announcement to a ConfigData
func (d NextConfigData) ToConfigData() *ConfigData {
	return &ConfigData{
		C1:             d.C1,
		C2:             d.C2,
		SecondarySlots: d.SecondarySlots,
	}
}

func encodeConsensusDigest(variant byte, digest interface{}) (*ConsensusDigest, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := scale.NewEncoder(buffer)

	if err := encoder.PushByte(variant); err != nil {
		return nil, err
	}

	if err := encoder.Encode(digest); err != nil {
		return nil, err
	}

	return &ConsensusDigest{
		ConsensusEngineID: BabeEngineID,
		Data:              buffer.Bytes(),
	}, nil
}

// DecodeBabeConsensusDigest decodes the input into one of the BABE
// consensus digest variants
func DecodeBabeConsensusDigest(in []byte) (BabeConsensusDigest, error) {
	decoder := scale.NewDecoder(bytes.NewReader(in))

	variant, err := decoder.ReadOneByte()
	if err != nil {
		return nil, err
	}

	switch variant {
	case nextEpochDataType:
		var digest NextEpochData
		if err := decoder.Decode(&digest); err != nil {
			return nil, err
		}
		return digest, nil
	case onDisabledType:
		var digest OnDisabled
		if err := decoder.Decode(&digest); err != nil {
			return nil, err
		}
		return digest, nil
	case nextConfigDataType:
		var digest NextConfigData
		if err := decoder.Decode(&digest); err != nil {
			return nil, err
		}
		return digest, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownConsensusDigestType, variant)
}
