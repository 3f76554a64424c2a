// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// ConsensusEngineID is a 4-character identifier of the consensus engine
// that produced the digest.
type ConsensusEngineID [4]byte

// BabeEngineID is the hard-coded block production engine ID
var BabeEngineID = ConsensusEngineID{'B', 'A', 'B', 'E'}

// ToBytes turns ConsensusEngineID to a byte slice
func (h ConsensusEngineID) ToBytes() []byte {
	b := [4]byte(h)
	return b[:]
}

const (
	// PreRuntimeDigestType is the type tag of PreRuntimeDigest
	PreRuntimeDigestType = byte(6)
	// ConsensusDigestType is the type tag of ConsensusDigest
	ConsensusDigestType = byte(4)
	// SealDigestType is the type tag of SealDigest
	SealDigestType = byte(5)
)

// ErrUnknownDigestType is returned when decoding an unrecognised digest item
var ErrUnknownDigestType = errors.New("invalid digest item type")

// DigestItem is one union member of a header digest: a PreRuntimeDigest,
// ConsensusDigest or SealDigest.
type DigestItem interface {
	fmt.Stringer
	Type() byte
	Encode(encoder scale.Encoder) error
	Decode(decoder scale.Decoder) error
}

// Digest is an ordered sequence of digest items carried by a header
type Digest []DigestItem

// NewDigest returns a new Digest from the given DigestItems
func NewDigest(items ...DigestItem) Digest {
	return items
}

// Encode returns the SCALE encoded digest
func (d Digest) Encode() ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := scale.NewEncoder(buffer)

	err := encoder.EncodeUintCompact(*big.NewInt(int64(len(d))))
	if err != nil {
		return nil, err
	}

	for _, item := range d {
		err = encoder.PushByte(item.Type())
		if err != nil {
			return nil, err
		}

		err = item.Encode(*encoder)
		if err != nil {
			return nil, err
		}
	}

	return buffer.Bytes(), nil
}

// DecodeDigest decodes a SCALE encoded digest using the given decoder
func DecodeDigest(decoder *scale.Decoder) (Digest, error) {
	length, err := decoder.DecodeUintCompact()
	if err != nil {
		return nil, fmt.Errorf("decoding digest length: %w", err)
	}

	digest := make(Digest, length.Uint64())
	for i := range digest {
		digest[i], err = DecodeDigestItem(decoder)
		if err != nil {
			return nil, fmt.Errorf("decoding digest item %d: %w", i, err)
		}
	}

	return digest, nil
}

// DecodeDigestItem decodes one digest item using the given decoder
func DecodeDigestItem(decoder *scale.Decoder) (DigestItem, error) {
	typ, err := decoder.ReadOneByte()
	if err != nil {
		return nil, err
	}

	var item DigestItem
	switch typ {
	case PreRuntimeDigestType:
		item = new(PreRuntimeDigest)
	case ConsensusDigestType:
		item = new(ConsensusDigest)
	case SealDigestType:
		item = new(SealDigest)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownDigestType, typ)
	}

	if err := item.Decode(*decoder); err != nil {
		return nil, err
	}
	return item, nil
}

// PreRuntimeDigest contains the claim data the consensus engine attaches
// before the block body is built.
type PreRuntimeDigest struct {
	ConsensusEngineID ConsensusEngineID
	Data              []byte
}

// NewBABEPreRuntimeDigest returns a PreRuntimeDigest with the BABE engine ID
func NewBABEPreRuntimeDigest(data []byte) *PreRuntimeDigest {
	return &PreRuntimeDigest{
		ConsensusEngineID: BabeEngineID,
		Data:              data,
	}
}

// Type returns the type tag
func (d *PreRuntimeDigest) Type() byte { return PreRuntimeDigestType }

// Encode writes the digest item payload using the given encoder
func (d *PreRuntimeDigest) Encode(encoder scale.Encoder) error {
	if err := encoder.Write(d.ConsensusEngineID.ToBytes()); err != nil {
		return err
	}
	return encoder.Encode(d.Data)
}

// Decode reads the digest item payload using the given decoder
func (d *PreRuntimeDigest) Decode(decoder scale.Decoder) error {
	id := make([]byte, 4)
	if err := decoder.Read(id); err != nil {
		return err
	}
	copy(d.ConsensusEngineID[:], id)
	return decoder.Decode(&d.Data)
}

// String returns the digest as a formatted string
func (d *PreRuntimeDigest) String() string {
	return fmt.Sprintf("PreRuntimeDigest ConsensusEngineID=%s Data=0x%x",
		d.ConsensusEngineID.ToBytes(), d.Data)
}

// ConsensusDigest carries messages from the runtime to the consensus
// engine, such as epoch change announcements.
type ConsensusDigest struct {
	ConsensusEngineID ConsensusEngineID
	Data              []byte
}

// Type returns the type tag
func (d *ConsensusDigest) Type() byte { return ConsensusDigestType }

// Encode writes the digest item payload using the given encoder
func (d *ConsensusDigest) Encode(encoder scale.Encoder) error {
	if err := encoder.Write(d.ConsensusEngineID.ToBytes()); err != nil {
		return err
	}
	return encoder.Encode(d.Data)
}

// Decode reads the digest item payload using the given decoder
func (d *ConsensusDigest) Decode(decoder scale.Decoder) error {
	id := make([]byte, 4)
	if err := decoder.Read(id); err != nil {
		return err
	}
	copy(d.ConsensusEngineID[:], id)
	return decoder.Decode(&d.Data)
}

// String returns the digest as a formatted string
func (d *ConsensusDigest) String() string {
	return fmt.Sprintf("ConsensusDigest ConsensusEngineID=%s Data=0x%x",
		d.ConsensusEngineID.ToBytes(), d.Data)
}

// SealDigest contains the producer's signature over the header, attached
// as the last digest item.
type SealDigest struct {
	ConsensusEngineID ConsensusEngineID
	Data              []byte
}

// Type returns the type tag
func (d *SealDigest) Type() byte { return SealDigestType }

// Encode writes the digest item payload using the given encoder
func (d *SealDigest) Encode(encoder scale.Encoder) error {
	if err := encoder.Write(d.ConsensusEngineID.ToBytes()); err != nil {
		return err
	}
	return encoder.Encode(d.Data)
}

// Decode reads the digest item payload using the given decoder
func (d *SealDigest) Decode(decoder scale.Decoder) error {
	id := make([]byte, 4)
	if err := decoder.Read(id); err != nil {
		return err
	}
	copy(d.ConsensusEngineID[:], id)
	return decoder.Decode(&d.Data)
}

// String returns the digest as a formatted string
func (d *SealDigest) String() string {
	return fmt.Sprintf("SealDigest ConsensusEngineID=%s Data=0x%x",
		d.ConsensusEngineID.ToBytes(), d.Data)
}
