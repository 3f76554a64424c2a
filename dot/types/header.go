// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/arborchain/arbor/lib/common"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// Header is a block header
type Header struct {
	ParentHash     common.Hash
	Number         uint
	StateRoot      common.Hash
	ExtrinsicsRoot common.Hash
	Digest         Digest

	hash common.Hash
}

// NewHeader creates a new block header and sets its hash field
func NewHeader(parentHash, stateRoot, extrinsicsRoot common.Hash,
	number uint, digest Digest) *Header {
	bh := &Header{
		ParentHash:     parentHash,
		Number:         number,
		StateRoot:      stateRoot,
		ExtrinsicsRoot: extrinsicsRoot,
		Digest:         digest,
	}

	bh.Hash()
	return bh
}

// NewEmptyHeader returns a new header with all zero values
func NewEmptyHeader() *Header {
	return &Header{
		Digest: NewDigest(),
	}
}

// DeepCopy returns a deep copy of the header, to prevent the parent
// header mutating under an in-flight block build.
func (bh *Header) DeepCopy() (*Header, error) {
	enc, err := bh.Encode()
	if err != nil {
		return nil, err
	}
	return DecodeHeader(enc)
}

// String returns the formatted header as a string
func (bh *Header) String() string {
	return fmt.Sprintf("ParentHash=%s Number=%d StateRoot=%s "+
		"ExtrinsicsRoot=%s Digest=%v Hash=%s",
		bh.ParentHash, bh.Number, bh.StateRoot, bh.ExtrinsicsRoot,
		bh.Digest, bh.Hash())
}

// Encode returns the SCALE encoding of the header
func (bh *Header) Encode() ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := scale.NewEncoder(buffer)

	if err := encoder.Write(bh.ParentHash.ToBytes()); err != nil {
		return nil, err
	}

	number := new(big.Int).SetUint64(uint64(bh.Number))
	if err := encoder.EncodeUintCompact(*number); err != nil {
		return nil, err
	}

	if err := encoder.Write(bh.StateRoot.ToBytes()); err != nil {
		return nil, err
	}

	if err := encoder.Write(bh.ExtrinsicsRoot.ToBytes()); err != nil {
		return nil, err
	}

	digestEnc, err := bh.Digest.Encode()
	if err != nil {
		return nil, err
	}

	if err := encoder.Write(digestEnc); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// MustEncode returns the SCALE encoded header and panics if it fails to encode
func (bh *Header) MustEncode() []byte {
	enc, err := bh.Encode()
	if err != nil {
		panic(err)
	}
	return enc
}

// DecodeHeader decodes the SCALE encoding into a Header
func DecodeHeader(in []byte) (*Header, error) {
	decoder := scale.NewDecoder(bytes.NewReader(in))
	header := NewEmptyHeader()

	parentHash := make([]byte, common.HashLength)
	if err := decoder.Read(parentHash); err != nil {
		return nil, fmt.Errorf("decoding parent hash: %w", err)
	}
	header.ParentHash = common.NewHash(parentHash)

	number, err := decoder.DecodeUintCompact()
	if err != nil {
		return nil, fmt.Errorf("decoding block number: %w", err)
	}
	header.Number = uint(number.Uint64())

	stateRoot := make([]byte, common.HashLength)
	if err := decoder.Read(stateRoot); err != nil {
		return nil, fmt.Errorf("decoding state root: %w", err)
	}
	header.StateRoot = common.NewHash(stateRoot)

	extrinsicsRoot := make([]byte, common.HashLength)
	if err := decoder.Read(extrinsicsRoot); err != nil {
		return nil, fmt.Errorf("decoding extrinsics root: %w", err)
	}
	header.ExtrinsicsRoot = common.NewHash(extrinsicsRoot)

	header.Digest, err = DecodeDigest(decoder)
	if err != nil {
		return nil, fmt.Errorf("decoding digest: %w", err)
	}

	header.Hash()
	return header, nil
}

// Hash returns the blake2b hash of the SCALE encoded header.
// The hash is cached on first computation.
func (bh *Header) Hash() common.Hash {
	if bh.hash.IsEmpty() {
		enc, err := bh.Encode()
		if err != nil {
			panic(err)
		}

		hash, err := common.Blake2bHash(enc)
		if err != nil {
			panic(err)
		}

		bh.hash = hash
	}

	return bh.hash
}

// ClearCachedHash drops the cached hash, forcing recomputation on the
// next Hash call. Used after mutating the digest during sealing.
func (bh *Header) ClearCachedHash() {
	bh.hash = common.EmptyHash
}
