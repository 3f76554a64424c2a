// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Uint128 represents an unsigned 128 bit integer.
// It is used for the slot lottery threshold, which is a fraction
// of the full 2^128 range.
type Uint128 struct {
	Upper uint64
	Lower uint64
}

// MaxUint128 is the maximum uint128 value
var MaxUint128 = &Uint128{
	Upper: ^uint64(0),
	Lower: ^uint64(0),
}

var errUint128Overflow = errors.New("value does not fit in 128 bits")

// NewUint128FromBigInt converts a *big.Int into a Uint128.
// It fails if the value needs more than 16 bytes.
func NewUint128FromBigInt(in *big.Int) (*Uint128, error) {
	bytes := in.Bytes()
	if len(bytes) > 16 {
		return nil, fmt.Errorf("%w: %s", errUint128Overflow, in)
	}

	padded := make([]byte, 16)
	copy(padded[16-len(bytes):], bytes)
	return &Uint128{
		Upper: binary.BigEndian.Uint64(padded[:8]),
		Lower: binary.BigEndian.Uint64(padded[8:]),
	}, nil
}

// NewUint128FromLEBytes converts little endian bytes into a Uint128,
// the byte order SCALE uses. It fails on inputs over 16 bytes.
func NewUint128FromLEBytes(in []byte) (*Uint128, error) {
	if len(in) > 16 {
		return nil, fmt.Errorf("%w: 0x%x", errUint128Overflow, in)
	}

	padded := make([]byte, 16)
	copy(padded, in)
	return &Uint128{
		Upper: binary.LittleEndian.Uint64(padded[8:]),
		Lower: binary.LittleEndian.Uint64(padded[:8]),
	}, nil
}

// MustNewUint128FromBigInt panics if NewUint128FromBigInt returns an error
func MustNewUint128FromBigInt(in *big.Int) *Uint128 {
	u, err := NewUint128FromBigInt(in)
	if err != nil {
		panic(err)
	}
	return u
}

// Bytes returns the Uint128 as 16 little endian bytes
func (u *Uint128) Bytes() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[:8], u.Lower)
	binary.LittleEndian.PutUint64(b[8:], u.Upper)
	return b
}

// ToBigInt returns the Uint128 as a *big.Int
func (u *Uint128) ToBigInt() *big.Int {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], u.Upper)
	binary.BigEndian.PutUint64(b[8:], u.Lower)
	return new(big.Int).SetBytes(b)
}

// String returns the base 10 string of the Uint128 value
func (u *Uint128) String() string {
	return u.ToBigInt().String()
}

// Compare returns 1 if the receiver is greater than other,
// 0 if they are equal, and -1 otherwise.
func (u *Uint128) Compare(other *Uint128) int {
	switch {
	case u.Upper > other.Upper:
		return 1
	case u.Upper < other.Upper:
		return -1
	case u.Lower > other.Lower:
		return 1
	case u.Lower < other.Lower:
		return -1
	}
	return 0
}
