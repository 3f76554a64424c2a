// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"bytes"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// Extrinsic is an opaque, SCALE encoded chain extrinsic. The engine does
// not inspect body semantics; bodies are built by the external builder.
type Extrinsic []byte

// Body is the block body, an ordered sequence of extrinsics
type Body []Extrinsic

// Encode returns the SCALE encoding of the body
func (b Body) Encode() ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	if err := scale.NewEncoder(buffer).Encode(convertBody(b)); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func convertBody(b Body) [][]byte {
	out := make([][]byte, len(b))
	for i, ext := range b {
		out[i] = ext
	}
	return out
}

// Block is a sealed header together with its body
type Block struct {
	Header Header
	Body   Body
}

// NewBlock returns a new Block
func NewBlock(header Header, body Body) Block {
	return Block{
		Header: header,
		Body:   body,
	}
}
