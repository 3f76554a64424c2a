// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ChainSafe/chaindb"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"

	"github.com/arborchain/arbor/dot/types"
)

const slotTablePrefix = "slot"

// maxSlotCapacity is the number of recent slots kept for equivocation
// detection; older claims are outside the detection window.
const maxSlotCapacity uint64 = 1000

// pruningBound is the slot count at which old entries get pruned.
const pruningBound = 2 * maxSlotCapacity

var (
	slotHeaderMapKey   = []byte("slot_header_map")
	slotHeaderStartKey = []byte("slot_header_start")
)

// SlotState records which authority produced which header in recent
// slots, backing equivocation detection
type SlotState struct {
	db chaindb.Database
}

// NewSlotState returns a SlotState backed by the given database
func NewSlotState(db *chaindb.BadgerDB) *SlotState {
	return &SlotState{
		db: chaindb.NewTable(db, slotTablePrefix),
	}
}

type headerAndSigner struct {
	header *types.Header
	signer types.AuthorityID
}

func encodeHeadersAndSigners(entries []headerAndSigner) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := scale.NewEncoder(buffer)

	length := new(big.Int).SetUint64(uint64(len(entries)))
	if err := encoder.EncodeUintCompact(*length); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		headerEnc, err := entry.header.Encode()
		if err != nil {
			return nil, err
		}
		// headers are length-prefixed so they frame in the stream
		if err := encoder.Encode(headerEnc); err != nil {
			return nil, err
		}
		if err := encoder.Write(entry.signer[:]); err != nil {
			return nil, err
		}
	}

	return buffer.Bytes(), nil
}

func decodeHeadersAndSigners(enc []byte) ([]headerAndSigner, error) {
	decoder := scale.NewDecoder(bytes.NewReader(enc))

	length, err := decoder.DecodeUintCompact()
	if err != nil {
		return nil, err
	}

	entries := make([]headerAndSigner, 0, length.Uint64())
	for i := uint64(0); i < length.Uint64(); i++ {
		var headerEnc []byte
		if err := decoder.Decode(&headerEnc); err != nil {
			return nil, err
		}

		header, err := types.DecodeHeader(headerEnc)
		if err != nil {
			return nil, err
		}

		var signer types.AuthorityID
		if err := decoder.Read(signer[:]); err != nil {
			return nil, err
		}

		entries = append(entries, headerAndSigner{header: header, signer: signer})
	}

	return entries, nil
}

// CheckEquivocation records the (slot, signer, header) triple and returns
// an equivocation proof if the signer already produced a different header
// for the same slot. A nil proof with nil error means no equivocation.
// Duplicate submissions of the same header are not equivocations.
func (s *SlotState) CheckEquivocation(slotNow, slot uint64, header *types.Header,
	signer types.AuthorityID) (*types.BabeEquivocationProof, error) {
	// headers older than the detection window are not checked;
	// saturating to avoid overflow when slot is ahead of slotNow
	if saturatingSub(slotNow, slot) > maxSlotCapacity {
		return nil, nil
	}

	slotEncoded := make([]byte, 8)
	binary.LittleEndian.PutUint64(slotEncoded, slot)

	currentSlotKey := bytes.Join([][]byte{slotHeaderMapKey, slotEncoded}, nil)
	encodedEntries, err := s.db.Get(currentSlotKey)
	if err != nil && !errors.Is(err, chaindb.ErrKeyNotFound) {
		return nil, fmt.Errorf("getting headers for slot %d: %w", slot, err)
	}

	entries := []headerAndSigner{}
	if len(encodedEntries) > 0 {
		entries, err = decodeHeadersAndSigners(encodedEntries)
		if err != nil {
			return nil, fmt.Errorf("decoding headers and signers: %w", err)
		}
	}

	firstSavedSlot := slot
	firstSavedSlotEncoded, err := s.db.Get(slotHeaderStartKey)
	if err != nil && !errors.Is(err, chaindb.ErrKeyNotFound) {
		return nil, fmt.Errorf("getting first saved slot: %w", err)
	}

	if len(firstSavedSlotEncoded) > 0 {
		firstSavedSlot = binary.LittleEndian.Uint64(firstSavedSlotEncoded)
	}

	if slotNow < firstSavedSlot {
		// slots are assumed to be visited sequentially
		return nil, nil
	}

	var proof *types.BabeEquivocationProof
	for _, entry := range entries {
		if entry.header.Hash() == header.Hash() {
			// duplicated header, already recorded; any equivocation
			// was already reported on its first submission
			return nil, nil
		}

		// an equivocation proof consists of two headers signed by the
		// same authority with different hashes
		if entry.signer == signer && proof == nil {
			proof = &types.BabeEquivocationProof{
				Slot:         slot,
				Offender:     signer,
				FirstHeader:  *entry.header,
				SecondHeader: *header,
			}
		}
	}

	keysToDelete := make([][]byte, 0)
	newFirstSavedSlot := firstSavedSlot

	if slotNow-firstSavedSlot >= pruningBound {
		newFirstSavedSlot = saturatingSub(slotNow, maxSlotCapacity)

		for toPrune := firstSavedSlot; toPrune < newFirstSavedSlot; toPrune++ {
			pruneEncoded := make([]byte, 8)
			binary.LittleEndian.PutUint64(pruneEncoded, toPrune)

			toDelete := bytes.Join([][]byte{slotHeaderMapKey, pruneEncoded}, nil)
			keysToDelete = append(keysToDelete, toDelete)
		}
	}

	entries = append(entries, headerAndSigner{header: header, signer: signer})
	encodedEntries, err = encodeHeadersAndSigners(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding headers and signers: %w", err)
	}

	batch := s.db.NewBatch()
	if err := batch.Put(currentSlotKey, encodedEntries); err != nil {
		return nil, fmt.Errorf("batch putting headers and signers: %w", err)
	}

	newFirstSavedSlotEncoded := make([]byte, 8)
	binary.LittleEndian.PutUint64(newFirstSavedSlotEncoded, newFirstSavedSlot)
	if err := batch.Put(slotHeaderStartKey, newFirstSavedSlotEncoded); err != nil {
		return nil, fmt.Errorf("batch putting first saved slot: %w", err)
	}

	for _, toDelete := range keysToDelete {
		if err := batch.Del(toDelete); err != nil {
			return nil, fmt.Errorf("batch deleting key 0x%x: %w", toDelete, err)
		}
	}

	if err := batch.Flush(); err != nil {
		return nil, fmt.Errorf("flushing batch: %w", err)
	}

	// the offending header is recorded as well, so resubmitting it does
	// not produce the proof a second time
	return proof, nil
}

func saturatingSub(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}
