// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"fmt"

	"github.com/arborchain/arbor/lib/crypto/sr25519"
)

// AuthorityID is the sr25519 public key identifying a slot-claim-eligible
// party. Necessarily equivalent to the schnorrkel public key used by the
// production engine.
type AuthorityID [sr25519.PublicKeyLength]byte

// Authority is a weighted member of the block production authority set
type Authority struct {
	Key    *sr25519.PublicKey
	Weight uint64
}

// NewAuthority returns a new Authority with the given key and weight
func NewAuthority(pub *sr25519.PublicKey, weight uint64) Authority {
	return Authority{
		Key:    pub,
		Weight: weight,
	}
}

// ToRaw returns the Authority with its key in raw byte form
func (a *Authority) ToRaw() AuthorityRaw {
	return AuthorityRaw{
		Key:    a.Key.AsBytes(),
		Weight: a.Weight,
	}
}

// ID returns the AuthorityID for the authority's key
func (a *Authority) ID() AuthorityID {
	return AuthorityID(a.Key.AsBytes())
}

// String returns the string representation of the authority
func (a Authority) String() string {
	return fmt.Sprintf("[key=%s weight=%d]", a.Key.Hex(), a.Weight)
}

// AuthorityRaw is an Authority with its public key in raw byte form
type AuthorityRaw struct {
	Key    [sr25519.PublicKeyLength]byte
	Weight uint64
}

// ToAuthority decodes the raw key into a public key
func (a *AuthorityRaw) ToAuthority() (Authority, error) {
	pub, err := sr25519.NewPublicKey(a.Key[:])
	if err != nil {
		return Authority{}, fmt.Errorf("decoding authority key: %w", err)
	}
	return Authority{Key: pub, Weight: a.Weight}, nil
}

// AuthoritiesToRaw converts a slice of Authority to a slice of AuthorityRaw
func AuthoritiesToRaw(auths []Authority) []AuthorityRaw {
	raw := make([]AuthorityRaw, len(auths))
	for i := range auths {
		raw[i] = auths[i].ToRaw()
	}
	return raw
}

// AuthoritiesFromRaw converts a slice of AuthorityRaw to a slice of Authority
func AuthoritiesFromRaw(raw []AuthorityRaw) ([]Authority, error) {
	auths := make([]Authority, len(raw))
	for i := range raw {
		auth, err := raw[i].ToAuthority()
		if err != nil {
			return nil, fmt.Errorf("authority %d: %w", i, err)
		}
		auths[i] = auth
	}
	return auths, nil
}

// TotalWeight returns the summed weight of the authority set
func TotalWeight(auths []Authority) (total uint64) {
	for i := range auths {
		total += auths[i].Weight
	}
	return total
}
