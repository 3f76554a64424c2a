// Copyright 2025 Arbor Chain Ltd
// SPDX-License-Identifier: LGPL-3.0-only

package sr25519

import (
	"errors"
	"fmt"

	"github.com/arborchain/arbor/lib/crypto"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	bip39 "github.com/cosmos/go-bip39"
	"github.com/gtank/merlin"
)

// SigningContext is the context used when signing non-transcript messages
var SigningContext = []byte("substrate")

const (
	// PublicKeyLength is the fixed Public Key Length
	PublicKeyLength = 32
	// SeedLength is the fixed Seed Length
	SeedLength = 32
	// PrivateKeyLength is the fixed Private Key Length
	PrivateKeyLength = 32
	// SignatureLength is the fixed Signature Length
	SignatureLength = 64
	// VRFOutputLength is the fixed VRF output Length
	VRFOutputLength = 32
	// VRFProofLength is the fixed VRF proof Length
	VRFProofLength = 64
)

// Keypair is a sr25519 public-private keypair
type Keypair struct {
	public  *PublicKey
	private *PrivateKey
}

// PublicKey holds reference to a sr25519.PublicKey
type PublicKey struct {
	key *schnorrkel.PublicKey
}

// PrivateKey holds reference to a sr25519.SecretKey
type PrivateKey struct {
	key *schnorrkel.SecretKey
}

// NewKeypair returns a sr25519 Keypair given a schnorrkel secret key
func NewKeypair(priv *schnorrkel.SecretKey) (*Keypair, error) {
	pub, err := priv.Public()
	if err != nil {
		return nil, err
	}

	return &Keypair{
		public:  &PublicKey{key: pub},
		private: &PrivateKey{key: priv},
	}, nil
}

// NewKeypairFromSeed returns a new sr25519 Keypair given a 32 byte seed
func NewKeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedLength {
		return nil, fmt.Errorf("cannot generate key from seed: seed is not %d bytes long", SeedLength)
	}

	var buf [SeedLength]byte
	copy(buf[:], seed)
	msc, err := schnorrkel.NewMiniSecretKeyFromRaw(buf)
	if err != nil {
		return nil, err
	}

	return &Keypair{
		public:  &PublicKey{key: msc.Public()},
		private: &PrivateKey{key: msc.ExpandEd25519()},
	}, nil
}

// NewKeypairFromMnenomic returns a new Keypair using the given mnemonic and password.
func NewKeypairFromMnenomic(mnemonic, password string) (*Keypair, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, password)
	if err != nil {
		return nil, fmt.Errorf("deriving seed from mnemonic: %w", err)
	}

	return NewKeypairFromSeed(seed[:SeedLength])
}

// GenerateKeypair returns a new sr25519 keypair
func GenerateKeypair() (*Keypair, error) {
	priv, pub, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return nil, err
	}

	return &Keypair{
		public:  &PublicKey{key: pub},
		private: &PrivateKey{key: priv},
	}, nil
}

// NewPublicKey returns a sr25519 PublicKey given its 32 byte encoding
func NewPublicKey(in []byte) (*PublicKey, error) {
	if len(in) != PublicKeyLength {
		return nil, errors.New("cannot create public key: input is not 32 bytes")
	}

	var buf [PublicKeyLength]byte
	copy(buf[:], in)
	key := new(schnorrkel.PublicKey)
	if err := key.Decode(buf); err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// Type returns Sr25519Type
func (kp *Keypair) Type() crypto.KeyType { return crypto.Sr25519Type }

// Sign uses the keypair to sign the message using the sr25519 signature algorithm
func (kp *Keypair) Sign(msg []byte) ([]byte, error) {
	return kp.private.Sign(msg)
}

// Public returns the public key corresponding to this keypair
func (kp *Keypair) Public() crypto.PublicKey {
	return kp.public
}

// Private returns the private key corresponding to this keypair
func (kp *Keypair) Private() crypto.PrivateKey {
	return kp.private
}

// VrfSign creates a VRF output and proof from a transcript, given the keypair
func (kp *Keypair) VrfSign(t *merlin.Transcript) (
	[VRFOutputLength]byte, [VRFProofLength]byte, error) {
	return kp.private.VrfSign(t)
}

// VrfSign creates a VRF output and proof from a transcript, given the private key
func (k *PrivateKey) VrfSign(t *merlin.Transcript) (
	[VRFOutputLength]byte, [VRFProofLength]byte, error) {
	inout, proof, err := k.key.VrfSign(t)
	if err != nil {
		return [VRFOutputLength]byte{}, [VRFProofLength]byte{}, err
	}

	out := inout.Output().Encode()
	proofb := proof.Encode()
	return out, proofb, nil
}

// Sign uses the private key to sign the message using the sr25519 signature algorithm
func (k *PrivateKey) Sign(msg []byte) ([]byte, error) {
	if k.key == nil {
		return nil, errors.New("key is nil")
	}

	t := schnorrkel.NewSigningContext(SigningContext, msg)
	sig, err := k.key.Sign(t)
	if err != nil {
		return nil, err
	}

	enc := sig.Encode()
	return enc[:], nil
}

// Public returns the public key corresponding to the private key
func (k *PrivateKey) Public() (crypto.PublicKey, error) {
	kp, err := NewKeypair(k.key)
	if err != nil {
		return nil, err
	}
	return kp.Public(), nil
}

// Encode returns the 32-byte encoding of the private key
func (k *PrivateKey) Encode() []byte {
	enc := k.key.Encode()
	return enc[:]
}

// Decode decodes the input bytes into a private key and sets the receiver the decoded key
func (k *PrivateKey) Decode(in []byte) error {
	if len(in) != PrivateKeyLength {
		return errors.New("input to sr25519 private key decode is not 32 bytes")
	}
	var buf [PrivateKeyLength]byte
	copy(buf[:], in)
	k.key = &schnorrkel.SecretKey{}
	return k.key.Decode(buf)
}

// Hex returns the private key as a '0x' prefixed hex string
func (k *PrivateKey) Hex() string {
	return fmt.Sprintf("0x%x", k.Encode())
}

// Verify uses the sr25519 signature algorithm to verify that the message
// was signed by this public key
func (k *PublicKey) Verify(msg, sig []byte) (bool, error) {
	if k.key == nil {
		return false, errors.New("nil public key")
	}

	if len(sig) != SignatureLength {
		return false, errors.New("invalid signature length")
	}

	var b [SignatureLength]byte
	copy(b[:], sig)
	s := &schnorrkel.Signature{}
	if err := s.Decode(b); err != nil {
		return false, err
	}

	t := schnorrkel.NewSigningContext(SigningContext, msg)
	return k.key.Verify(s, t)
}

// VrfVerify confirms that the output and proof are valid given a transcript and public key
func (k *PublicKey) VrfVerify(t *merlin.Transcript,
	out [VRFOutputLength]byte, proof [VRFProofLength]byte) (bool, error) {
	o, err := schnorrkel.NewOutput(out)
	if err != nil {
		return false, err
	}

	p := new(schnorrkel.VrfProof)
	if err := p.Decode(proof); err != nil {
		return false, err
	}

	return k.key.VrfVerify(t, o, p)
}

// Encode returns the 32-byte encoding of the public key
func (k *PublicKey) Encode() []byte {
	enc := k.key.Encode()
	return enc[:]
}

// Decode decodes the input bytes into a public key and sets the receiver the decoded key
func (k *PublicKey) Decode(in []byte) error {
	if len(in) != PublicKeyLength {
		return errors.New("input to sr25519 public key decode is not 32 bytes")
	}
	var buf [PublicKeyLength]byte
	copy(buf[:], in)
	k.key = &schnorrkel.PublicKey{}
	return k.key.Decode(buf)
}

// AsBytes returns the public key as a fixed 32 byte array
func (k *PublicKey) AsBytes() (b [PublicKeyLength]byte) {
	copy(b[:], k.Encode())
	return b
}

// Hex returns the public key as a '0x' prefixed hex string
func (k *PublicKey) Hex() string {
	return fmt.Sprintf("0x%x", k.Encode())
}

// AttachInput wraps schnorrkel's VrfOutput.AttachInput:
// it returns a VrfInOut given a public key and transcript.
func AttachInput(output [VRFOutputLength]byte, pub *PublicKey,
	t *merlin.Transcript) (*schnorrkel.VrfInOut, error) {
	out, err := schnorrkel.NewOutput(output)
	if err != nil {
		return nil, fmt.Errorf("decoding output: %w", err)
	}
	inout, err := out.AttachInput(pub.key, t)
	if err != nil {
		return nil, fmt.Errorf("attaching input: %w", err)
	}
	return inout, nil
}
