// SPDX-License-Identifier: MIT

// Package internal provides structures and functions to operate OPAQUE that
// are not part of the public API: the monomorphized per-ciphersuite
// parameter bundle, its KDF/MAC/Hash/KSF wrappers, and the small set of
// byte-level helpers (random generation, XOR, zeroization) every other
// internal package builds on.
package internal

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	group "github.com/bytemare/crypto"
	cryptohash "github.com/bytemare/hash"
	"github.com/bytemare/ksf"

	"github.com/opaquecore/opaque/internal/oprf"
)

// NonceLength is the length, in bytes, of every nonce OPAQUE generates
// (envelope nonce, masking nonce, AKE nonces).
const NonceLength = 32

// SeedLength is the length, in bytes, of the seeds used to deterministically
// derive the client's static keypair and the per-credential OPRF key.
const SeedLength = 32

// ErrConfigurationInvalidLength is returned when a serialized Configuration
// is too short to contain its fixed-length identifier block.
var ErrConfigurationInvalidLength = errors.New("invalid encoded configuration length")

// RandomBytes returns length bytes read from the system CSPRNG. A failure
// here means crypto/rand itself is broken, which is not a condition any
// caller can meaningfully recover from.
func RandomBytes(length int) []byte {
	r := make([]byte, length)
	if _, err := rand.Read(r); err != nil {
		panic(fmt.Errorf("internal: unexpected error reading random bytes: %w", err))
	}

	return r
}

// Xor returns a ^ b, panicking if the slices differ in length: every caller
// in this module XORs two buffers it has already sized identically
// (masking pad against plaintext of the same advertised length).
func Xor(a, b []byte) []byte {
	if len(a) != len(b) {
		panic("internal: xor operands of different length")
	}

	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}

	return out
}

// Secret wraps a byte slice that carries cryptographic secret material
// (randomized password, stretched password, auth key, export key, session
// key, blinding/ephemeral scalars). Wipe must be called on every exit path,
// including error returns, once the holder is done with the value.
type Secret struct {
	b []byte
}

// NewSecret wraps b as a Secret. Ownership of b passes to the Secret.
func NewSecret(b []byte) *Secret {
	return &Secret{b: b}
}

// Bytes returns the underlying byte slice. The caller must not retain it
// past the holder's call to Wipe.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}

	return s.b
}

// Wipe overwrites the underlying bytes with zeroes. Safe to call multiple
// times and on a nil Secret.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}

	for i := range s.b {
		s.b[i] = 0
	}
}

// Hash wraps a bytemare/hash identifier for the plain (non-HMAC, non-HKDF)
// hashing OPAQUE needs to build the 3DH transcript hash.
type Hash struct {
	id cryptohash.Hashing
}

// NewHash returns a Hash wrapper for the given crypto.Hash identifier.
func NewHash(h crypto.Hash) *Hash {
	return &Hash{id: cryptohash.Hashing(h)}
}

// Size returns the hash's output length in bytes.
func (h *Hash) Size() int {
	return h.id.Size()
}

// Sum returns the hash of the concatenation of all inputs.
func (h *Hash) Sum(inputs ...[]byte) []byte {
	return h.id.Hash(inputs...)
}

// KDF wraps an HKDF (RFC 5869) instance bound to a hash identifier.
type KDF struct {
	id cryptohash.Hashing
}

// NewKDF returns a KDF wrapper for the given crypto.Hash identifier.
func NewKDF(h crypto.Hash) *KDF {
	return &KDF{id: cryptohash.Hashing(h)}
}

// Size returns the underlying hash's output length in bytes.
func (k *KDF) Size() int {
	return k.id.Size()
}

// Extract runs HKDF-Extract(salt, ikm).
func (k *KDF) Extract(salt, ikm []byte) []byte {
	return k.id.Extract(salt, ikm)
}

// Expand runs HKDF-Expand(prk, info, length).
func (k *KDF) Expand(prk, info []byte, length int) []byte {
	return k.id.Expand(prk, info, length)
}

// Mac wraps an HMAC instance bound to a hash identifier.
type Mac struct {
	id cryptohash.Hashing
}

// NewMac returns a Mac wrapper for the given crypto.Hash identifier.
func NewMac(h crypto.Hash) *Mac {
	return &Mac{id: cryptohash.Hashing(h)}
}

// Size returns the MAC's output length in bytes.
func (m *Mac) Size() int {
	return m.id.Size()
}

// MAC computes HMAC(key, message).
func (m *Mac) MAC(key, message []byte) []byte {
	return m.id.MAC(key, message)
}

// Equal reports whether a and b are the same MAC value, in constant time
// with respect to both length and content (spec's constant-time
// requirement on envelope/AKE MAC verification).
func (m *Mac) Equal(a, b []byte) bool {
	if len(a) != len(b) {
		// still run a constant-time comparison against a same-length buffer so
		// that a length mismatch does not take a visibly different code path.
		dummy := make([]byte, len(a))
		subtle.ConstantTimeCompare(a, dummy)

		return false
	}

	return hmac.Equal(a, b) // hmac.Equal is itself constant-time for equal-length inputs.
}

// KSF wraps a key-stretching function identifier.
type KSF struct {
	id ksf.Identifier
}

// NewKSF returns a KSF wrapper for the given identifier. A zero identifier
// means "no stretching" (the Identity function), matching the draft-16
// default when no KSF is configured.
func NewKSF(id ksf.Identifier) *KSF {
	return &KSF{id: id}
}

// Harden runs the key-stretching function over input, producing length
// bytes of output.
func (k *KSF) Harden(input, salt []byte, length int) ([]byte, error) {
	if k.id == 0 {
		return input, nil
	}

	out, err := k.id.Harden(input, salt, length)
	if err != nil {
		return nil, fmt.Errorf("internal: ksf harden: %w", err)
	}

	return out, nil
}

// Configuration is the internal, monomorphized representation of an OPAQUE
// ciphersuite: every operation in this module threads a *Configuration
// instead of taking the cryptographic primitives as generic parameters.
type Configuration struct {
	OPRF         oprf.Ciphersuite
	Group        group.Group
	KSF          *KSF
	KDF          *KDF
	MAC          *Mac
	Hash         *Hash
	NonceLen     int
	EnvelopeSize int
	Context      []byte
}
