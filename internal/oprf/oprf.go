// SPDX-License-Identifier: MIT

// Package oprf adapts the elliptic-curve group operations of
// github.com/bytemare/crypto into the three primitives the OPAQUE core
// consumes through its boundary with the OPRF sub-protocol: Blind,
// Evaluate, and Finalize, plus the per-credential key-derivation helper
// used by both the registration and login Start steps. The OPRF primitive
// itself — the group arithmetic, the hash-to-group mapping — is out of
// scope for this core (spec §1); this package is only the seam the core
// drives it through.
package oprf

import (
	"errors"

	group "github.com/bytemare/crypto"
)

// Ciphersuite identifies the elliptic-curve group (and its bound hash) used
// by the OPRF sub-protocol. It mirrors the AKE Group identifier one-to-one:
// OPAQUE's draft-16 ciphersuites always pair the same curve for OPRF and AKE.
type Ciphersuite group.Group

const (
	// RistrettoSha512 is the OPRF ciphersuite of the Ristretto255 group and SHA-512.
	RistrettoSha512 = Ciphersuite(group.Ristretto255Sha512)

	// P256Sha256 is the OPRF ciphersuite of the NIST P-256 group and SHA-256.
	P256Sha256 = Ciphersuite(group.P256Sha256)

	// P384Sha512 is the OPRF ciphersuite of the NIST P-384 group and SHA-384.
	P384Sha512 = Ciphersuite(group.P384Sha384)

	// P521Sha512 is the OPRF ciphersuite of the NIST P-521 group and SHA-512.
	P521Sha512 = Ciphersuite(group.P521Sha512)
)

const dstPrefix = "OPRFV1-"

// ErrReflection is returned when a peer's element equals our own, which
// would make the blinding's randomization observable (spec §7, ReflectionError).
var ErrReflection = errors.New("oprf: reflected element")

// Group returns the underlying elliptic-curve group.
func (c Ciphersuite) Group() group.Group {
	return group.Group(c)
}

// Available reports whether c is one of the ciphersuites this package knows.
func (c Ciphersuite) Available() bool {
	return c.Group().Available()
}

func (c Ciphersuite) dst(label string) []byte {
	d := append([]byte(label), dstPrefix...)
	return append(d, byte(c))
}

// DeriveKey deterministically maps seed to a scalar in the ciphersuite's
// group, using info as additional domain separation. Used both to turn a
// per-credential OPRF seed into the server's evaluation key, and to turn an
// envelope seed into the client's static private key.
func (c Ciphersuite) DeriveKey(seed, info []byte) *group.Scalar {
	return c.Group().HashToScalar(append(append([]byte{}, seed...), info...), c.dst("DeriveKeyPair"))
}

// Blind picks a random scalar and returns it along with the blinded element
// B* = H(input)^blind, where H is the ciphersuite's hash-to-group map.
func (c Ciphersuite) Blind(input []byte) (blind *group.Scalar, blinded *group.Element) {
	g := c.Group()
	blind = g.NewScalar().Random()
	point := g.HashToGroup(input, c.dst("HashToGroup"))
	blinded = point.Multiply(blind)

	return blind, blinded
}

// Evaluate computes the OPRF server response element^key.
func (c Ciphersuite) Evaluate(key *group.Scalar, element *group.Element) *group.Element {
	return element.Copy().Multiply(key)
}

// Unblind removes the blinding scalar from the server's evaluated element.
func (c Ciphersuite) Unblind(blind *group.Scalar, evaluated *group.Element) *group.Element {
	return evaluated.Copy().Multiply(blind.Copy().Invert())
}

// Finalize derives the final, password-bound OPRF output from the unblinded
// element and the original input.
func (c Ciphersuite) Finalize(input []byte, unblinded *group.Element) []byte {
	return c.Group().HashToScalar(append(append([]byte{}, input...), unblinded.Encode()...), c.dst("Finalize")).Encode()
}
