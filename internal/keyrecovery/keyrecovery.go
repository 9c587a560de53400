// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2022 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package keyrecovery implements the OPAQUE envelope (spec §4.1): sealing
// the client's static keypair behind a password-derived authentication key,
// and recovering it on a successful login.
package keyrecovery

import (
	"crypto/subtle"
	"errors"

	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/internal/encoding"
	"github.com/opaquecore/opaque/internal/tag"
)

// ErrInvalidLogin is returned when an envelope's authentication tag does not
// match what was recomputed from the candidate randomized password. It is
// the only way a wrong password, a tampered envelope, or a tampered server
// public key/identifiers is ever reported: all three collapse to the same
// error so that no code path leaks which sub-check failed.
var ErrInvalidLogin = errors.New("keyrecovery: invalid login")

// Envelope is the sealed per-registration record: a nonce and an
// authentication tag (spec §3).
type Envelope struct {
	Nonce   []byte
	AuthTag []byte
}

// Serialize returns Nonce ∥ AuthTag.
func (e *Envelope) Serialize() []byte {
	return encoding.Concatenate(e.Nonce, e.AuthTag)
}

func deriveAuthKeyPair(conf *internal.Configuration, randomizedPwd, nonce []byte) (*group.Scalar, *group.Element) {
	seed := conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.ExpandPrivateKey), internal.SeedLength)
	sk := conf.OPRF.DeriveKey(seed, []byte(tag.DerivePrivateKey))

	return sk, conf.Group.Base().Multiply(sk)
}

func deriveAuthKey(conf *internal.Configuration, randomizedPwd, nonce []byte) []byte {
	return conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.AuthKey), conf.Hash.Size())
}

func deriveExportKey(conf *internal.Configuration, randomizedPwd, nonce []byte) []byte {
	return conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.ExportKey), conf.Hash.Size())
}

// MaskingKey re-derives the masking key from randomizedPwd, independently of
// any stored record: both registration's Store and login's client-side
// Finish compute the same value from the same randomized password, which is
// how the client authenticates the server's masked response without ever
// being told the masking key directly.
func MaskingKey(conf *internal.Configuration, randomizedPwd []byte) []byte {
	return conf.KDF.Expand(randomizedPwd, []byte(tag.MaskingKey), conf.Hash.Size())
}

// cleartextCredentials builds serverPk ∥ idS ∥ idC, defaulting absent
// identifiers to the respective public keys. This ordering is load-bearing
// (spec §9's Open Question) and must not be changed.
func cleartextCredentials(serverPublicKey, clientPublicKey []byte, idClient, idServer []byte) []byte {
	if idServer == nil {
		idServer = serverPublicKey
	}

	if idClient == nil {
		idClient = clientPublicKey
	}

	return encoding.Concatenate(serverPublicKey, encoding.EncodeVector(idServer), encoding.EncodeVector(idClient))
}

// Store seals a new envelope for randomizedPwd: it derives the client's
// static keypair, the export key, and the envelope's authentication tag,
// all from a single fresh nonce and the server's public key / identifiers
// (spec §4.1, "seal").
func Store(
	conf *internal.Configuration,
	randomizedPwd, serverPublicKey []byte,
	idClient, idServer []byte,
) (envelope *Envelope, clientPublicKey []byte, maskingKey, exportKey []byte) {
	nonce := internal.RandomBytes(conf.NonceLen)

	_, pk := deriveAuthKeyPair(conf, randomizedPwd, nonce)
	clientPublicKey = pk.Encode()

	authKey := deriveAuthKey(conf, randomizedPwd, nonce)
	exportKey = deriveExportKey(conf, randomizedPwd, nonce)
	maskingKey = MaskingKey(conf, randomizedPwd)

	cleartext := cleartextCredentials(serverPublicKey, clientPublicKey, idClient, idServer)
	authTag := conf.MAC.MAC(authKey, encoding.Concatenate(nonce, cleartext))

	return &Envelope{Nonce: nonce, AuthTag: authTag}, clientPublicKey, maskingKey, exportKey
}

// Recover re-derives the authentication key from randomizedPwd and the
// envelope's nonce, recomputes the authentication tag in constant time, and
// on success returns the client's static keypair and export key (spec §4.1,
// "open"). Any mismatch — wrong password, tampered envelope, tampered
// server public key, mismatched identifiers — returns ErrInvalidLogin and
// nothing else.
func Recover(
	conf *internal.Configuration,
	randomizedPwd []byte,
	envelope *Envelope,
	serverPublicKey []byte,
	idClient, idServer []byte,
) (clientSecretKey *group.Scalar, clientPublicKey []byte, exportKey []byte, err error) {
	sk, pk := deriveAuthKeyPair(conf, randomizedPwd, envelope.Nonce)
	clientPublicKey = pk.Encode()

	authKey := deriveAuthKey(conf, randomizedPwd, envelope.Nonce)
	cleartext := cleartextCredentials(serverPublicKey, clientPublicKey, idClient, idServer)
	expectedTag := conf.MAC.MAC(authKey, encoding.Concatenate(envelope.Nonce, cleartext))

	if subtle.ConstantTimeCompare(expectedTag, envelope.AuthTag) != 1 {
		return nil, nil, nil, ErrInvalidLogin
	}

	exportKey = deriveExportKey(conf, randomizedPwd, envelope.Nonce)

	return sk, clientPublicKey, exportKey, nil
}

// DeserializeEnvelope splits a Nonce ∥ AuthTag byte string into an Envelope,
// rejecting any input that is not exactly the ciphersuite's envelope size.
func DeserializeEnvelope(conf *internal.Configuration, input []byte) (*Envelope, error) {
	if len(input) != conf.EnvelopeSize {
		return nil, ErrInvalidLogin
	}

	return &Envelope{
		Nonce:   input[:conf.NonceLen],
		AuthTag: input[conf.NonceLen:],
	}, nil
}

// Dummy returns an envelope of the advertised size filled with zero bytes,
// used only on the unknown-credential path (spec §4.1, "dummy") so that the
// subsequent masking step produces output indistinguishable from a real
// response.
func Dummy(conf *internal.Configuration) *Envelope {
	return &Envelope{
		Nonce:   make([]byte, conf.NonceLen),
		AuthTag: make([]byte, conf.MAC.Size()),
	}
}
