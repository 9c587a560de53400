// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package ake provides the pluggable key-exchange adaptor OPAQUE's login
// state machine drives (spec §4.5), and its one shipped implementation,
// 3DH. A differently-shaped AKE (e.g. SIGMA-I) implements ClientExchange and
// ServerExchange; the package root's ClientLogin and ServerLogin hold the
// concrete *Client and *Server types, so they are changed as well to use it.
package ake

import (
	"errors"

	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/message"
)

// ErrInvalidNonce is returned when a caller-supplied nonce override
// (Options.Nonce) is not exactly internal.NonceLength bytes: every wire
// message that carries a nonce is fixed-length, so a nonce of any other
// size would silently corrupt Serialize's byte layout.
var ErrInvalidNonce = errors.New("ake: invalid nonce length")

// ClientExchange is the client half of the pluggable key-exchange adaptor
// OPAQUE's login state machine drives (spec §4.5): it produces KE1 from an
// OPAQUE CredentialRequest, and later turns a received KE2 plus the
// envelope-recovered client keypair into KE3 and the shared session key.
// *Client below is the one shipped implementation, 3DH. The package root's
// ClientLogin holds a concrete *Client rather than a ClientExchange.
type ClientExchange interface {
	Start(conf *internal.Configuration, credentialRequest *message.CredentialRequest, options Options) (*message.KE1, error)
	Finish(
		conf *internal.Configuration,
		identities *Identities,
		clientSecretKey *group.Scalar,
		serverPublicKey *group.Element,
		ke1 *message.KE1,
		ke2 *message.KE2,
	) (ke3 *message.KE3, sessionKey []byte, err error)
}

// ServerExchange is the server half of the adaptor. Response is the
// non-split ServerStart; Builder/StartBuilder below split it for the
// remote-key path (spec §4.4's "Builder split", §9's remote-key seam), so
// Builder does not itself need to satisfy this interface — the split path
// ends in a *Server exactly as the non-split path does.
type ServerExchange interface {
	Response(
		conf *internal.Configuration,
		identities *Identities,
		serverSecretKey *group.Scalar,
		clientPublicKey *group.Element,
		ke1 *message.KE1,
		response *message.CredentialResponse,
		options Options,
	) (*message.KE2, error)
	Finalize(conf *internal.Configuration, ke3 *message.KE3) bool
	SessionKey() []byte
	ExpectedMAC() []byte
}

var (
	_ ClientExchange = (*Client)(nil)
	_ ServerExchange = (*Server)(nil)
)

// Identities holds the (possibly defaulted) client and server identifiers
// bound into the AKE transcript (spec §6's Identifiers configuration
// option). A mismatch between the identifiers used at registration-finish,
// login-start, and login-finish surfaces as InvalidLogin.
type Identities struct {
	ClientIdentity []byte
	ServerIdentity []byte
}

// SetIdentities defaults ClientIdentity/ServerIdentity to the respective
// public keys when the caller did not supply explicit identifiers.
func (i *Identities) SetIdentities(clientPublicKey, serverPublicKey []byte) {
	if i.ClientIdentity == nil {
		i.ClientIdentity = clientPublicKey
	}

	if i.ServerIdentity == nil {
		i.ServerIdentity = serverPublicKey
	}
}

// Options lets a caller override the otherwise-random ephemeral values a
// KE1/KE2 generation step would pick, for reproducible tests.
type Options struct {
	// KeyShareSeed, if set, deterministically seeds the ephemeral scalar
	// instead of drawing it from the CSPRNG.
	KeyShareSeed []byte
	// Nonce, if set, is used instead of a freshly generated one.
	Nonce []byte
	// NonceLength overrides the default nonce length when Nonce is unset.
	NonceLength uint32
}

// values holds the ephemeral state shared by both the client and server
// sides of a single 3DH exchange: the ephemeral secret key and nonce.
type values struct {
	ephemeralSecretKey *group.Scalar
	nonce              []byte
}

func (v *values) setOptions(g group.Group, options Options) (*group.Element, error) {
	if len(options.Nonce) != 0 && len(options.Nonce) != internal.NonceLength {
		return nil, ErrInvalidNonce
	}

	if v.ephemeralSecretKey == nil {
		v.ephemeralSecretKey = deriveEphemeralScalar(g, options.KeyShareSeed)
	}

	nonceLen := int(options.NonceLength)
	if nonceLen == 0 {
		nonceLen = internal.NonceLength
	}

	if len(v.nonce) == 0 {
		if len(options.Nonce) != 0 {
			v.nonce = options.Nonce
		} else {
			v.nonce = internal.RandomBytes(nonceLen)
		}
	}

	return g.Base().Multiply(v.ephemeralSecretKey), nil
}

func deriveEphemeralScalar(g group.Group, seed []byte) *group.Scalar {
	if len(seed) == 0 {
		return g.NewScalar().Random()
	}

	return g.HashToScalar(seed, []byte("OPAQUE-EphemeralKeyShareSeed"))
}

// flush drops v's references to the ephemeral secret key and nonce, leaving
// v ready to be discarded. The underlying memory is not overwritten.
func (v *values) flush() {
	v.ephemeralSecretKey = nil
	v.nonce = nil
}
