// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ake

import (
	"errors"

	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/internal/encoding"
	"github.com/opaquecore/opaque/message"
)

var errStateNotEmpty = errors.New("existing state is not empty")

// Server exposes the server's AKE functions and holds its state.
type Server struct {
	values
	clientMac     []byte
	sessionSecret []byte
}

// NewServer returns a new, empty, 3DH server.
func NewServer() *Server {
	return &Server{}
}

// Response produces a 3DH server response message (the non-split form of
// ServerStart). serverSecretKey must be in local memory; Builder below is
// used instead when it is not (spec §4.4's "Builder split").
func (s *Server) Response(
	conf *internal.Configuration,
	identities *Identities,
	serverSecretKey *group.Scalar,
	clientPublicKey *group.Element,
	ke1 *message.KE1,
	response *message.CredentialResponse,
	options Options,
) (*message.KE2, error) {
	epks, err := s.setOptions(conf.Group, options)
	if err != nil {
		return nil, err
	}

	ke2 := &message.KE2{
		CredentialResponse:   response,
		ServerNonce:          s.nonce,
		ServerPublicKeyshare: epks,
		ServerMac:            nil,
	}

	ikm := k3dh(
		ke1.ClientPublicKeyshare, s.ephemeralSecretKey,
		ke1.ClientPublicKeyshare, serverSecretKey,
		clientPublicKey, s.ephemeralSecretKey,
	)

	sessionSecret, serverMac, clientMac := core3DH(conf, identities, ikm, ke1, ke2)
	s.sessionSecret = sessionSecret
	s.clientMac = clientMac
	ke2.ServerMac = serverMac

	return ke2, nil
}

// Builder is the remote-key-friendly split of Response: of 3DH's three
// Diffie-Hellman terms, only one — the client's ephemeral public key
// raised to the server's static secret — needs the server's long-term key.
// Builder computes the other two locally (both only need the server's
// freshly generated ephemeral secret) and exposes the client's ephemeral
// public key via Data, so a remote signer/HSM need perform exactly one
// scalar multiplication before handing the result to Finalize (spec §4.4's
// "Builder split", §9's remote-key seam).
type Builder struct {
	conf            *internal.Configuration
	identities      *Identities
	ke1             *message.KE1
	ke2             *message.KE2
	serverEph       *group.Scalar
	clientEph       *group.Element
	clientStaticPub *group.Element
}

// StartBuilder begins the split server response. It returns the Builder and
// the partially-built KE2 (missing only ServerMac).
func StartBuilder(
	conf *internal.Configuration,
	identities *Identities,
	clientPublicKey *group.Element,
	ke1 *message.KE1,
	response *message.CredentialResponse,
	options Options,
) (*Builder, *message.KE2, error) {
	v := &values{}

	epks, err := v.setOptions(conf.Group, options)
	if err != nil {
		return nil, nil, err
	}

	ke2 := &message.KE2{
		CredentialResponse:   response,
		ServerNonce:          v.nonce,
		ServerPublicKeyshare: epks,
	}

	return &Builder{
		conf:            conf,
		identities:      identities,
		ke1:             ke1,
		ke2:             ke2,
		serverEph:       v.ephemeralSecretKey,
		clientEph:       ke1.ClientPublicKeyshare,
		clientStaticPub: clientPublicKey,
	}, ke2, nil
}

// Data returns the client's ephemeral public key: the only input a remote
// key holder needs, together with its own static secret key, to compute
// the one Diffie-Hellman term Finalize cannot derive locally.
func (b *Builder) Data() *group.Element {
	return b.clientEph
}

// Finalize completes the server response given dhStatic =
// clientEphemeralPub^serverStaticSecret, computed externally by the remote
// key holder and passed back pre-encoded. The other two 3DH terms only
// need the server's own ephemeral secret, already held locally.
func (b *Builder) Finalize(dhStatic []byte) (*Server, *message.KE2) {
	dh1 := b.clientEph.Copy().Multiply(b.serverEph).Encode()
	dh3 := b.clientStaticPub.Copy().Multiply(b.serverEph).Encode()
	ikm := encoding.Concat3(dh1, dhStatic, dh3)

	sessionSecret, serverMac, clientMac := core3DH(b.conf, b.identities, ikm, b.ke1, b.ke2)
	b.ke2.ServerMac = serverMac

	return &Server{
		values:        values{ephemeralSecretKey: b.serverEph, nonce: b.ke2.ServerNonce},
		clientMac:     clientMac,
		sessionSecret: sessionSecret,
	}, b.ke2
}

// Finalize verifies the authentication tag contained in ke3.
func (s *Server) Finalize(conf *internal.Configuration, ke3 *message.KE3) bool {
	return conf.MAC.Equal(s.clientMac, ke3.ClientMac)
}

// SessionKey returns the secret shared session key if a previous call to
// Response() or Builder.Finalize() was successful.
func (s *Server) SessionKey() []byte {
	return s.sessionSecret
}

// ExpectedMAC returns the expected client MAC if a previous call to
// Response() or Builder.Finalize() was successful.
func (s *Server) ExpectedMAC() []byte {
	return s.clientMac
}

// SerializeState will return a []byte containing internal state of the Server.
func (s *Server) SerializeState() []byte {
	state := make([]byte, len(s.clientMac)+len(s.sessionSecret))

	i := copy(state, s.clientMac)
	copy(state[i:], s.sessionSecret)

	return state
}

// SetState will set the given clientMac and sessionSecret in the server's internal state.
func (s *Server) SetState(clientMac, sessionSecret []byte) error {
	if len(s.clientMac) != 0 || len(s.sessionSecret) != 0 {
		return errStateNotEmpty
	}

	s.clientMac = clientMac
	s.sessionSecret = sessionSecret

	return nil
}

// Flush sets all the server's session related internal AKE values to nil.
func (s *Server) Flush() {
	s.flush()
	s.clientMac = nil
	s.sessionSecret = nil
}
