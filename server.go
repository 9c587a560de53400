// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"fmt"

	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/internal/ake"
	"github.com/opaquecore/opaque/internal/encoding"
	"github.com/opaquecore/opaque/internal/keyrecovery"
	"github.com/opaquecore/opaque/internal/masking"
	"github.com/opaquecore/opaque/internal/tag"
	"github.com/opaquecore/opaque/message"
)

// Server bundles a Configuration with the constructors for the server-side,
// single-use session states (spec §3). A fresh ServerRegistration or
// ServerLogin is created per registration or login attempt; ServerSetup
// (created once, outside of any session) is passed into each.
type Server struct {
	conf *Configuration
}

// NewServer returns a Server instantiation given the application Configuration.
func NewServer(c *Configuration) (*Server, error) {
	if c == nil {
		c = DefaultConfiguration()
	}

	if _, err := c.toInternal(); err != nil {
		return nil, err
	}

	return &Server{conf: c}, nil
}

// NewRegistration returns a fresh ServerRegistration state for a new registration attempt.
func (s *Server) NewRegistration() (*ServerRegistration, error) {
	return NewServerRegistration(s.conf)
}

// NewLogin returns a fresh ServerLogin state for a new login attempt.
func (s *Server) NewLogin() (*ServerLogin, error) {
	return NewServerLogin(s.conf)
}

// Deserializer returns a Deserializer for this Server's configuration.
func (s *Server) Deserializer() (*Deserializer, error) {
	return s.conf.Deserializer()
}

func perCredentialOPRFKey(conf *internal.Configuration, oprfSeed, credentialIdentifier []byte) *group.Scalar {
	seed := conf.KDF.Expand(oprfSeed, encoding.SuffixString(credentialIdentifier, tag.ExpandOPRF), internal.SeedLength)
	return conf.OPRF.DeriveKey(seed, []byte(tag.DeriveKeyPair))
}

// ServerRegistration runs the server side of OPAQUE registration (spec §4.3).
type ServerRegistration struct {
	conf *internal.Configuration
}

// NewServerRegistration returns a new, empty ServerRegistration.
func NewServerRegistration(c *Configuration) (*ServerRegistration, error) {
	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &ServerRegistration{conf: conf}, nil
}

// Start computes the per-user OPRF key from setup's master seed and
// credentialIdentifier, evaluates the OPRF over the client's blinded
// password, and returns a RegistrationResponse.
func (s *ServerRegistration) Start(
	setup *ServerSetup,
	req *message.RegistrationRequest,
	credentialIdentifier []byte,
) (*message.RegistrationResponse, error) {
	if setup == nil {
		return nil, ErrNoServerKeyMaterial
	}

	seed, err := setup.OPRFSeed()
	if err != nil {
		return nil, err
	}

	ku := perCredentialOPRFKey(s.conf, seed, credentialIdentifier)
	z := s.conf.OPRF.Evaluate(ku, req.BlindedMessage)

	return &message.RegistrationResponse{EvaluatedMessage: z, Pks: setup.PublicKey()}, nil
}

// Finish is the identity function on the client's upload (spec §4.3): the
// password file is simply the authenticated record plus server-chosen
// metadata. No secret state is produced.
func (s *ServerRegistration) Finish(
	upload *message.RegistrationUpload,
	credentialIdentifier, clientIdentity []byte,
) *ClientRecord {
	return &ClientRecord{
		RegistrationUpload:   upload,
		CredentialIdentifier: credentialIdentifier,
		ClientIdentity:       clientIdentity,
	}
}

// GenerateKE2Options enable setting optional values for the session, which
// default to secure random values if not set.
type GenerateKE2Options struct {
	// KeyShareSeed: optional.
	KeyShareSeed []byte
	// AKENonce: optional.
	AKENonce []byte
	// MaskingNonce: optional.
	MaskingNonce []byte
	// AKENonceLength: optional, overrides the default length of the nonce to be created if no nonce is provided.
	AKENonceLength uint32
}

func getGenerateKE2Options(options []GenerateKE2Options) (*ake.Options, []byte) {
	var (
		op           ake.Options
		maskingNonce []byte
	)

	if len(options) != 0 {
		op.KeyShareSeed = options[0].KeyShareSeed
		op.Nonce = options[0].AKENonce
		op.NonceLength = options[0].AKENonceLength
		maskingNonce = options[0].MaskingNonce
	}

	return &op, maskingNonce
}

// ServerLogin drives the server side of the OPAQUE login state machine
// (spec §4.4). Single-use: a fresh ServerLogin serves one login attempt.
// Finish does not clear the AKE state, so SessionKey and ExpectedMAC remain
// readable after it returns.
type ServerLogin struct {
	conf *internal.Configuration
	ake  *ake.Server
}

// NewServerLogin returns a new, empty ServerLogin.
func NewServerLogin(c *Configuration) (*ServerLogin, error) {
	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &ServerLogin{conf: conf, ake: ake.NewServer()}, nil
}

// credentialResponseFields evaluates the OPRF and builds the masked
// (serverPk ∥ envelope) response block, for both the real-record and
// dummy-record paths (spec §4.2's dummy indistinguishability requirement).
func (s *ServerLogin) credentialResponseFields(
	setup *ServerSetup,
	record *ClientRecord,
	credentialIdentifier []byte,
	req *message.CredentialRequest,
	maskingNonce []byte,
) (response *message.CredentialResponse, clientPublicKeyBytes, clientIdentity []byte, err error) {
	if setup == nil {
		return nil, nil, nil, ErrNoServerKeyMaterial
	}

	seed, err := setup.OPRFSeed()
	if err != nil {
		return nil, nil, nil, err
	}

	ku := perCredentialOPRFKey(s.conf, seed, credentialIdentifier)
	z := s.conf.OPRF.Evaluate(ku, req.BlindedMessage)

	var maskingKey, envelope []byte

	if record != nil {
		if len(record.Envelope) != s.conf.EnvelopeSize {
			return nil, nil, nil, ErrInvalidEnvelopeLength
		}

		clientPublicKeyBytes = record.PublicKey.Encode()
		maskingKey = record.MaskingKey
		envelope = record.Envelope
		clientIdentity = record.ClientIdentity
	} else {
		fake, mk, ferr := setup.FakeRecord()
		if ferr != nil {
			return nil, nil, nil, ferr
		}

		clientPublicKeyBytes = fake.PublicKey.Encode()
		maskingKey = mk
		envelope = keyrecovery.Dummy(s.conf).Serialize()
	}

	serverPublicKey := setup.PublicKey().Encode()
	maskingNonce, maskedResponse := masking.Mask(s.conf, maskingNonce, maskingKey, serverPublicKey, envelope)

	return message.NewCredentialResponse(z, maskingNonce, maskedResponse), clientPublicKeyBytes, clientIdentity, nil
}

// Start evaluates the OPRF, looks up or fabricates a record, masks the
// response, and runs the 3DH response step, returning the KE2 message to
// send to the client. record may be nil, in which case setup's constant
// dummy key and a fresh random masking key are used, so the response is
// indistinguishable from one built against a genuine credential (spec
// §4.2/§4.4, the unknown-user dummy path).
func (s *ServerLogin) Start(
	setup *ServerSetup,
	record *ClientRecord,
	credentialIdentifier []byte,
	ke1 *message.KE1,
	serverIdentity []byte,
	options ...GenerateKE2Options,
) (*message.KE2, error) {
	op, maskingNonce := getGenerateKE2Options(options)

	response, clientPublicKeyBytes, clientIdentity, err := s.credentialResponseFields(
		setup, record, credentialIdentifier, ke1.CredentialRequest, maskingNonce,
	)
	if err != nil {
		return nil, err
	}

	serverPublicKey := setup.PublicKey()

	identities := ake.Identities{ClientIdentity: clientIdentity, ServerIdentity: serverIdentity}
	identities.SetIdentities(clientPublicKeyBytes, serverPublicKey.Encode())

	clientPublicKey, err := decodeElement(s.conf.Group, clientPublicKeyBytes)
	if err != nil {
		return nil, err
	}

	serverSecretKey, err := setup.SecretKey()
	if err != nil {
		return nil, err
	}

	ke2, err := s.ake.Response(s.conf, &identities, serverSecretKey, clientPublicKey, ke1, response, *op)
	if err != nil {
		return nil, ErrInvalidNonce
	}

	return ke2, nil
}

// ServerLoginBuilder is the remote-key split of Start (spec §4.4's "Builder
// split", §9's remote-key seam): it performs every step up to the point
// where the server's long-term secret key would be needed, then exposes
// the client's ephemeral public key via Data so an external signer/HSM can
// perform the one Diffie-Hellman operation that needs the static secret
// key and hand the result to Build.
type ServerLoginBuilder struct {
	conf    *internal.Configuration
	builder *ake.Builder
}

// StartBuilder is the split form of Start, for use when setup's static
// secret key lives behind a remote holder.
func (s *ServerLogin) StartBuilder(
	setup *ServerSetup,
	record *ClientRecord,
	credentialIdentifier []byte,
	ke1 *message.KE1,
	serverIdentity []byte,
	options ...GenerateKE2Options,
) (*ServerLoginBuilder, *message.KE2, error) {
	op, maskingNonce := getGenerateKE2Options(options)

	response, clientPublicKeyBytes, clientIdentity, err := s.credentialResponseFields(
		setup, record, credentialIdentifier, ke1.CredentialRequest, maskingNonce,
	)
	if err != nil {
		return nil, nil, err
	}

	serverPublicKey := setup.PublicKey()

	identities := ake.Identities{ClientIdentity: clientIdentity, ServerIdentity: serverIdentity}
	identities.SetIdentities(clientPublicKeyBytes, serverPublicKey.Encode())

	clientPublicKey, err := decodeElement(s.conf.Group, clientPublicKeyBytes)
	if err != nil {
		return nil, nil, err
	}

	akeBuilder, ke2, err := ake.StartBuilder(s.conf, &identities, clientPublicKey, ke1, response, *op)
	if err != nil {
		return nil, nil, ErrInvalidNonce
	}

	return &ServerLoginBuilder{conf: s.conf, builder: akeBuilder}, ke2, nil
}

// Data returns the client's ephemeral public key, encoded: the only input a
// remote key holder needs, together with its own static secret key, to
// compute the one Diffie-Hellman term Build cannot derive locally.
func (b *ServerLoginBuilder) Data() []byte {
	return b.builder.Data().Encode()
}

// Build completes the response given dhStatic, the externally-computed
// clientEphemeralPub^serverStaticSecret, and returns a ServerLogin ready
// for Finish, plus the completed KE2 carrying the server MAC.
func (b *ServerLoginBuilder) Build(dhStatic []byte) (*ServerLogin, *message.KE2) {
	akeServer, ke2 := b.builder.Finalize(dhStatic)
	return &ServerLogin{conf: b.conf, ake: akeServer}, ke2
}

// Finish verifies the client's KE3 MAC. On success the session key is
// available via SessionKey; on failure it returns an error that wraps both
// ErrInvalidLogin and ErrAkeInvalidClientMac.
func (s *ServerLogin) Finish(ke3 *message.KE3) error {
	if !s.ake.Finalize(s.conf, ke3) {
		return fmt.Errorf("%w: %w", ErrInvalidLogin, ErrAkeInvalidClientMac)
	}

	return nil
}

// SessionKey returns the session key if a previous call to Start, Build, or
// SetState was successful.
func (s *ServerLogin) SessionKey() []byte {
	return s.ake.SessionKey()
}

// ExpectedMAC returns the expected client MAC if a previous call to Start,
// Build, or SetState was successful.
func (s *ServerLogin) ExpectedMAC() []byte {
	return s.ake.ExpectedMAC()
}

// SerializeState returns the internal AKE state of the ServerLogin serialized to bytes.
func (s *ServerLogin) SerializeState() []byte {
	return s.ake.SerializeState()
}

// SetState restores the ServerLogin's internal AKE state from bytes
// produced by a prior call to SerializeState.
func (s *ServerLogin) SetState(state []byte) error {
	if len(state) != s.conf.MAC.Size()+s.conf.KDF.Size() {
		return ErrInvalidState
	}

	return s.ake.SetState(state[:s.conf.MAC.Size()], state[s.conf.MAC.Size():])
}
