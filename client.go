// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"bytes"

	group "github.com/bytemare/crypto"
	"github.com/bytemare/ksf"

	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/internal/ake"
	"github.com/opaquecore/opaque/internal/encoding"
	"github.com/opaquecore/opaque/internal/keyrecovery"
	"github.com/opaquecore/opaque/internal/masking"
	"github.com/opaquecore/opaque/message"
)

// Client bundles a Configuration with the constructors for the client-side,
// single-use session states (spec §3). A fresh ClientRegistration or
// ClientLogin is created per registration or login attempt.
type Client struct {
	conf *Configuration
}

// NewClient returns a Client instantiation given the application Configuration.
func NewClient(c *Configuration) (*Client, error) {
	if c == nil {
		c = DefaultConfiguration()
	}

	if _, err := c.toInternal(); err != nil {
		return nil, err
	}

	return &Client{conf: c}, nil
}

// NewRegistration returns a fresh ClientRegistration state for a new registration attempt.
func (c *Client) NewRegistration() (*ClientRegistration, error) {
	return NewClientRegistration(c.conf)
}

// NewLogin returns a fresh ClientLogin state for a new login attempt.
func (c *Client) NewLogin() (*ClientLogin, error) {
	return NewClientLogin(c.conf)
}

// randomizePassword hardens oprfOutput with the configured key-stretching
// function, or with override when the caller supplied one for this single
// call (spec §6's per-call "ksf" option).
func randomizePassword(conf *internal.Configuration, password, oprfOutput []byte, override ksf.Identifier) ([]byte, error) {
	k := conf.KSF
	if override != 0 {
		k = internal.NewKSF(override)
	}

	stretched, err := k.Harden(oprfOutput, nil, conf.Hash.Size())
	if err != nil {
		return nil, ErrKsf
	}

	return conf.KDF.Extract(nil, encoding.Concatenate(password, stretched)), nil
}

func decodeElement(g group.Group, encoded []byte) (*group.Element, error) {
	e := g.NewElement()
	if err := e.Decode(encoded); err != nil {
		return nil, ErrInvalidByteSequence
	}

	return e, nil
}

// checkReflection rejects a server OPRF response that echoes back the
// client's own blinded element unmodified, which would make the server's
// key effectively the identity for this evaluation (spec §7, ReflectionError).
func checkReflection(blindedMessage []byte, evaluated *group.Element) error {
	if bytes.Equal(blindedMessage, evaluated.Encode()) {
		return ErrReflection
	}

	return nil
}

// ClientRegistration runs the client side of OPAQUE registration (spec
// §4.3). Single-use: the state Start produces is consumed by Finish
// regardless of outcome.
type ClientRegistration struct {
	conf           *internal.Configuration
	blind          *group.Scalar
	blindedMessage []byte
	password       []byte
}

// NewClientRegistration returns a new, empty ClientRegistration.
func NewClientRegistration(c *Configuration) (*ClientRegistration, error) {
	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &ClientRegistration{conf: conf}, nil
}

// Start blinds password and returns the RegistrationRequest to send to the server.
func (c *ClientRegistration) Start(password []byte) *message.RegistrationRequest {
	blind, blinded := c.conf.OPRF.Blind(password)
	c.blind = blind
	c.blindedMessage = blinded.Encode()
	c.password = password

	return &message.RegistrationRequest{BlindedMessage: blinded}
}

// ClientRegistrationFinishOptions lets a caller override the Configuration's
// key-stretching function for a single Finish call (spec §6's per-call
// "ksf" option).
type ClientRegistrationFinishOptions struct {
	// KSF, if non-zero, overrides the Configuration's key-stretching
	// function for this call only.
	KSF ksf.Identifier
}

func getClientRegistrationFinishOptions(options []ClientRegistrationFinishOptions) ksf.Identifier {
	if len(options) != 0 {
		return options[0].KSF
	}

	return 0
}

// Finish finalizes the OPRF, seals the envelope, and returns the
// RegistrationUpload to send to the server along with the client's export
// key. idClient/idServer default to the respective public keys when nil
// (spec §4.1). options optionally overrides the configured key-stretching
// function for this call.
func (c *ClientRegistration) Finish(
	response *message.RegistrationResponse,
	idClient, idServer []byte,
	options ...ClientRegistrationFinishOptions,
) (upload *message.RegistrationUpload, exportKey []byte, err error) {
	defer func() {
		c.blind = nil
		c.password = nil
	}()

	if err := checkReflection(c.blindedMessage, response.EvaluatedMessage); err != nil {
		return nil, nil, err
	}

	unblinded := c.conf.OPRF.Unblind(c.blind, response.EvaluatedMessage)
	oprfOutput := c.conf.OPRF.Finalize(c.password, unblinded)

	randomizedPwd, err := randomizePassword(c.conf, c.password, oprfOutput, getClientRegistrationFinishOptions(options))
	if err != nil {
		return nil, nil, err
	}

	serverPublicKey := response.Pks.Encode()

	envelope, clientPublicKey, maskingKey, exportKey := keyrecovery.Store(
		c.conf, randomizedPwd, serverPublicKey, idClient, idServer,
	)

	pk, err := decodeElement(c.conf.Group, clientPublicKey)
	if err != nil {
		return nil, nil, err
	}

	return &message.RegistrationUpload{
		PublicKey:  pk,
		MaskingKey: maskingKey,
		Envelope:   envelope.Serialize(),
	}, exportKey, nil
}

// GenerateKE1Options lets a caller override the otherwise-random ephemeral
// AKE values, for reproducible tests.
type GenerateKE1Options struct {
	// KeyShareSeed: optional.
	KeyShareSeed []byte
	// AKENonce: optional.
	AKENonce []byte
	// AKENonceLength: optional, overrides the default nonce length.
	AKENonceLength uint32
}

func getGenerateKE1Options(options []GenerateKE1Options) *ake.Options {
	var op ake.Options

	if len(options) != 0 {
		op.KeyShareSeed = options[0].KeyShareSeed
		op.Nonce = options[0].AKENonce
		op.NonceLength = options[0].AKENonceLength
	}

	return &op
}

// ClientLogin drives the client side of the OPAQUE login state machine
// (spec §4.4). Single-use: the state Start produces is consumed by Finish
// regardless of outcome.
type ClientLogin struct {
	conf           *internal.Configuration
	blind          *group.Scalar
	blindedMessage []byte
	password       []byte
	ake            *ake.Client
}

// NewClientLogin returns a new, empty ClientLogin.
func NewClientLogin(c *Configuration) (*ClientLogin, error) {
	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &ClientLogin{conf: conf, ake: ake.NewClient()}, nil
}

// Start blinds password and runs the AKE's KE1 step, returning the KE1
// message (carrying the OPAQUE CredentialRequest) to send to the server.
// Returns ErrInvalidNonce if options supplies an AKENonce of the wrong
// length.
func (c *ClientLogin) Start(password []byte, options ...GenerateKE1Options) (*message.KE1, error) {
	blind, blinded := c.conf.OPRF.Blind(password)
	c.blind = blind
	c.blindedMessage = blinded.Encode()
	c.password = password

	cr := &message.CredentialRequest{BlindedMessage: blinded}

	ke1, err := c.ake.Start(c.conf, cr, *getGenerateKE1Options(options))
	if err != nil {
		return nil, ErrInvalidNonce
	}

	return ke1, nil
}

// ClientLoginFinishOptions lets a caller override the Configuration's
// key-stretching function for a single Finish call (spec §6's per-call
// "ksf" option).
type ClientLoginFinishOptions struct {
	// KSF, if non-zero, overrides the Configuration's key-stretching
	// function for this call only.
	KSF ksf.Identifier
}

func getClientLoginFinishOptions(options []ClientLoginFinishOptions) ksf.Identifier {
	if len(options) != 0 {
		return options[0].KSF
	}

	return 0
}

// Finish finalizes the OPRF, unmasks and opens the envelope, verifies the
// server's KE2 MAC, and returns the KE3 message to send along with the
// session key, export key, and the server's recovered static public key.
// Opening failure or an AKE MAC mismatch both return ErrInvalidLogin,
// collapsing every verification failure into one response (spec §7).
// options optionally overrides the configured key-stretching function for
// this call; it must match whatever override, if any, was used at
// registration-finish for the same client, since the envelope was sealed
// under that randomized password.
func (c *ClientLogin) Finish(
	ke1 *message.KE1,
	ke2 *message.KE2,
	idClient, idServer []byte,
	options ...ClientLoginFinishOptions,
) (ke3 *message.KE3, sessionKey, exportKey, serverPublicKey []byte, err error) {
	defer func() {
		c.blind = nil
		c.password = nil
	}()

	if err := checkReflection(c.blindedMessage, ke2.CredentialResponse.EvaluatedMessage); err != nil {
		return nil, nil, nil, nil, err
	}

	unblinded := c.conf.OPRF.Unblind(c.blind, ke2.CredentialResponse.EvaluatedMessage)
	oprfOutput := c.conf.OPRF.Finalize(c.password, unblinded)

	randomizedPwd, err := randomizePassword(c.conf, c.password, oprfOutput, getClientLoginFinishOptions(options))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	publicKeyLen := c.conf.Group.ElementLength()
	maskingKey := keyrecovery.MaskingKey(c.conf, randomizedPwd)
	serverPkBytes, envelopeBytes := masking.Unmask(
		c.conf, ke2.CredentialResponse.MaskingNonce, maskingKey, ke2.CredentialResponse.MaskedResponse, publicKeyLen,
	)

	envelope, err := keyrecovery.DeserializeEnvelope(c.conf, envelopeBytes)
	if err != nil {
		return nil, nil, nil, nil, ErrInvalidLogin
	}

	clientSecretKey, clientPublicKeyBytes, exportKey, err := keyrecovery.Recover(
		c.conf, randomizedPwd, envelope, serverPkBytes, idClient, idServer,
	)
	if err != nil {
		return nil, nil, nil, nil, ErrInvalidLogin
	}

	serverPk, err := decodeElement(c.conf.Group, serverPkBytes)
	if err != nil {
		return nil, nil, nil, nil, ErrInvalidByteSequence
	}

	identities := &ake.Identities{ClientIdentity: idClient, ServerIdentity: idServer}
	identities.SetIdentities(clientPublicKeyBytes, serverPkBytes)

	ke3Msg, sessionSecret, err := c.ake.Finish(c.conf, identities, clientSecretKey, serverPk, ke1, ke2)
	if err != nil {
		return nil, nil, nil, nil, ErrInvalidLogin
	}

	return ke3Msg, sessionSecret, exportKey, serverPkBytes, nil
}
