// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/message"
)

// Deserializer exposes exact-length-checked deserialization for all six
// OPAQUE wire messages plus ServerSetup, under a fixed configuration (spec
// §6). Deserialization never accepts a length other than the one the
// ciphersuite's parameters dictate: no varint, no optional fields.
type Deserializer struct {
	conf *internal.Configuration
}

func (d *Deserializer) pointLen() int { return d.conf.Group.ElementLength() }

// DeserializeRegistrationRequest decodes a RegistrationRequest: Noe bytes.
func (d *Deserializer) DeserializeRegistrationRequest(input []byte) (*message.RegistrationRequest, error) {
	if len(input) != d.pointLen() {
		return nil, ErrInvalidByteSequence
	}

	e, err := decodeElement(d.conf.Group, input)
	if err != nil {
		return nil, err
	}

	return &message.RegistrationRequest{BlindedMessage: e}, nil
}

// DeserializeRegistrationResponse decodes a RegistrationResponse: Noe ∥ Npk bytes.
func (d *Deserializer) DeserializeRegistrationResponse(input []byte) (*message.RegistrationResponse, error) {
	n := d.pointLen()
	if len(input) != 2*n {
		return nil, ErrInvalidByteSequence
	}

	eval, err := decodeElement(d.conf.Group, input[:n])
	if err != nil {
		return nil, err
	}

	pks, err := decodeElement(d.conf.Group, input[n:])
	if err != nil {
		return nil, err
	}

	return &message.RegistrationResponse{EvaluatedMessage: eval, Pks: pks}, nil
}

// DeserializeRegistrationUpload decodes a RegistrationUpload: Npk ∥ Nh ∥ Nenv bytes.
func (d *Deserializer) DeserializeRegistrationUpload(input []byte) (*message.RegistrationUpload, error) {
	n := d.pointLen()
	nh := d.conf.Hash.Size()

	if len(input) != n+nh+d.conf.EnvelopeSize {
		return nil, ErrInvalidByteSequence
	}

	pk, err := decodeElement(d.conf.Group, input[:n])
	if err != nil {
		return nil, err
	}

	return &message.RegistrationUpload{
		PublicKey:  pk,
		MaskingKey: input[n : n+nh],
		Envelope:   input[n+nh:],
	}, nil
}

// DeserializeCredentialRequest decodes a CredentialRequest: Noe bytes.
func (d *Deserializer) DeserializeCredentialRequest(input []byte) (*message.CredentialRequest, error) {
	if len(input) != d.pointLen() {
		return nil, ErrInvalidByteSequence
	}

	e, err := decodeElement(d.conf.Group, input)
	if err != nil {
		return nil, err
	}

	return &message.CredentialRequest{BlindedMessage: e}, nil
}

// DeserializeCredentialResponse decodes a CredentialResponse: Noe ∥ Nn ∥ (Npk+Nenv) bytes.
func (d *Deserializer) DeserializeCredentialResponse(input []byte) (*message.CredentialResponse, error) {
	n := d.pointLen()
	maskedLen := n + d.conf.EnvelopeSize
	want := n + d.conf.NonceLen + maskedLen

	if len(input) != want {
		return nil, ErrInvalidByteSequence
	}

	eval, err := decodeElement(d.conf.Group, input[:n])
	if err != nil {
		return nil, err
	}

	nonce := input[n : n+d.conf.NonceLen]
	masked := input[n+d.conf.NonceLen:]

	return message.NewCredentialResponse(eval, nonce, masked), nil
}

// DeserializeKE1 decodes a KE1: CredentialRequest ∥ Nn ∥ Npk bytes.
func (d *Deserializer) DeserializeKE1(input []byte) (*message.KE1, error) {
	n := d.pointLen()
	credLen := n
	want := credLen + d.conf.NonceLen + n

	if len(input) != want {
		return nil, ErrInvalidByteSequence
	}

	cr, err := d.DeserializeCredentialRequest(input[:credLen])
	if err != nil {
		return nil, err
	}

	nonce := input[credLen : credLen+d.conf.NonceLen]

	epk, err := decodeElement(d.conf.Group, input[credLen+d.conf.NonceLen:])
	if err != nil {
		return nil, err
	}

	return &message.KE1{CredentialRequest: cr, ClientNonce: nonce, ClientPublicKeyshare: epk}, nil
}

// DeserializeKE2 decodes a KE2: CredentialResponse ∥ Nn ∥ Npk ∥ Nm bytes.
func (d *Deserializer) DeserializeKE2(input []byte) (*message.KE2, error) {
	n := d.pointLen()
	credRespLen := n + d.conf.NonceLen + n + d.conf.EnvelopeSize
	nm := d.conf.MAC.Size()
	want := credRespLen + d.conf.NonceLen + n + nm

	if len(input) != want {
		return nil, ErrInvalidByteSequence
	}

	cr, err := d.DeserializeCredentialResponse(input[:credRespLen])
	if err != nil {
		return nil, err
	}

	rest := input[credRespLen:]
	nonce := rest[:d.conf.NonceLen]

	epk, err := decodeElement(d.conf.Group, rest[d.conf.NonceLen:d.conf.NonceLen+n])
	if err != nil {
		return nil, err
	}

	mac := rest[d.conf.NonceLen+n:]

	return &message.KE2{
		CredentialResponse:   cr,
		ServerNonce:          nonce,
		ServerPublicKeyshare: epk,
		ServerMac:            mac,
	}, nil
}

// DeserializeKE3 decodes a KE3 (alias CredentialFinalization): Nm bytes.
func (d *Deserializer) DeserializeKE3(input []byte) (*message.KE3, error) {
	if len(input) != d.conf.MAC.Size() {
		return nil, ErrInvalidByteSequence
	}

	return &message.KE3{ClientMac: input}, nil
}

// DeserializeServerSetup decodes a ServerSetup under the given
// configuration c; d's own configuration is not consulted.
func (d *Deserializer) DeserializeServerSetup(c *Configuration, input []byte) (*ServerSetup, error) {
	return DeserializeServerSetup(c, input)
}
