// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import "errors"

var (
	// ErrInvalidLogin is returned for any cryptographic verification
	// failure during registration-finish or login: envelope MAC mismatch,
	// AKE MAC mismatch, identifier mismatch, context mismatch, or a dummy
	// unknown-credential response. Spec §7 requires all of these to
	// collapse into one error so a client cannot distinguish which check
	// failed, nor tell a failed login from an unknown credential.
	ErrInvalidLogin = errors.New("opaque: invalid login")

	// ErrInvalidByteSequence is returned when a wire message fails to
	// deserialize: wrong length, a non-canonical group element, or the
	// identity element where a valid public key was expected.
	ErrInvalidByteSequence = errors.New("opaque: invalid byte sequence")

	// ErrInvalidNonce is raised when an AKE nonce of the wrong length is
	// supplied through a testing override (the AKENonce field of
	// GenerateKE1Options or GenerateKE2Options). The length of
	// GenerateKE2Options.MaskingNonce is not checked.
	ErrInvalidNonce = errors.New("opaque: invalid nonce length")

	// ErrKsf is returned when the configured key-stretching function
	// signals a parameter or resource problem.
	ErrKsf = errors.New("opaque: key-stretching function failed")

	// ErrReflection is returned when a peer's group element equals the
	// caller's own, which would make the protocol's blinding observable.
	ErrReflection = errors.New("opaque: reflected group element")

	// ErrIncompatibleEnvironmentForRemoteKey is returned when an operation
	// needs a secret key or OPRF seed that ServerSetup holds only behind a
	// remote holder. It carries no inner error; an error returned by a
	// caller-supplied KeyHolder or OprfSeedHolder is passed on unchanged.
	ErrIncompatibleEnvironmentForRemoteKey = errors.New("opaque: remote key holder error")

	// ErrNoServerKeyMaterial indicates that a ServerRegistration or
	// ServerLogin operation was called with a nil ServerSetup.
	ErrNoServerKeyMaterial = errors.New("opaque: no server key material: provide a ServerSetup")

	// ErrAkeInvalidClientMac indicates that the MAC contained in the KE3
	// message is not valid in the given session.
	ErrAkeInvalidClientMac = errors.New("opaque: failed to authenticate client: invalid client mac")

	// ErrInvalidState indicates that the given state is not valid due to a
	// wrong length.
	ErrInvalidState = errors.New("opaque: invalid state length")

	// ErrInvalidEnvelopeLength indicates the envelope contained in the
	// record is of invalid length.
	ErrInvalidEnvelopeLength = errors.New("opaque: record has invalid envelope length")

	// ErrInvalidOPRFSeedLength indicates that the OPRF seed is not of the
	// right length.
	ErrInvalidOPRFSeedLength = errors.New("opaque: input OPRF seed length is invalid (must be of hash output length)")

	// ErrZeroSKS indicates that the server's private key is a zero scalar.
	ErrZeroSKS = errors.New("opaque: server private key is zero")
)
