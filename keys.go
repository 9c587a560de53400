// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/internal/encoding"
	"github.com/opaquecore/opaque/message"
)

// KeyHolder is the seam through which ServerSetup's long-term AKE private
// key may live outside this process, behind a hardware module or vault. The
// local implementation below keeps the scalar in memory and lets
// ServerLogin.Start perform the Diffie-Hellman directly; a remote holder
// exposes only the public key and returns ErrIncompatibleEnvironmentForRemoteKey
// from SecretKey, which forces callers onto the ServerLoginBuilder split.
type KeyHolder interface {
	PublicKey() *group.Element
	SecretKey() (*group.Scalar, error)
}

// OprfSeedHolder is the equivalent seam for the server's OPRF master seed.
type OprfSeedHolder interface {
	Seed() ([]byte, error)
}

type localKeyHolder struct {
	secretKey *group.Scalar
	publicKey *group.Element
}

func (l *localKeyHolder) PublicKey() *group.Element { return l.publicKey }

func (l *localKeyHolder) SecretKey() (*group.Scalar, error) { return l.secretKey, nil }

type remoteKeyHolder struct {
	publicKey *group.Element
}

func (r *remoteKeyHolder) PublicKey() *group.Element { return r.publicKey }

func (r *remoteKeyHolder) SecretKey() (*group.Scalar, error) {
	return nil, ErrIncompatibleEnvironmentForRemoteKey
}

type localOprfSeedHolder struct {
	seed []byte
}

func (l *localOprfSeedHolder) Seed() ([]byte, error) { return l.seed, nil }

type remoteOprfSeedHolder struct{}

func (remoteOprfSeedHolder) Seed() ([]byte, error) {
	return nil, ErrIncompatibleEnvironmentForRemoteKey
}

// ServerSetup is the server's long-term process state (spec §3): its static
// AKE keypair, its OPRF master seed, and a fake-record public key used by
// the dummy-login path. It is created once, shared read-only by every
// concurrent session, and serialized across restarts; it is never mutated
// after creation.
type ServerSetup struct {
	conf           *Configuration
	keys           KeyHolder
	oprfSeed       OprfSeedHolder
	dummyPublicKey *group.Element
}

// NewServerSetup generates a fresh long-term keypair, OPRF seed, and dummy
// public key, all held locally in memory.
func NewServerSetup(c *Configuration) (*ServerSetup, error) {
	ip, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	sk := ip.Group.NewScalar().Random()
	pk := ip.Group.Base().Multiply(sk)
	dummySk := ip.Group.NewScalar().Random()
	dummyPk := ip.Group.Base().Multiply(dummySk)

	return &ServerSetup{
		conf:           c,
		keys:           &localKeyHolder{secretKey: sk, publicKey: pk},
		oprfSeed:       &localOprfSeedHolder{seed: c.GenerateOPRFSeed()},
		dummyPublicKey: dummyPk,
	}, nil
}

// NewServerSetupWithKeyMaterial builds a ServerSetup from an existing
// (secretKey, publicKey) pair and OPRF seed, all kept locally — the
// restart-from-disk path for a server that manages its own key material.
func NewServerSetupWithKeyMaterial(c *Configuration, secretKey, publicKey, oprfSeed []byte) (*ServerSetup, error) {
	ip, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	sk := ip.Group.NewScalar()
	if err := sk.Decode(secretKey); err != nil {
		return nil, ErrInvalidByteSequence
	}

	if sk.IsZero() {
		return nil, ErrZeroSKS
	}

	pk := ip.Group.NewElement()
	if err := pk.Decode(publicKey); err != nil {
		return nil, ErrInvalidByteSequence
	}

	if len(oprfSeed) != ip.Hash.Size() {
		return nil, ErrInvalidOPRFSeedLength
	}

	dummySk := ip.Group.NewScalar().Random()
	dummyPk := ip.Group.Base().Multiply(dummySk)

	return &ServerSetup{
		conf:           c,
		keys:           &localKeyHolder{secretKey: sk, publicKey: pk},
		oprfSeed:       &localOprfSeedHolder{seed: oprfSeed},
		dummyPublicKey: dummyPk,
	}, nil
}

// NewServerSetupWithRemoteKeyMaterial builds a ServerSetup whose static
// secret key and/or OPRF seed live behind an external holder (spec §9's
// remote-key/seed seam). serverPublicKey must still be supplied locally:
// only the private halves may be opaque. The dummy public key is generated
// fresh.
func NewServerSetupWithRemoteKeyMaterial(
	c *Configuration,
	serverPublicKey []byte,
	keys KeyHolder,
	oprfSeed OprfSeedHolder,
) (*ServerSetup, error) {
	ip, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	pk := ip.Group.NewElement()
	if err := pk.Decode(serverPublicKey); err != nil {
		return nil, ErrInvalidByteSequence
	}

	if keys == nil {
		keys = &remoteKeyHolder{publicKey: pk}
	}

	if oprfSeed == nil {
		oprfSeed = remoteOprfSeedHolder{}
	}

	dummySk := ip.Group.NewScalar().Random()
	dummyPk := ip.Group.Base().Multiply(dummySk)

	return &ServerSetup{
		conf:           c,
		keys:           keys,
		oprfSeed:       oprfSeed,
		dummyPublicKey: dummyPk,
	}, nil
}

// PublicKey returns the server's long-term static public key.
func (s *ServerSetup) PublicKey() *group.Element {
	return s.keys.PublicKey()
}

// SecretKey returns the server's long-term static private key, or
// ErrIncompatibleEnvironmentForRemoteKey if it lives behind a remote holder
// — in which case the caller must drive the session through
// ServerLoginBuilder instead.
func (s *ServerSetup) SecretKey() (*group.Scalar, error) {
	return s.keys.SecretKey()
}

// OPRFSeed returns the server's OPRF master seed, or
// ErrIncompatibleEnvironmentForRemoteKey if it lives behind a remote holder.
func (s *ServerSetup) OPRFSeed() ([]byte, error) {
	return s.oprfSeed.Seed()
}

// DummyPublicKey returns the constant fake-record public key used on the
// unknown-credential login path, so that a dummy CredentialResponse has the
// same distribution as a real one (spec §4.2, §4.4 S5).
func (s *ServerSetup) DummyPublicKey() *group.Element {
	return s.dummyPublicKey
}

// FakeRecord builds the dummy RegistrationUpload and masking key used when
// ServerLogin.Start is given no PasswordFile for the requested credential
// identifier, so that the resulting CredentialResponse is indistinguishable
// from one built against a genuine record.
func (s *ServerSetup) FakeRecord() (*message.RegistrationUpload, []byte, error) {
	ip, err := s.conf.toInternal()
	if err != nil {
		return nil, nil, err
	}

	maskingKey := internal.RandomBytes(ip.Hash.Size())

	return &message.RegistrationUpload{
		PublicKey:  s.dummyPublicKey,
		MaskingKey: maskingKey,
		Envelope:   nil,
	}, maskingKey, nil
}

// Serialize returns Nsk ∥ Npk ∥ Nseed ∥ Npk(dummy) (spec §6). It fails with
// ErrIncompatibleEnvironmentForRemoteKey if either the static secret key or
// the OPRF seed lives behind a remote holder: a handle to external key
// material has no generic byte representation this core can produce.
func (s *ServerSetup) Serialize() ([]byte, error) {
	sk, err := s.keys.SecretKey()
	if err != nil {
		return nil, err
	}

	seed, err := s.oprfSeed.Seed()
	if err != nil {
		return nil, err
	}

	return encoding.Concatenate(
		sk.Encode(),
		s.keys.PublicKey().Encode(),
		seed,
		s.dummyPublicKey.Encode(),
	), nil
}

// DeserializeServerSetup restores a ServerSetup previously produced by
// Serialize, under the given configuration.
func DeserializeServerSetup(c *Configuration, encoded []byte) (*ServerSetup, error) {
	ip, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	nsk := ip.Group.ScalarLength()
	npk := ip.Group.ElementLength()
	nseed := ip.Hash.Size()

	if len(encoded) != nsk+npk+nseed+npk {
		return nil, ErrInvalidState
	}

	sk := ip.Group.NewScalar()
	if err := sk.Decode(encoded[:nsk]); err != nil {
		return nil, ErrInvalidByteSequence
	}

	pk := ip.Group.NewElement()
	if err := pk.Decode(encoded[nsk : nsk+npk]); err != nil {
		return nil, ErrInvalidByteSequence
	}

	seed := encoded[nsk+npk : nsk+npk+nseed]

	dummyPk := ip.Group.NewElement()
	if err := dummyPk.Decode(encoded[nsk+npk+nseed:]); err != nil {
		return nil, ErrInvalidByteSequence
	}

	return &ServerSetup{
		conf:           c,
		keys:           &localKeyHolder{secretKey: sk, publicKey: pk},
		oprfSeed:       &localOprfSeedHolder{seed: seed},
		dummyPublicKey: dummyPk,
	}, nil
}

// ClientRecord is the server-side PasswordFile (spec §3): one per
// registered client, keyed by a server-chosen credential identifier.
type ClientRecord struct {
	*message.RegistrationUpload
	CredentialIdentifier []byte
	ClientIdentity       []byte
}
