// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque_test

import (
	"bytes"
	"testing"

	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque"
	"github.com/opaquecore/opaque/message"
)

const dbgErr = "%v: %v"

// register runs a full client/server registration exchange over the wire
// encoding, returning the server's persisted record and the client's export key.
func register(
	t *testing.T,
	conf *opaque.Configuration,
	setup *opaque.ServerSetup,
	credentialIdentifier, idClient, idServer, password []byte,
) (*opaque.ClientRecord, []byte) {
	t.Helper()

	client, err := conf.Client()
	if err != nil {
		t.Fatalf(dbgErr, "client", err)
	}

	clientReg, err := client.NewRegistration()
	if err != nil {
		t.Fatalf(dbgErr, "client registration", err)
	}

	req := clientReg.Start(password)
	reqBytes := req.Serialize()

	server, err := conf.Server()
	if err != nil {
		t.Fatalf(dbgErr, "server", err)
	}

	des, err := server.Deserializer()
	if err != nil {
		t.Fatalf(dbgErr, "deserializer", err)
	}

	req2, err := des.DeserializeRegistrationRequest(reqBytes)
	if err != nil {
		t.Fatalf(dbgErr, "deserialize request", err)
	}

	serverReg, err := server.NewRegistration()
	if err != nil {
		t.Fatalf(dbgErr, "server registration", err)
	}

	resp, err := serverReg.Start(setup, req2, credentialIdentifier)
	if err != nil {
		t.Fatalf(dbgErr, "registration response", err)
	}

	respBytes := resp.Serialize()

	resp2, err := des.DeserializeRegistrationResponse(respBytes)
	if err != nil {
		t.Fatalf(dbgErr, "deserialize response", err)
	}

	upload, exportKey, err := clientReg.Finish(resp2, idClient, idServer)
	if err != nil {
		t.Fatalf(dbgErr, "registration finish", err)
	}

	uploadBytes := upload.Serialize()

	upload2, err := des.DeserializeRegistrationUpload(uploadBytes)
	if err != nil {
		t.Fatalf(dbgErr, "deserialize upload", err)
	}

	record := serverReg.Finish(upload2, credentialIdentifier, idClient)

	return record, exportKey
}

// login runs a full client/server login exchange over the wire encoding
// given an existing record (nil simulates an unknown credential), returning
// the client and server's respective session keys, export key, and any
// login-finish error.
func login(
	t *testing.T,
	conf *opaque.Configuration,
	setup *opaque.ServerSetup,
	record *opaque.ClientRecord,
	credentialIdentifier, idClient, idServer, serverIdentity, password []byte,
) (clientSessionKey, serverSessionKey, exportKey []byte, err error) {
	t.Helper()

	client, err := conf.Client()
	if err != nil {
		t.Fatalf(dbgErr, "client", err)
	}

	clientLogin, err := client.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "client login", err)
	}

	ke1, err := clientLogin.Start(password)
	if err != nil {
		t.Fatalf(dbgErr, "KE1", err)
	}

	ke1Bytes := ke1.Serialize()

	server, err := conf.Server()
	if err != nil {
		t.Fatalf(dbgErr, "server", err)
	}

	des, err := server.Deserializer()
	if err != nil {
		t.Fatalf(dbgErr, "deserializer", err)
	}

	ke1Server, err := des.DeserializeKE1(ke1Bytes)
	if err != nil {
		t.Fatalf(dbgErr, "deserialize KE1", err)
	}

	serverLogin, err := server.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "server login", err)
	}

	ke2, kerr := serverLogin.Start(setup, record, credentialIdentifier, ke1Server, serverIdentity)
	if kerr != nil {
		return nil, nil, nil, kerr
	}

	ke2Bytes := ke2.Serialize()

	ke2Client, err := des.DeserializeKE2(ke2Bytes)
	if err != nil {
		t.Fatalf(dbgErr, "deserialize KE2", err)
	}

	ke3, sessionKey, exportKey2, _, ferr := clientLogin.Finish(ke1, ke2Client, idClient, idServer)
	if ferr != nil {
		return nil, nil, nil, ferr
	}

	ke3Bytes := ke3.Serialize()

	ke3Server, err := des.DeserializeKE3(ke3Bytes)
	if err != nil {
		t.Fatalf(dbgErr, "deserialize KE3", err)
	}

	if ferr := serverLogin.Finish(ke3Server); ferr != nil {
		return nil, nil, nil, ferr
	}

	return sessionKey, serverLogin.SessionKey(), exportKey2, nil
}

func testSetup(t *testing.T) (*opaque.Configuration, *opaque.ServerSetup) {
	t.Helper()

	conf := opaque.DefaultConfiguration()

	setup, err := opaque.NewServerSetup(conf)
	if err != nil {
		t.Fatalf(dbgErr, "server setup", err)
	}

	return conf, setup
}

// TestFull covers S1: a complete registration followed by a successful
// login, checking that both sides agree on the session key and that the
// export key is stable across registration and login.
func TestFull(t *testing.T) {
	conf, setup := testSetup(t)

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice")
	idServer := []byte("server.example")
	password := []byte("hunter2")

	record, exportKeyReg := register(t, conf, setup, credID, idClient, idServer, password)

	clientKey, serverKey, exportKeyLogin, err := login(t, conf, setup, record, credID, idClient, idServer, idServer, password)
	if err != nil {
		t.Fatalf(dbgErr, "login", err)
	}

	if !bytes.Equal(clientKey, serverKey) {
		t.Fatal("client and server session keys differ")
	}

	if !bytes.Equal(exportKeyReg, exportKeyLogin) {
		t.Fatal("export keys differ between registration and login")
	}
}

// TestWrongPassword covers S2: a login attempt with the wrong password must
// fail without revealing anything more specific than InvalidLogin.
func TestWrongPassword(t *testing.T) {
	conf, setup := testSetup(t)

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice")
	idServer := []byte("server.example")

	record, _ := register(t, conf, setup, credID, idClient, idServer, []byte("hunter2"))

	_, _, _, err := login(t, conf, setup, record, credID, idClient, idServer, idServer, []byte("wrong password"))
	if err != opaque.ErrInvalidLogin {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
}

// TestCustomIdentities covers S3: explicit, non-default client/server
// identifiers bind into the transcript and must round-trip a login.
func TestCustomIdentities(t *testing.T) {
	conf, setup := testSetup(t)

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice@example.com")
	idServer := []byte("auth.example.com")
	password := []byte("hunter2")

	record, _ := register(t, conf, setup, credID, idClient, idServer, password)

	clientKey, serverKey, _, err := login(t, conf, setup, record, credID, idClient, idServer, idServer, password)
	if err != nil {
		t.Fatalf(dbgErr, "login", err)
	}

	if !bytes.Equal(clientKey, serverKey) {
		t.Fatal("client and server session keys differ")
	}
}

// TestMismatchedIdentities covers S4: identifiers set at registration must
// match those supplied at login-finish, or the login must fail.
func TestMismatchedIdentities(t *testing.T) {
	conf, setup := testSetup(t)

	credID := opaque.RandomBytes(32)
	idServer := []byte("server.example")
	password := []byte("hunter2")

	record, _ := register(t, conf, setup, credID, []byte("alice"), idServer, password)

	_, _, _, err := login(t, conf, setup, record, credID, []byte("mallory"), idServer, idServer, password)
	if err != opaque.ErrInvalidLogin {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
}

// TestUnknownCredential covers S5: a login attempt against a credential
// identifier with no stored record must fail the same way a wrong password
// would, using the constant dummy record (spec's dummy-indistinguishability
// requirement).
func TestUnknownCredential(t *testing.T) {
	conf, setup := testSetup(t)

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice")
	idServer := []byte("server.example")
	password := []byte("hunter2")

	_, _, _, err := login(t, conf, setup, nil, credID, idClient, idServer, idServer, password)
	if err != opaque.ErrInvalidLogin {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
}

// TestDummyResponseShape checks that the dummy CredentialResponse built for
// an unknown credential identifier has the same wire length as a real one,
// so a network observer cannot distinguish the two cases by size alone.
func TestDummyResponseShape(t *testing.T) {
	conf, setup := testSetup(t)

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice")
	idServer := []byte("server.example")
	password := []byte("hunter2")

	record, _ := register(t, conf, setup, credID, idClient, idServer, password)

	realLen := ke2Length(t, conf, setup, record, credID, idServer, password)
	dummyLen := ke2Length(t, conf, setup, nil, opaque.RandomBytes(32), idServer, password)

	if realLen != dummyLen {
		t.Fatalf("real KE2 length %d != dummy KE2 length %d", realLen, dummyLen)
	}
}

func ke2Length(
	t *testing.T,
	conf *opaque.Configuration,
	setup *opaque.ServerSetup,
	record *opaque.ClientRecord,
	credID, idServer, password []byte,
) int {
	t.Helper()

	client, err := conf.Client()
	if err != nil {
		t.Fatalf(dbgErr, "client", err)
	}

	clientLogin, err := client.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "client login", err)
	}

	ke1, err := clientLogin.Start(password)
	if err != nil {
		t.Fatalf(dbgErr, "KE1", err)
	}

	server, err := conf.Server()
	if err != nil {
		t.Fatalf(dbgErr, "server", err)
	}

	serverLogin, err := server.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "server login", err)
	}

	ke2, err := serverLogin.Start(setup, record, credID, ke1, idServer)
	if err != nil {
		t.Fatalf(dbgErr, "KE2", err)
	}

	return len(ke2.Serialize())
}

// TestRemoteKeyBuilder covers S6: driving the login response through
// ServerLoginBuilder and an externally-computed Diffie-Hellman term must
// produce the exact same KE2 and session key as the non-split Start path,
// for the same ephemeral values.
func TestRemoteKeyBuilder(t *testing.T) {
	conf, setup := testSetup(t)

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice")
	idServer := []byte("server.example")
	password := []byte("hunter2")

	record, _ := register(t, conf, setup, credID, idClient, idServer, password)

	client, err := conf.Client()
	if err != nil {
		t.Fatalf(dbgErr, "client", err)
	}

	clientLogin, err := client.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "client login", err)
	}

	ke1, err := clientLogin.Start(password)
	if err != nil {
		t.Fatalf(dbgErr, "KE1", err)
	}

	server, err := conf.Server()
	if err != nil {
		t.Fatalf(dbgErr, "server", err)
	}

	serverLogin, err := server.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "server login", err)
	}

	opts := opaque.GenerateKE2Options{
		KeyShareSeed: opaque.RandomBytes(32),
		AKENonce:     opaque.RandomBytes(32),
		MaskingNonce: opaque.RandomBytes(32),
	}

	builder, ke2, err := serverLogin.StartBuilder(setup, record, credID, ke1, idServer, opts)
	if err != nil {
		t.Fatalf(dbgErr, "start builder", err)
	}

	serverSecretKey, err := setup.SecretKey()
	if err != nil {
		t.Fatalf(dbgErr, "server secret key", err)
	}

	g := conf.AKE.Group()

	clientEph := g.NewElement()
	if err := clientEph.Decode(builder.Data()); err != nil {
		t.Fatalf(dbgErr, "decode builder data", err)
	}

	dhStatic := clientEph.Multiply(serverSecretKey).Encode()

	builtLogin, builtKE2 := builder.Build(dhStatic)

	if !bytes.Equal(ke2.Serialize(), builtKE2.Serialize()) {
		t.Fatal("builder KE2 mismatch against its own partial copy")
	}

	directKE2, err := serverLogin.Start(setup, record, credID, ke1, idServer, opts)
	if err != nil {
		t.Fatalf(dbgErr, "non-split start", err)
	}

	if !bytes.Equal(directKE2.Serialize(), builtKE2.Serialize()) {
		t.Fatal("builder KE2 differs from the non-split Start KE2")
	}

	ke3, clientSessionKey, _, _, err := clientLogin.Finish(ke1, builtKE2, idClient, idServer)
	if err != nil {
		t.Fatalf(dbgErr, "client finish", err)
	}

	if err := builtLogin.Finish(ke3); err != nil {
		t.Fatalf(dbgErr, "server finish", err)
	}

	if !bytes.Equal(clientSessionKey, builtLogin.SessionKey()) {
		t.Fatal("builder session key differs from client session key")
	}

	if !bytes.Equal(serverLogin.SessionKey(), builtLogin.SessionKey()) {
		t.Fatal("builder session key differs from the non-split Start session key")
	}
}

// remoteSigner simulates a genuinely external key-holding service: unlike
// ServerSetup's own local key holder, it never exposes its static secret key
// through the KeyHolder interface (SecretKey always fails), but can compute
// the one Diffie-Hellman term ServerLoginBuilder needs given a client
// ephemeral public key, the way an HSM's ECDH operation would.
type remoteSigner struct {
	secretKey *group.Scalar
	publicKey *group.Element
}

func (r *remoteSigner) PublicKey() *group.Element { return r.publicKey }

func (r *remoteSigner) SecretKey() (*group.Scalar, error) {
	return nil, opaque.ErrIncompatibleEnvironmentForRemoteKey
}

func (r *remoteSigner) computeClientDH(clientEphemeralPub *group.Element) []byte {
	return clientEphemeralPub.Multiply(r.secretKey).Encode()
}

type testOprfSeedHolder struct {
	seed []byte
}

func (s *testOprfSeedHolder) Seed() ([]byte, error) { return s.seed, nil }

// TestRemoteKeyHolderBuilder covers S6 end-to-end against a genuinely
// external KeyHolder, rather than simulating remoteness by extracting the
// setup's own secret key: ServerSetup.SecretKey must fail with
// ErrIncompatibleEnvironmentForRemoteKey, and the one Diffie-Hellman term
// ServerLoginBuilder needs is computed by the holder itself, never passing
// through ServerSetup at all.
func TestRemoteKeyHolderBuilder(t *testing.T) {
	conf := opaque.DefaultConfiguration()
	g := conf.AKE.Group()

	sk := g.NewScalar().Random()
	pk := g.Base().Multiply(sk)

	holder := &remoteSigner{secretKey: sk, publicKey: pk}
	seedHolder := &testOprfSeedHolder{seed: opaque.RandomBytes(64)}

	setup, err := opaque.NewServerSetupWithRemoteKeyMaterial(conf, pk.Encode(), holder, seedHolder)
	if err != nil {
		t.Fatalf(dbgErr, "remote server setup", err)
	}

	if _, err := setup.SecretKey(); err != opaque.ErrIncompatibleEnvironmentForRemoteKey {
		t.Fatalf("expected ErrIncompatibleEnvironmentForRemoteKey, got %v", err)
	}

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice")
	idServer := []byte("server.example")
	password := []byte("hunter2")

	record, _ := register(t, conf, setup, credID, idClient, idServer, password)

	client, err := conf.Client()
	if err != nil {
		t.Fatalf(dbgErr, "client", err)
	}

	clientLogin, err := client.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "client login", err)
	}

	ke1, err := clientLogin.Start(password)
	if err != nil {
		t.Fatalf(dbgErr, "KE1", err)
	}

	server, err := conf.Server()
	if err != nil {
		t.Fatalf(dbgErr, "server", err)
	}

	serverLogin, err := server.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "server login", err)
	}

	builder, _, err := serverLogin.StartBuilder(setup, record, credID, ke1, idServer)
	if err != nil {
		t.Fatalf(dbgErr, "start builder", err)
	}

	clientEph := g.NewElement()
	if err := clientEph.Decode(builder.Data()); err != nil {
		t.Fatalf(dbgErr, "decode builder data", err)
	}

	dhStatic := holder.computeClientDH(clientEph)

	builtLogin, builtKE2 := builder.Build(dhStatic)

	ke3, clientSessionKey, _, _, err := clientLogin.Finish(ke1, builtKE2, idClient, idServer)
	if err != nil {
		t.Fatalf(dbgErr, "client finish", err)
	}

	if err := builtLogin.Finish(ke3); err != nil {
		t.Fatalf(dbgErr, "server finish", err)
	}

	if !bytes.Equal(clientSessionKey, builtLogin.SessionKey()) {
		t.Fatal("builder session key differs from client session key")
	}
}

// TestReflection covers spec §7's ReflectionError: an OPRF response that
// echoes back the client's own blinded element must be rejected rather than
// silently accepted as a degenerate key exchange.
func TestReflection(t *testing.T) {
	conf, _ := testSetup(t)

	client, err := conf.Client()
	if err != nil {
		t.Fatalf(dbgErr, "client", err)
	}

	clientReg, err := client.NewRegistration()
	if err != nil {
		t.Fatalf(dbgErr, "client registration", err)
	}

	req := clientReg.Start([]byte("hunter2"))

	g := conf.OPRF.Group()

	pks := g.Base().Multiply(g.NewScalar().Random())

	reflected := &message.RegistrationResponse{
		EvaluatedMessage: req.BlindedMessage,
		Pks:              pks,
	}

	if _, _, err := clientReg.Finish(reflected, nil, nil); err != opaque.ErrReflection {
		t.Fatalf("expected ErrReflection, got %v", err)
	}
}

// TestInvalidNonce covers spec §7's InvalidNonce: an AKE nonce override of
// the wrong length must be rejected before it can corrupt a fixed-length
// wire encoding.
func TestInvalidNonce(t *testing.T) {
	conf, _ := testSetup(t)

	client, err := conf.Client()
	if err != nil {
		t.Fatalf(dbgErr, "client", err)
	}

	clientLogin, err := client.NewLogin()
	if err != nil {
		t.Fatalf(dbgErr, "client login", err)
	}

	_, err = clientLogin.Start([]byte("hunter2"), opaque.GenerateKE1Options{AKENonce: []byte("too short")})
	if err != opaque.ErrInvalidNonce {
		t.Fatalf("expected ErrInvalidNonce, got %v", err)
	}
}

// TestServerSetupRoundTrip checks that ServerSetup.Serialize/
// DeserializeServerSetup round-trip and preserve the static keys used in a
// login.
func TestServerSetupRoundTrip(t *testing.T) {
	conf, setup := testSetup(t)

	encoded, err := setup.Serialize()
	if err != nil {
		t.Fatalf(dbgErr, "serialize setup", err)
	}

	restored, err := opaque.DeserializeServerSetup(conf, encoded)
	if err != nil {
		t.Fatalf(dbgErr, "deserialize setup", err)
	}

	if !bytes.Equal(setup.PublicKey().Encode(), restored.PublicKey().Encode()) {
		t.Fatal("restored public key differs")
	}

	credID := opaque.RandomBytes(32)
	idClient := []byte("alice")
	idServer := []byte("server.example")
	password := []byte("hunter2")

	record, _ := register(t, conf, restored, credID, idClient, idServer, password)

	clientKey, serverKey, _, err := login(t, conf, setup, record, credID, idClient, idServer, idServer, password)
	if err != nil {
		t.Fatalf(dbgErr, "login", err)
	}

	if !bytes.Equal(clientKey, serverKey) {
		t.Fatal("client and server session keys differ after setup round-trip")
	}
}

// TestZeroSecretKey checks that a caller-supplied all-zero secret key is
// rejected rather than silently accepted as a degenerate (identity) keypair.
func TestZeroSecretKey(t *testing.T) {
	conf := opaque.DefaultConfiguration()

	g := conf.AKE.Group()
	zero := g.NewScalar()
	pk := g.Base().Multiply(zero)

	_, err := opaque.NewServerSetupWithKeyMaterial(conf, zero.Encode(), pk.Encode(), opaque.RandomBytes(64))
	if err != opaque.ErrZeroSKS {
		t.Fatalf("expected ErrZeroSKS, got %v", err)
	}
}
