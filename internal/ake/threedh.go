// SPDX-License-Identifier: MIT
//
// Copyright (C) 2021 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ake

import (
	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/internal/encoding"
	"github.com/opaquecore/opaque/internal/tag"
	"github.com/opaquecore/opaque/message"
)

// KeyGen returns a fresh static keypair in the given group, for use as
// either the server's or (via the envelope) the client's long-term AKE key.
func KeyGen(g group.Group) (secretKey, publicKey []byte) {
	scalar := g.NewScalar().Random()
	publicKey2 := g.Base().Multiply(scalar)

	return scalar.Encode(), publicKey2.Encode()
}

func buildLabel(length int, label, context []byte) []byte {
	return encoding.Concat3(
		encoding.I2OSP(length, 2),
		encoding.EncodeVectorLen(append([]byte(tag.LabelPrefix), label...), 1),
		encoding.EncodeVectorLen(context, 1),
	)
}

func expand(h *internal.KDF, secret, hkdfLabel []byte) []byte {
	return h.Expand(secret, hkdfLabel, h.Size())
}

func expandLabel(h *internal.KDF, secret, label, context []byte) []byte {
	return expand(h, secret, buildLabel(h.Size(), label, context))
}

func deriveSecret(h *internal.KDF, secret, label, context []byte) []byte {
	return expandLabel(h, secret, label, context)
}

// preamble builds the OPAQUE 3DH transcript prefix: everything that is
// known to both parties before the server MAC is computed.
func preamble(conf *internal.Configuration, identities *Identities, ke1 *message.KE1, ke2 *message.KE2) []byte {
	return encoding.Concatenate(
		[]byte(tag.VersionTag),
		encoding.EncodeVector(conf.Context),
		encoding.EncodeVector(identities.ClientIdentity),
		ke1.Serialize(),
		encoding.EncodeVector(identities.ServerIdentity),
		ke2.CredentialResponse.Serialize(),
		ke2.ServerNonce,
		ke2.ServerPublicKeyshare.Encode(),
	)
}

type macKeys struct {
	serverMacKey, clientMacKey []byte
}

func deriveKeys(h *internal.KDF, ikm, context []byte) (k *macKeys, sessionSecret []byte) {
	prk := h.Extract(nil, ikm)
	handshakeSecret := deriveSecret(h, prk, []byte(tag.Handshake), context)
	sessionSecret = deriveSecret(h, prk, []byte(tag.SessionKey), context)

	return &macKeys{
		serverMacKey: expandLabel(h, handshakeSecret, []byte(tag.MacServer), nil),
		clientMacKey: expandLabel(h, handshakeSecret, []byte(tag.MacClient), nil),
	}, sessionSecret
}

// k3dh computes the concatenation of three Diffie-Hellman shared points,
// the IKM input to the 3DH key schedule. The three terms are, in order,
// ephemeral-ephemeral, client-ephemeral/server-static, and
// server-ephemeral/client-static: the client passes (serverEphemeralPub,
// myEphemeralSecret, serverStaticPub, myEphemeralSecret, serverEphemeralPub,
// myStaticSecret) and the server passes (clientEphemeralPub,
// myEphemeralSecret, clientEphemeralPub, myStaticSecret, clientStaticPub,
// myEphemeralSecret), so both land on the same three values by the
// commutativity of scalar multiplication. The input elements are left
// unchanged.
func k3dh(
	p1 *group.Element, s1 *group.Scalar,
	p2 *group.Element, s2 *group.Scalar,
	p3 *group.Element, s3 *group.Scalar,
) []byte {
	return encoding.Concat3(
		p1.Copy().Multiply(s1).Encode(),
		p2.Copy().Multiply(s2).Encode(),
		p3.Copy().Multiply(s3).Encode(),
	)
}

// core3DH runs the shared half of the 3DH key schedule: build the preamble,
// derive the handshake and session secrets from ikm, and compute both MACs.
// Both Server.Response and Client.Finish call this with their own ikm.
func core3DH(
	conf *internal.Configuration,
	identities *Identities,
	ikm []byte,
	ke1 *message.KE1,
	ke2 *message.KE2,
) (sessionSecret, serverMac, clientMac []byte) {
	p := preamble(conf, identities, ke1, ke2)
	transcript2 := conf.Hash.Sum(p)

	keys, sessionSecret := deriveKeys(conf.KDF, ikm, transcript2)
	serverMac = conf.MAC.MAC(keys.serverMacKey, transcript2)

	transcript3 := conf.Hash.Sum(p, serverMac)
	clientMac = conf.MAC.MAC(keys.clientMacKey, transcript3)

	return sessionSecret, serverMac, clientMac
}
