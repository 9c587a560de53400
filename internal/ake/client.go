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
	"github.com/opaquecore/opaque/message"
)

// ErrAkeInvalidServerMac indicates that the MAC contained in the KE2
// message is not valid in the given session.
var ErrAkeInvalidServerMac = errors.New("failed to authenticate server: invalid server mac")

// Client exposes the client's AKE functions and holds its state between
// KE1 generation and KE3 finalization. Single-use: a Client is consumed by
// Finish regardless of outcome, per spec §4.4's state-machine discipline.
type Client struct {
	values
}

// NewClient returns a new, empty, 3DH client.
func NewClient() *Client {
	return &Client{}
}

// Start produces a KE1 message carrying the given CredentialRequest.
func (c *Client) Start(conf *internal.Configuration, credentialRequest *message.CredentialRequest, options Options) (*message.KE1, error) {
	epku, err := c.setOptions(conf.Group, options)
	if err != nil {
		return nil, err
	}

	return &message.KE1{
		CredentialRequest:    credentialRequest,
		ClientNonce:          c.nonce,
		ClientPublicKeyshare: epku,
	}, nil
}

// Finish verifies ke2's server MAC and, on success, returns a KE3 message
// and the derived session key. clientSecretKey and serverPublicKey are the
// client's static keypair (recovered from the envelope) and the server's
// known static public key.
func (c *Client) Finish(
	conf *internal.Configuration,
	identities *Identities,
	clientSecretKey *group.Scalar,
	serverPublicKey *group.Element,
	ke1 *message.KE1,
	ke2 *message.KE2,
) (*message.KE3, []byte, error) {
	defer c.flush()

	ikm := k3dh(
		ke2.ServerPublicKeyshare, c.ephemeralSecretKey,
		serverPublicKey, c.ephemeralSecretKey,
		ke2.ServerPublicKeyshare, clientSecretKey,
	)

	sessionSecret, expectedServerMac, clientMac := core3DH(conf, identities, ikm, ke1, ke2)

	if !conf.MAC.Equal(expectedServerMac, ke2.ServerMac) {
		return nil, nil, ErrAkeInvalidServerMac
	}

	return &message.KE3{ClientMac: clientMac}, sessionSecret, nil
}
