// SPDX-License-Identifier: MIT

// Package message: KE1/KE2/KE3 are the three wire messages of the
// underlying authenticated key-exchange sub-protocol (3DH by default, spec
// §4.5). OPAQUE's own CredentialRequest/CredentialResponse ride alongside
// KE1/KE2; CredentialFinalization is a thin alias for KE3.
package message

import (
	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal/encoding"
)

// KE1 is the client's first login message: the OPAQUE CredentialRequest
// plus the AKE's own ephemeral public key and nonce.
type KE1 struct {
	*CredentialRequest
	ClientNonce          []byte
	ClientPublicKeyshare *group.Element
}

// Serialize returns the fixed-length wire encoding of KE1.
func (m *KE1) Serialize() []byte {
	return encoding.Concatenate(m.CredentialRequest.Serialize(), m.ClientNonce, m.ClientPublicKeyshare.Encode())
}

// KE2 is the server's login response: the OPAQUE CredentialResponse plus
// the AKE's ephemeral public key, nonce, and server MAC.
type KE2 struct {
	*CredentialResponse
	ServerNonce          []byte
	ServerPublicKeyshare *group.Element
	ServerMac            []byte
}

// Serialize returns the fixed-length wire encoding of KE2.
func (m *KE2) Serialize() []byte {
	return encoding.Concatenate(
		m.CredentialResponse.Serialize(),
		m.ServerNonce,
		m.ServerPublicKeyshare.Encode(),
		m.ServerMac,
	)
}

// KE3 is the client's final login message: its MAC over the completed
// transcript. This is what spec.md calls CredentialFinalization.
type KE3 struct {
	ClientMac []byte
}

// CredentialFinalization is an alias for KE3, named the way spec.md's wire
// format table names the third login message.
type CredentialFinalization = KE3

// Serialize returns the fixed-length wire encoding of KE3.
func (m *KE3) Serialize() []byte {
	return m.ClientMac
}
