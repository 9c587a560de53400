// SPDX-License-Identifier: MIT

// Package message holds the plain value records for OPAQUE's six wire
// messages (spec §6): RegistrationRequest, RegistrationResponse,
// RegistrationUpload, CredentialRequest, CredentialResponse, and
// CredentialFinalization. The AKE sub-protocol's KE1 and KE2, defined in
// ke.go, embed CredentialRequest and CredentialResponse, and
// CredentialFinalization is an alias for KE3.
package message

import (
	group "github.com/bytemare/crypto"

	"github.com/opaquecore/opaque/internal/encoding"
)

// RegistrationRequest is the client's first registration message: the
// OPRF-blinded password.
type RegistrationRequest struct {
	BlindedMessage *group.Element
}

// Serialize returns the fixed-length wire encoding of the request.
func (m *RegistrationRequest) Serialize() []byte {
	return m.BlindedMessage.Encode()
}

// RegistrationResponse is the server's reply to a RegistrationRequest: the
// OPRF-evaluated element and the server's static public key.
type RegistrationResponse struct {
	EvaluatedMessage *group.Element
	Pks              *group.Element
}

// Serialize returns the fixed-length wire encoding of the response.
func (m *RegistrationResponse) Serialize() []byte {
	return encoding.Concatenate(m.EvaluatedMessage.Encode(), m.Pks.Encode())
}

// RegistrationUpload is the client's final registration message, and also
// the record a server persists as that client's password file (spec §3's
// PasswordFile): the client's static public key, the masking key, and the
// sealed envelope.
type RegistrationUpload struct {
	PublicKey  *group.Element
	MaskingKey []byte
	Envelope   []byte
}

// Serialize returns the fixed-length wire encoding of the upload.
func (m *RegistrationUpload) Serialize() []byte {
	return encoding.Concatenate(m.PublicKey.Encode(), m.MaskingKey, m.Envelope)
}

// CredentialRequest is the OPAQUE-specific half of the client's login
// request: the OPRF-blinded password. It travels alongside KE1.
type CredentialRequest struct {
	BlindedMessage *group.Element
}

// Serialize returns the fixed-length wire encoding of the request.
func (m *CredentialRequest) Serialize() []byte {
	return m.BlindedMessage.Encode()
}

// CredentialResponse is the OPAQUE-specific half of the server's login
// response: the OPRF-evaluated element and the masked (serverPk ∥ envelope)
// block. It travels alongside KE2.
type CredentialResponse struct {
	EvaluatedMessage *group.Element
	MaskingNonce     []byte
	MaskedResponse   []byte
}

// NewCredentialResponse builds a CredentialResponse from its three fields.
func NewCredentialResponse(evaluated *group.Element, maskingNonce, maskedResponse []byte) *CredentialResponse {
	return &CredentialResponse{
		EvaluatedMessage: evaluated,
		MaskingNonce:     maskingNonce,
		MaskedResponse:   maskedResponse,
	}
}

// Serialize returns the fixed-length wire encoding of the response.
func (m *CredentialResponse) Serialize() []byte {
	return encoding.Concatenate(m.EvaluatedMessage.Encode(), m.MaskingNonce, m.MaskedResponse)
}
