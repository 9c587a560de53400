// SPDX-License-Identifier: MIT

// Package tag holds the protocol label constants used throughout envelope
// sealing, OPRF key derivation, masking, and the 3DH key schedule.
package tag

const (
	// VersionTag is prepended to the 3DH transcript.
	VersionTag = "OPAQUEv1-"

	// LabelPrefix prefixes every HKDF-expand-label used in the 3DH key schedule.
	LabelPrefix = "OPAQUE-"

	// ExpandOPRF is the info suffix used to derive the per-credential OPRF seed.
	ExpandOPRF = "OprfKey"

	// DeriveKeyPair is the info string appended to a per-credential seed when turning it into an OPRF scalar.
	DeriveKeyPair = "OPAQUE-DeriveKeyPair"

	// ExpandPrivateKey is the info suffix used to derive the envelope's client-keypair seed.
	ExpandPrivateKey = "PrivateKey"

	// DerivePrivateKey is the info string appended to that seed when turning it into the client's static scalar.
	DerivePrivateKey = "OPAQUE-DeriveDiffieHellmanKeyPair"

	// AuthKey is the info suffix used to derive the envelope's MAC key.
	AuthKey = "AuthKey"

	// ExportKey is the info suffix used to derive the client's export key.
	ExportKey = "ExportKey"

	// MaskingKey is the info suffix used to derive the masking key.
	MaskingKey = "MaskingKey"

	// CredentialResponsePad is the info suffix used to derive the masking pad.
	CredentialResponsePad = "CredentialResponsePad"

	// Handshake labels the 3DH handshake secret.
	Handshake = "HandshakeSecret"

	// SessionKey labels the 3DH session secret.
	SessionKey = "SessionKey"

	// MacServer labels the server's 3DH MAC key.
	MacServer = "ServerMAC"

	// MacClient labels the client's 3DH MAC key.
	MacClient = "ClientMAC"
)
