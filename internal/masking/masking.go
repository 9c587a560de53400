// SPDX-License-Identifier: MIT

// Package masking implements the OPAQUE masking layer (spec §4.2): an
// XOR-stream wrapper that hides the envelope and the server's static
// public key inside a CredentialResponse.
package masking

import (
	"github.com/opaquecore/opaque/internal"
	"github.com/opaquecore/opaque/internal/encoding"
	"github.com/opaquecore/opaque/internal/tag"
)

func pad(conf *internal.Configuration, maskingKey, maskingNonce []byte, length int) []byte {
	return conf.KDF.Expand(
		maskingKey,
		encoding.SuffixString(maskingNonce, tag.CredentialResponsePad),
		length,
	)
}

// Mask XORs plain (serverPk ∥ envelope) with a masking pad derived from
// maskingKey and maskingNonce, returning the masking nonce used (generated
// fresh if not supplied) and the masked bytes.
func Mask(conf *internal.Configuration, maskingNonce, maskingKey, serverPublicKey, envelope []byte) (nonce, masked []byte) {
	if len(maskingNonce) == 0 {
		maskingNonce = internal.RandomBytes(conf.NonceLen)
	}

	plain := encoding.Concatenate(serverPublicKey, envelope)
	maskingPad := pad(conf, maskingKey, maskingNonce, len(plain))

	return maskingNonce, internal.Xor(maskingPad, plain)
}

// Unmask reverses Mask, splitting the recovered plaintext into the server's
// public key and the envelope bytes.
func Unmask(
	conf *internal.Configuration,
	maskingNonce, maskingKey, masked []byte,
	publicKeyLen int,
) (serverPublicKey, envelope []byte) {
	maskingPad := pad(conf, maskingKey, maskingNonce, len(masked))
	plain := internal.Xor(maskingPad, masked)

	return plain[:publicKeyLen], plain[publicKeyLen:]
}
