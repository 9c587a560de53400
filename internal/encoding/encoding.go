// SPDX-License-Identifier: MIT

// Package encoding implements the fixed-length, varint-free wire encoding
// rules OPAQUE uses for every one of its six messages: big-endian
// length-prefixed vectors (I2OSP/OS2IP per RFC 8017 §4) and canonical
// group-element/scalar (de)serialization.
package encoding

import (
	"encoding/binary"
	"errors"

	group "github.com/bytemare/crypto"
)

// ErrInvalidVectorLength is returned when a length-prefixed vector's declared
// length does not fit in the remaining input.
var ErrInvalidVectorLength = errors.New("invalid vector encoding: declared length exceeds input")

// PointLength maps an AKE/OPRF group identifier to its canonical element
// encoding length in bytes.
var PointLength = make(map[group.Group]int)

// ScalarLength maps an AKE/OPRF group identifier to its canonical scalar
// encoding length in bytes.
var ScalarLength = make(map[group.Group]int)

func init() {
	for _, g := range []group.Group{
		group.Ristretto255Sha512,
		group.P256Sha256,
		group.P384Sha384,
		group.P521Sha512,
	} {
		PointLength[g] = g.ElementLength()
		ScalarLength[g] = g.ScalarLength()
	}
}

// I2OSP encodes value as a big-endian byte string of the given length
// (Integer-to-Octet-String Primitive, RFC 8017 §4.1). length must be 1, 2, or 4.
func I2OSP(value, length int) []byte {
	out := make([]byte, length)

	switch length {
	case 1:
		out[0] = byte(value)
	case 2:
		binary.BigEndian.PutUint16(out, uint16(value)) //nolint:gosec // callers bound value to the wire field width.
	case 4:
		binary.BigEndian.PutUint32(out, uint32(value)) //nolint:gosec // callers bound value to the wire field width.
	default:
		panic("encoding: unsupported I2OSP length")
	}

	return out
}

// OS2IP decodes a big-endian byte string into an integer (Octet-String-to-Integer
// Primitive, RFC 8017 §4.2).
func OS2IP(data []byte) int {
	switch len(data) {
	case 1:
		return int(data[0])
	case 2:
		return int(binary.BigEndian.Uint16(data))
	case 4:
		return int(binary.BigEndian.Uint32(data))
	default:
		panic("encoding: unsupported OS2IP length")
	}
}

// Concatenate returns the concatenation of all inputs.
func Concatenate(inputs ...[]byte) []byte {
	total := 0
	for _, in := range inputs {
		total += len(in)
	}

	out := make([]byte, 0, total)
	for _, in := range inputs {
		out = append(out, in...)
	}

	return out
}

// Concat3 concatenates exactly three byte strings; a small, allocation-friendly
// specialization of Concatenate used on the 3DH transcript's hot path.
func Concat3(a, b, c []byte) []byte {
	out := make([]byte, 0, len(a)+len(b)+len(c))
	out = append(out, a...)
	out = append(out, b...)
	out = append(out, c...)

	return out
}

// SuffixString appends suffix to data, returning a fresh slice.
func SuffixString(data []byte, suffix string) []byte {
	return append(append([]byte{}, data...), suffix...)
}

// EncodeVectorLen prefixes input with its own length, encoded in lenBytes
// bytes (1 or 2).
func EncodeVectorLen(input []byte, lenBytes int) []byte {
	return Concatenate(I2OSP(len(input), lenBytes), input)
}

// EncodeVector prefixes input with a 2-byte big-endian length.
func EncodeVector(input []byte) []byte {
	return EncodeVectorLen(input, 2)
}

// DecodeVector reads a 2-byte length-prefixed vector off the front of input,
// returning the vector's contents and the number of bytes consumed.
func DecodeVector(input []byte) ([]byte, int, error) {
	if len(input) < 2 {
		return nil, 0, ErrInvalidVectorLength
	}

	length := OS2IP(input[:2])
	if len(input) < 2+length {
		return nil, 0, ErrInvalidVectorLength
	}

	return input[2 : 2+length], 2 + length, nil
}

// SerializeScalar returns the canonical encoding of s in the given group.
func SerializeScalar(s *group.Scalar, _ group.Group) []byte {
	return s.Encode()
}

// SerializePoint returns the canonical encoding of e in the given group.
func SerializePoint(e *group.Element, _ group.Group) []byte {
	return e.Encode()
}
