package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxVarIntLen is the maximum encoded size of a 32-bit varint.
const MaxVarIntLen = 5

// AppendVarInt appends v as a varint. Negative values use their
// two's complement bit pattern and always take five bytes.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u&^0x7F != 0 {
		dst = append(dst, byte(u&0x7F)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// VarIntSize returns the number of bytes AppendVarInt would write for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u&^0x7F != 0 {
		u >>= 7
		n++
	}
	return n
}

// ReadVarInt reads a varint from a byte stream. An io.EOF on the first byte
// is returned as is; a stream that ends mid-value yields io.ErrUnexpectedEOF.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var value uint32
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && errors.Is(err, io.EOF) {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}

		value |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(value), nil
		}
	}
	return 0, ErrVarIntTooBig
}

// DecodeVarInt decodes a varint from the front of buf and reports how many
// bytes it used.
func DecodeVarInt(buf []byte) (int32, int, error) {
	var value uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("reading varint: %w", ErrTruncated)
		}

		b := buf[i]
		value |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(value), i + 1, nil
		}
	}
	return 0, 0, ErrVarIntTooBig
}

// AppendString appends s as a varint byte length followed by its UTF-8 bytes.
func AppendString(dst []byte, s string) []byte {
	dst = AppendVarInt(dst, int32(len(s)))
	return append(dst, s...)
}

// DecodeString decodes a length-prefixed UTF-8 string from the front of buf
// and reports how many bytes it used.
func DecodeString(buf []byte) (string, int, error) {
	length, n, err := DecodeVarInt(buf)
	if err != nil {
		return "", 0, err
	}
	if length < 0 {
		return "", 0, fmt.Errorf("string length %d: %w", length, ErrMalformedString)
	}

	end := n + int(length)
	if end > len(buf) {
		return "", 0, fmt.Errorf("string of %d bytes with %d available: %w", length, len(buf)-n, ErrTruncated)
	}

	raw := buf[n:end]
	if !utf8.Valid(raw) {
		return "", 0, ErrMalformedString
	}
	return string(raw), end, nil
}

// AppendUint16 appends v as two big-endian bytes (ports).
func AppendUint16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

// AppendInt64 appends v as eight big-endian bytes (longs).
func AppendInt64(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v))
}
