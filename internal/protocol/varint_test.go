package protocol

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAppendVarIntKnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{2, []byte{0x02}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{2147483647, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
		{-2147483648, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
	}

	for _, tc := range tests {
		got := AppendVarInt(nil, tc.value)
		assert.Equal(t, tc.want, got, "value %d", tc.value)
		assert.Equal(t, len(tc.want), VarIntSize(tc.value), "size of %d", tc.value)

		decoded, n, err := DecodeVarInt(tc.want)
		require.NoError(t, err)
		assert.Equal(t, tc.value, decoded)
		assert.Equal(t, len(tc.want), n)
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int32().Draw(t, "v")
		encoded := AppendVarInt(nil, v)

		decoded, n, err := DecodeVarInt(encoded)
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if decoded != v || n != len(encoded) {
			t.Fatalf("decoded %d (%d bytes), want %d (%d bytes)", decoded, n, v, len(encoded))
		}

		streamed, err := ReadVarInt(bytes.NewReader(encoded))
		if err != nil || streamed != v {
			t.Fatalf("stream decode %d: got %d, %v", v, streamed, err)
		}
	})
}

func TestDecodeVarIntErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		_, _, err := DecodeVarInt(nil)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("continuation without end", func(t *testing.T) {
		_, _, err := DecodeVarInt([]byte{0x80, 0x80})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("more than five bytes", func(t *testing.T) {
		_, _, err := DecodeVarInt([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
		assert.ErrorIs(t, err, ErrVarIntTooBig)
	})
}

func TestReadVarIntStreamErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadVarInt(bufio.NewReader(bytes.NewReader(nil)))
	assert.ErrorIs(t, err, io.EOF)

	_, err = ReadVarInt(bufio.NewReader(bytes.NewReader([]byte{0xff})))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		encoded := AppendString(nil, s)

		decoded, n, err := DecodeString(encoded)
		if err != nil {
			t.Fatalf("decode %q: %v", s, err)
		}
		if decoded != s || n != len(encoded) {
			t.Fatalf("decoded %q (%d bytes), want %q (%d bytes)", decoded, n, s, len(encoded))
		}
	})
}

func TestDecodeStringErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{name: "missing length", input: nil, wantErr: ErrTruncated},
		{name: "length past input", input: []byte{0x05, 'a', 'b'}, wantErr: ErrTruncated},
		{name: "invalid utf-8", input: []byte{0x02, 0xc3, 0x28}, wantErr: ErrMalformedString},
		{name: "negative length", input: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, wantErr: ErrMalformedString},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := DecodeString(tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDecodeStringConsumesOnlyDeclaredBytes(t *testing.T) {
	t.Parallel()

	buf := AppendString(nil, "héllo")
	buf = append(buf, 0xAA, 0xBB)

	s, n, err := DecodeString(buf)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)
	assert.Equal(t, len(buf)-2, n)
}

func TestFixedWidthFields(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x63, 0xDE}, AppendUint16(nil, 25566))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe}, AppendInt64(nil, -2))
}
