package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compression is a snapshot of a connection's compression settings.
// The zero value means compression is off.
type Compression struct {
	Enabled   bool
	Threshold int
}

// FrameReader is the stream ReadFrame consumes: varints are read a byte at
// a time, frame bodies in one go.
type FrameReader interface {
	io.Reader
	io.ByteReader
}

// EncodeFrame wraps a payload (packet ID included) into one outer frame.
//
// Without compression: [len:varint][payload]
// With compression:    [len:varint][data_len:varint][zlib(payload)] when
// len(payload) >= threshold, else [len:varint][0:varint][payload].
func EncodeFrame(payload []byte, c Compression) ([]byte, error) {
	if !c.Enabled {
		frame := make([]byte, 0, VarIntSize(int32(len(payload)))+len(payload))
		frame = AppendVarInt(frame, int32(len(payload)))
		return append(frame, payload...), nil
	}

	var inner []byte
	if len(payload) >= c.Threshold {
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("failed to compress payload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish compression: %w", err)
		}

		inner = make([]byte, 0, VarIntSize(int32(len(payload)))+compressed.Len())
		inner = AppendVarInt(inner, int32(len(payload)))
		inner = append(inner, compressed.Bytes()...)
	} else {
		inner = make([]byte, 0, 1+len(payload))
		inner = AppendVarInt(inner, 0)
		inner = append(inner, payload...)
	}

	frame := make([]byte, 0, VarIntSize(int32(len(inner)))+len(inner))
	frame = AppendVarInt(frame, int32(len(inner)))
	return append(frame, inner...), nil
}

// ReadFrame reads one outer frame from r, undoes compression when enabled,
// and splits off the packet ID. It blocks until the whole frame arrives; a
// stream closed mid-frame yields io.ErrUnexpectedEOF.
//
// The decompressed length announced inside a compressed frame is advisory
// and is not checked against the inflated size; the inflated payload is
// capped at MaxPacketSize.
func ReadFrame(r FrameReader, c Compression) (Packet, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return Packet{}, fmt.Errorf("failed to read frame length: %w", err)
	}
	if uint32(length) > MaxFrameSize {
		return Packet{}, fmt.Errorf("%d bytes (max %d): %w", uint32(length), MaxFrameSize, ErrFrameTooLarge)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, fmt.Errorf("failed to read frame body (%d bytes): %w", length, err)
	}

	payload := body
	if c.Enabled {
		dataLen, n, err := DecodeVarInt(body)
		if err != nil {
			return Packet{}, fmt.Errorf("failed to read data length: %w", err)
		}

		payload = body[n:]
		if dataLen != 0 {
			payload, err = inflate(payload)
			if err != nil {
				return Packet{}, err
			}
		}
	}

	id, n, err := DecodeVarInt(payload)
	if err != nil {
		return Packet{}, fmt.Errorf("failed to read packet id: %w", err)
	}
	return Packet{ID: id, Data: payload[n:]}, nil
}

func inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed payload: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, MaxPacketSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	if len(data) > MaxPacketSize {
		return nil, fmt.Errorf("inflated payload exceeds %d bytes: %w", MaxPacketSize, ErrFrameTooLarge)
	}
	return data, nil
}
