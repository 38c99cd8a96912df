package protocol

import "fmt"

// PacketReader walks the body of an inbound packet. It never infers a
// length: every read consumes exactly what the field declares.
type PacketReader struct {
	buf []byte
	off int
}

// NewPacketReader creates a reader over a packet body.
func NewPacketReader(data []byte) *PacketReader {
	return &PacketReader{buf: data}
}

// ReadVarInt reads the next varint.
func (r *PacketReader) ReadVarInt() (int32, error) {
	v, n, err := DecodeVarInt(r.buf[r.off:])
	if err != nil {
		return 0, err
	}
	r.off += n
	return v, nil
}

// ParseSetCompression returns the threshold announced by a set-compression packet.
func ParseSetCompression(data []byte) (int32, error) {
	threshold, err := NewPacketReader(data).ReadVarInt()
	if err != nil {
		return 0, fmt.Errorf("failed to parse compression threshold: %w", err)
	}
	return threshold, nil
}

// ParseTeleportID returns the teleport id leading a synchronize-player-position packet.
func ParseTeleportID(data []byte) (int32, error) {
	id, err := NewPacketReader(data).ReadVarInt()
	if err != nil {
		return 0, fmt.Errorf("failed to parse teleport id: %w", err)
	}
	return id, nil
}
