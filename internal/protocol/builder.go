package protocol

import "github.com/google/uuid"

// PacketBuilder constructs a packet payload, packet identifier first.
type PacketBuilder struct {
	buf []byte
}

// NewPacketBuilder creates a builder whose payload starts with the given packet ID.
func NewPacketBuilder(id int32) *PacketBuilder {
	b := &PacketBuilder{buf: make([]byte, 0, 64)}
	return b.WriteVarInt(id)
}

// WriteUint8 writes a single byte.
func (b *PacketBuilder) WriteUint8(v byte) *PacketBuilder {
	b.buf = append(b.buf, v)
	return b
}

// WriteVarInt writes a varint.
func (b *PacketBuilder) WriteVarInt(v int32) *PacketBuilder {
	b.buf = AppendVarInt(b.buf, v)
	return b
}

// WriteUint16 writes a big-endian uint16.
func (b *PacketBuilder) WriteUint16(v uint16) *PacketBuilder {
	b.buf = AppendUint16(b.buf, v)
	return b
}

// WriteInt64 writes a big-endian int64.
func (b *PacketBuilder) WriteInt64(v int64) *PacketBuilder {
	b.buf = AppendInt64(b.buf, v)
	return b
}

// WriteString writes a varint length-prefixed string.
// Format: [length:varint][utf-8 bytes...]
func (b *PacketBuilder) WriteString(s string) *PacketBuilder {
	b.buf = AppendString(b.buf, s)
	return b
}

// WriteUUID writes the 16 raw bytes of id.
func (b *PacketBuilder) WriteUUID(id uuid.UUID) *PacketBuilder {
	b.buf = append(b.buf, id[:]...)
	return b
}

// WriteBytes writes raw bytes.
func (b *PacketBuilder) WriteBytes(data []byte) *PacketBuilder {
	b.buf = append(b.buf, data...)
	return b
}

// Build returns the constructed payload.
func (b *PacketBuilder) Build() []byte {
	return b.buf
}
