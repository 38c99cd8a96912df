// Package protocol implements the binary wire format spoken by clankers:
// varint-framed packets, optional zlib compression, and the handful of
// packets needed to log in and stay in the play state. Fixed-width fields
// are big-endian; lengths and identifiers are varints.
package protocol

// ProtocolVersion is the numeric protocol version of the target server (1.21.11).
const ProtocolVersion int32 = 774

// HandshakeLoginIntent is the "next state" discriminator requesting login.
const HandshakeLoginIntent int32 = 2

// Serverbound packet identifiers.
const (
	PktHandshake              int32 = 0x00 // Handshaking
	PktLoginStart             int32 = 0x00 // Login
	PktLoginAcknowledged      int32 = 0x03 // Login
	PktServerboundKnownPacks  int32 = 0x07 // Configuration
	PktAckFinishConfiguration int32 = 0x03 // Configuration
	PktConfirmTeleportation   int32 = 0x00 // Play
	PktChatMessage            int32 = 0x08 // Play
	PktServerboundKeepAlive   int32 = 0x1B // Play
	PktPlayerLoaded           int32 = 0x2B // Play
)

// Clientbound packet identifiers.
const (
	PktSetEncryption             int32 = 0x01 // Login
	PktLoginSuccess              int32 = 0x02 // Login
	PktSetCompression            int32 = 0x03 // Login
	PktFinishConfiguration       int32 = 0x03 // Configuration
	PktClientboundKnownPacks     int32 = 0x0E // Configuration
	PktDisconnect                int32 = 0x20 // Play
	PktClientboundKeepAlive      int32 = 0x2B // Play
	PktChunkDataAndUpdateLight   int32 = 0x2C // Play
	PktLoginPlay                 int32 = 0x30 // Play
	PktSynchronizePlayerPosition int32 = 0x46 // Play
)

// MaxFrameSize is the largest outer frame accepted from the server (2 MiB).
const MaxFrameSize = 2 * 1024 * 1024

// MaxPacketSize is the largest payload a compressed frame may inflate to (8 MiB).
const MaxPacketSize = 8 * 1024 * 1024

// Packet is one decoded inbound packet: its identifier and the bytes after it.
type Packet struct {
	ID   int32
	Data []byte
}
