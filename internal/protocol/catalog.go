package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// chatChecksum is the trailing checksum byte accepted by unsigned chat.
const chatChecksum byte = 0x01

// SplitAddress splits "host:port" at the last colon.
func SplitAddress(addr string) (string, uint16, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return "", 0, fmt.Errorf("%q has no port: %w", addr, ErrInvalidAddress)
	}

	port, err := strconv.ParseUint(addr[i+1:], 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("%q has a bad port: %w", addr, ErrInvalidAddress)
	}
	return addr[:i], uint16(port), nil
}

// BuildHandshake creates the handshake packet announcing a login.
// Format: [id][protocol:varint][host:string][port:2][intent:varint]
func BuildHandshake(addr string) ([]byte, error) {
	host, port, err := SplitAddress(addr)
	if err != nil {
		return nil, err
	}

	return NewPacketBuilder(PktHandshake).
		WriteVarInt(ProtocolVersion).
		WriteString(host).
		WriteUint16(port).
		WriteVarInt(HandshakeLoginIntent).
		Build(), nil
}

// BuildLoginStart creates the login start packet.
// Format: [id][name:string][uuid:16]
func BuildLoginStart(name string, id uuid.UUID) []byte {
	return NewPacketBuilder(PktLoginStart).
		WriteString(name).
		WriteUUID(id).
		Build()
}

// BuildLoginAcknowledged creates the empty login acknowledged packet.
func BuildLoginAcknowledged() []byte {
	return NewPacketBuilder(PktLoginAcknowledged).Build()
}

// BuildServerboundKnownPacks echoes the server's known packs back, claiming
// the client already has every pack it listed.
func BuildServerboundKnownPacks(clientbound []byte) []byte {
	return NewPacketBuilder(PktServerboundKnownPacks).
		WriteBytes(clientbound).
		Build()
}

// BuildAckFinishConfiguration creates the empty finish configuration acknowledgment.
func BuildAckFinishConfiguration() []byte {
	return NewPacketBuilder(PktAckFinishConfiguration).Build()
}

// BuildConfirmTeleportation confirms the teleport announced in a
// synchronize-player-position body.
func BuildConfirmTeleportation(syncPosition []byte) ([]byte, error) {
	teleportID, err := ParseTeleportID(syncPosition)
	if err != nil {
		return nil, err
	}

	return NewPacketBuilder(PktConfirmTeleportation).
		WriteVarInt(teleportID).
		Build(), nil
}

// BuildPlayerLoaded creates the empty player loaded packet.
func BuildPlayerLoaded() []byte {
	return NewPacketBuilder(PktPlayerLoaded).Build()
}

// BuildKeepAlive echoes a clientbound keep-alive body.
func BuildKeepAlive(clientbound []byte) []byte {
	return NewPacketBuilder(PktServerboundKeepAlive).
		WriteBytes(clientbound).
		Build()
}

// BuildChatMessage creates an unsigned chat message sent at now.
// Format: [id][message:string][timestamp:8][salt:8][has_signature:1]
//
//	[ack_offset:varint][ack_bitset:3][checksum:1]
func BuildChatMessage(message string, now time.Time) []byte {
	return NewPacketBuilder(PktChatMessage).
		WriteString(message).
		WriteInt64(now.UnixMilli()).
		WriteInt64(0).
		WriteUint8(0).
		WriteVarInt(0).
		WriteBytes([]byte{0, 0, 0}).
		WriteUint8(chatChecksum).
		Build()
}
