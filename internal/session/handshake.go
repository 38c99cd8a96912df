// Package session drives one clanker over an established connection: the
// login handshake up to the first chunk, then the play loops that keep it
// alive and flood chat.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clankers-project/clankers/internal/protocol"
)

var (
	// ErrEncryptionUnsupported is returned when the server asks for an
	// encrypted session. Online-mode servers cannot be joined.
	ErrEncryptionUnsupported = errors.New("server requested encryption, which is not supported")

	// ErrDisconnected is returned when the server kicks the clanker.
	ErrDisconnected = errors.New("disconnected by server")
)

// Conn is the packet-level connection a session runs on. The network
// package's Connection implements it.
type Conn interface {
	Name() string
	ReadPacket() (protocol.Packet, error)
	WritePacket(payload []byte) error
	EnableCompression(threshold int32) bool
	Close() error
}

// State is a phase of the login handshake.
type State int

const (
	StateHello State = iota
	StateConfiguration
	StateGame
)

func (s State) String() string {
	switch s {
	case StateHello:
		return "hello"
	case StateConfiguration:
		return "configuration"
	case StateGame:
		return "game"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// UnexpectedPacketError reports a packet the hello phase does not expect.
type UnexpectedPacketError struct {
	State State
	ID    int32
}

func (e *UnexpectedPacketError) Error() string {
	return fmt.Sprintf("unexpected packet 0x%02X in %s state", e.ID, e.State)
}

// Join performs the handshake for conn against the server at addr and
// returns once the world has started loading. Reads have no timeout: a
// server that goes quiet stalls Join until conn is closed.
func Join(ctx context.Context, conn Conn, addr string) error {
	logger := zerolog.Ctx(ctx)

	handshake, err := protocol.BuildHandshake(addr)
	if err != nil {
		return err
	}
	if err := conn.WritePacket(handshake); err != nil {
		return fmt.Errorf("failed to send handshake: %w", err)
	}

	name := conn.Name()
	if err := conn.WritePacket(protocol.BuildLoginStart(name, protocol.OfflineUUID(name))); err != nil {
		return fmt.Errorf("failed to send login start: %w", err)
	}

	state := StateHello
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := conn.ReadPacket()
		if err != nil {
			return fmt.Errorf("failed to read packet in %s state: %w", state, err)
		}

		var done bool
		switch state {
		case StateHello:
			state, err = handleHello(conn, pkt, logger)
		case StateConfiguration:
			state, err = handleConfiguration(conn, pkt)
		case StateGame:
			done, err = handleGame(conn, pkt)
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func handleHello(conn Conn, pkt protocol.Packet, logger *zerolog.Logger) (State, error) {
	switch pkt.ID {
	case protocol.PktSetCompression:
		threshold, err := protocol.ParseSetCompression(pkt.Data)
		if err != nil {
			return StateHello, err
		}
		if conn.EnableCompression(threshold) {
			logger.Debug().Int32("threshold", threshold).Msg("compression enabled")
		}
		return StateHello, nil

	case protocol.PktLoginSuccess:
		if err := conn.WritePacket(protocol.BuildLoginAcknowledged()); err != nil {
			return StateHello, fmt.Errorf("failed to acknowledge login: %w", err)
		}
		logger.Debug().Msg("login succeeded")
		return StateConfiguration, nil

	case protocol.PktSetEncryption:
		return StateHello, ErrEncryptionUnsupported

	default:
		return StateHello, &UnexpectedPacketError{State: StateHello, ID: pkt.ID}
	}
}

func handleConfiguration(conn Conn, pkt protocol.Packet) (State, error) {
	switch pkt.ID {
	case protocol.PktClientboundKnownPacks:
		if err := conn.WritePacket(protocol.BuildServerboundKnownPacks(pkt.Data)); err != nil {
			return StateConfiguration, fmt.Errorf("failed to send known packs: %w", err)
		}
	case protocol.PktFinishConfiguration:
		if err := conn.WritePacket(protocol.BuildAckFinishConfiguration()); err != nil {
			return StateConfiguration, fmt.Errorf("failed to acknowledge configuration: %w", err)
		}
	case protocol.PktLoginPlay:
		return StateGame, nil
	}
	return StateConfiguration, nil
}

func handleGame(conn Conn, pkt protocol.Packet) (bool, error) {
	switch pkt.ID {
	case protocol.PktSynchronizePlayerPosition:
		return false, confirmTeleport(conn, pkt.Data)
	case protocol.PktChunkDataAndUpdateLight:
		if err := conn.WritePacket(protocol.BuildPlayerLoaded()); err != nil {
			return false, fmt.Errorf("failed to send player loaded: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func confirmTeleport(conn Conn, syncPosition []byte) error {
	confirm, err := protocol.BuildConfirmTeleportation(syncPosition)
	if err != nil {
		return err
	}
	if err := conn.WritePacket(confirm); err != nil {
		return fmt.Errorf("failed to confirm teleport: %w", err)
	}
	return nil
}
