// Package network owns the client side of a game connection: framed packet
// I/O over one TCP stream, the per-connection compression state and a
// registry of the connections the fleet currently holds.
package network

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clankers-project/clankers/internal/protocol"
)

// ErrClosed is returned by WritePacket after Close.
var ErrClosed = errors.New("connection is closed")

// Connection wraps a TCP connection to the destination server.
//
// The inbound side is read by exactly one goroutine at a time. The outbound
// side may be shared: WritePacket holds writeMu across encoding and the
// single Write of a frame, so frames from concurrent senders never interleave.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	name   string
	logger zerolog.Logger

	writeMu sync.Mutex

	stateMu     sync.RWMutex
	compression protocol.Compression

	connectedAt  time.Time
	lastActivity atomic.Int64

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// NewConnection wraps an established net.Conn for the clanker called name.
func NewConnection(conn net.Conn, name string) *Connection {
	now := time.Now()
	c := &Connection{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		name:        name,
		connectedAt: now,
		logger: log.With().
			Str("component", "connection").
			Str("clanker", name).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

// Name returns the display name of the clanker using this connection.
func (c *Connection) Name() string {
	return c.name
}

// Logger returns the connection-scoped logger.
func (c *Connection) Logger() *zerolog.Logger {
	return &c.logger
}

// EnableCompression turns compression on with the given threshold. A
// negative threshold means the server wants compression off; the state is
// left untouched and false is returned. Once enabled, compression stays on.
func (c *Connection) EnableCompression(threshold int32) bool {
	if threshold < 0 {
		return false
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.compression = protocol.Compression{Enabled: true, Threshold: int(threshold)}
	return true
}

// Compression returns a snapshot of the compression state.
func (c *Connection) Compression() protocol.Compression {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.compression
}

// ReadPacket blocks until a whole packet arrives. There is no read timeout.
func (c *Connection) ReadPacket() (protocol.Packet, error) {
	pkt, err := protocol.ReadFrame(c.reader, c.Compression())
	if err != nil {
		return protocol.Packet{}, err
	}

	c.lastActivity.Store(time.Now().UnixNano())
	return pkt, nil
}

// WritePacket frames payload (packet ID first) under the current compression
// state and sends it with a single Write.
func (c *Connection) WritePacket(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}

	frame, err := protocol.EncodeFrame(payload, c.Compression())
	if err != nil {
		return err
	}

	n, err := c.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	if n < len(frame) {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(frame), io.ErrShortWrite)
	}

	c.lastActivity.Store(time.Now().UnixNano())
	return nil
}

// Close closes the underlying socket. It is safe to call more than once and
// from any goroutine; a reader blocked in ReadPacket returns with an error.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
		c.logger.Debug().Msg("connection closed")
	})
	return c.closeErr
}

// IsClosed returns whether Close has been called.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// LastActivity returns the time of the last completed read or write.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// ConnectedAt returns the time the connection was wrapped.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
