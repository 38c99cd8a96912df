package network

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clankers-project/clankers/internal/protocol"
)

// fakeConn serves scripted inbound bytes and records outbound bytes. With
// trickle set it stores writes one byte at a time, yielding in between, so
// unserialized writers would interleave.
type fakeConn struct {
	net.Conn

	in      io.Reader
	trickle bool
	short   bool

	mu     sync.Mutex
	out    []byte
	closed int
}

func (c *fakeConn) Read(p []byte) (int, error) { return c.in.Read(p) }

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.short {
		return len(p) - 1, nil
	}
	if !c.trickle {
		c.mu.Lock()
		c.out = append(c.out, p...)
		c.mu.Unlock()
		return len(p), nil
	}
	for _, b := range p {
		c.mu.Lock()
		c.out = append(c.out, b)
		c.mu.Unlock()
		runtime.Gosched()
	}
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 25565}
}

func (c *fakeConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.out...)
}

func newFake(inbound []byte) *fakeConn {
	return &fakeConn{in: bytes.NewReader(inbound)}
}

func TestWritePacketUncompressed(t *testing.T) {
	t.Parallel()

	fc := newFake(nil)
	conn := NewConnection(fc, "clanker")

	require.NoError(t, conn.WritePacket(protocol.BuildLoginAcknowledged()))
	assert.Equal(t, []byte{0x01, 0x03}, fc.written())
}

func TestEnableCompression(t *testing.T) {
	t.Parallel()

	conn := NewConnection(newFake(nil), "clanker")
	assert.False(t, conn.Compression().Enabled)

	assert.False(t, conn.EnableCompression(-1), "negative threshold keeps compression off")
	assert.False(t, conn.Compression().Enabled)

	assert.True(t, conn.EnableCompression(256))
	assert.Equal(t, protocol.Compression{Enabled: true, Threshold: 256}, conn.Compression())

	assert.False(t, conn.EnableCompression(-1))
	assert.True(t, conn.Compression().Enabled, "compression never reverts")
}

func TestWritePacketUsesCompressionState(t *testing.T) {
	t.Parallel()

	fc := newFake(nil)
	conn := NewConnection(fc, "clanker")
	conn.EnableCompression(256)

	require.NoError(t, conn.WritePacket(protocol.BuildPlayerLoaded()))
	assert.Equal(t, []byte{0x02, 0x00, 0x2B}, fc.written())
}

func TestReadPacket(t *testing.T) {
	t.Parallel()

	var inbound []byte
	frame, err := protocol.EncodeFrame([]byte{byte(protocol.PktSetCompression), 0x80, 0x02}, protocol.Compression{})
	require.NoError(t, err)
	inbound = append(inbound, frame...)

	compressed := protocol.Compression{Enabled: true, Threshold: 4}
	frame, err = protocol.EncodeFrame(protocol.BuildKeepAlive(make([]byte, 8)), compressed)
	require.NoError(t, err)
	inbound = append(inbound, frame...)

	conn := NewConnection(newFake(inbound), "clanker")

	pkt, err := conn.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, protocol.PktSetCompression, pkt.ID)

	threshold, err := protocol.ParseSetCompression(pkt.Data)
	require.NoError(t, err)
	assert.True(t, conn.EnableCompression(threshold))

	pkt, err = conn.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, protocol.PktServerboundKeepAlive, pkt.ID)
	assert.Len(t, pkt.Data, 8)

	_, err = conn.ReadPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWritePacketShortWrite(t *testing.T) {
	t.Parallel()

	fc := newFake(nil)
	fc.short = true
	conn := NewConnection(fc, "clanker")

	err := conn.WritePacket(protocol.BuildPlayerLoaded())
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	fc := newFake(nil)
	conn := NewConnection(fc, "clanker")

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, fc.closed)
	assert.True(t, conn.IsClosed())

	err := conn.WritePacket(protocol.BuildPlayerLoaded())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentWritersNeverInterleave(t *testing.T) {
	t.Parallel()

	fc := newFake(nil)
	fc.trickle = true
	conn := NewConnection(fc, "clanker")
	conn.EnableCompression(32)

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				msg := fmt.Sprintf("writer %d message %d %s", w, i, bytes.Repeat([]byte{'x'}, w*10))
				assert.NoError(t, conn.WritePacket(protocol.BuildKeepAlive([]byte(msg))))
			}
		}(w)
	}
	wg.Wait()

	r := bufio.NewReader(bytes.NewReader(fc.written()))
	seen := make(map[string]bool)
	for {
		pkt, err := protocol.ReadFrame(r, conn.Compression())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, protocol.PktServerboundKeepAlive, pkt.ID)
		seen[string(pkt.Data)] = true
	}
	assert.Len(t, seen, writers*perWriter)
}
