package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clankers-project/clankers/internal/protocol"
)

// MessageSource hands out chat messages. It is called concurrently.
type MessageSource interface {
	Pick() string
}

// Play keeps a joined clanker alive and floods chat every interval until the
// server disconnects it or the connection fails.
//
// Two loops share conn: a passive loop that answers keep-alives and teleports,
// and an active loop that sends chat. When the passive loop exits, the active
// loop is cancelled, conn is closed and Play waits for the chat goroutine
// before returning the passive loop's error.
func Play(ctx context.Context, conn Conn, messages MessageSource, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		spam(ctx, conn, messages, interval)
	}()

	err := serve(ctx, conn)

	cancel()
	conn.Close()
	wg.Wait()
	return err
}

// serve is the passive loop.
func serve(ctx context.Context, conn Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := conn.ReadPacket()
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}

		switch pkt.ID {
		case protocol.PktSynchronizePlayerPosition:
			if err := confirmTeleport(conn, pkt.Data); err != nil {
				return err
			}
		case protocol.PktClientboundKeepAlive:
			if err := conn.WritePacket(protocol.BuildKeepAlive(pkt.Data)); err != nil {
				return fmt.Errorf("failed to answer keep-alive: %w", err)
			}
		case protocol.PktDisconnect:
			return fmt.Errorf("%w: %s", ErrDisconnected, disconnectReason(pkt.Data))
		}
	}
}

// spam is the active loop. A failed send ends it without touching the
// passive loop; a dead connection surfaces there on the next read.
func spam(ctx context.Context, conn Conn, messages MessageSource, interval time.Duration) {
	logger := zerolog.Ctx(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := conn.WritePacket(protocol.BuildChatMessage(messages.Pick(), now)); err != nil {
				if ctx.Err() == nil {
					logger.Warn().Err(err).Msg("failed to send chat message")
				}
				return
			}
		}
	}
}

// disconnectReason renders the kick reason when it is a plain string.
// Servers usually send a text component, which is reported by size only.
func disconnectReason(data []byte) string {
	if reason, n, err := protocol.DecodeString(data); err == nil && n == len(data) {
		return reason
	}
	return fmt.Sprintf("<%d byte reason>", len(data))
}
