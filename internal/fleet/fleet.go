package fleet

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rbmk-project/common/errclass"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/clankers-project/clankers/internal/events"
	"github.com/clankers-project/clankers/internal/network"
	"github.com/clankers-project/clankers/internal/session"
)

const eventSource = "fleet"

// Config is what the fleet needs to know about its target.
type Config struct {
	Destination     string
	Sessions        int
	MessageInterval time.Duration
}

// Dialer opens connections to the destination. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option customizes a Fleet.
type Option func(*Fleet)

// WithDialer replaces the default TCP dialer.
func WithDialer(d Dialer) Option {
	return func(f *Fleet) { f.dialer = d }
}

// Fleet runs one retry-forever loop per slot.
type Fleet struct {
	cfg      Config
	names    *NamePool
	messages *MessagePool
	bus      *events.EventBus
	registry *network.ConnectionRegistry
	dialer   Dialer
	logger   zerolog.Logger
}

// New creates a fleet. The registry receives every live connection so the
// status surfaces can list them and shutdown can close them.
func New(cfg Config, names *NamePool, messages *MessagePool, bus *events.EventBus, registry *network.ConnectionRegistry, opts ...Option) *Fleet {
	f := &Fleet{
		cfg:      cfg,
		names:    names,
		messages: messages,
		bus:      bus,
		registry: registry,
		dialer:   &net.Dialer{},
		logger:   log.With().Str("component", "fleet").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run starts every slot and blocks until ctx is cancelled. Session failures
// never end Run; each slot logs them and immediately retries with a new name.
func (f *Fleet) Run(ctx context.Context) error {
	f.logger.Info().
		Str("destination", f.cfg.Destination).
		Int("clankers", f.cfg.Sessions).
		Dur("message_interval", f.cfg.MessageInterval).
		Bool("random_names", f.names.Random()).
		Msg("fleet starting")

	// fleet_started is handled before any session event; fleet_stopped
	// before Run returns.
	f.emitLifecycle(ctx, events.EventFleetStarted)

	g, gctx := errgroup.WithContext(ctx)
	for slot := 0; slot < f.cfg.Sessions; slot++ {
		g.Go(func() error {
			f.runSlot(gctx, slot)
			return nil
		})
	}

	err := g.Wait()
	f.registry.CloseAll()

	f.emitLifecycle(context.Background(), events.EventFleetStopped)
	f.logger.Info().Msg("fleet stopped")
	return err
}

func (f *Fleet) runSlot(ctx context.Context, slot int) {
	for ctx.Err() == nil {
		name := f.names.Next()

		stage, err := f.runSession(ctx, slot, name)
		if ctx.Err() != nil {
			return
		}

		class := errclass.New(err)
		f.logger.Warn().
			Err(err).
			Str("err_class", class).
			Str("clanker", name).
			Int("slot", slot).
			Stringer("stage", stage).
			Msgf("clanker '%s' died", name)

		f.emit(ctx, events.EventSessionFailed, events.SessionPayload{
			Slot:     slot,
			Name:     name,
			Remote:   f.cfg.Destination,
			Stage:    stage,
			Error:    errString(err),
			ErrClass: class,
		})
	}
}

// runSession drives one clanker from dial to death and reports the stage
// it reached.
func (f *Fleet) runSession(ctx context.Context, slot int, name string) (events.Stage, error) {
	payload := events.SessionPayload{Slot: slot, Name: name, Remote: f.cfg.Destination, Stage: events.StageDial}
	f.emit(ctx, events.EventSessionConnecting, payload)

	raw, err := f.dialer.DialContext(ctx, "tcp", f.cfg.Destination)
	if err != nil {
		return events.StageDial, fmt.Errorf("failed to connect to %s: %w", f.cfg.Destination, err)
	}

	conn := network.NewConnection(raw, name)
	f.registry.Register(slot, conn)
	defer f.registry.Unregister(slot)

	// Reads have no timeout; closing the socket is what stops a session on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sctx := conn.Logger().WithContext(ctx)

	if err := session.Join(sctx, conn, f.cfg.Destination); err != nil {
		return events.StageJoin, fmt.Errorf("failed to join: %w", err)
	}

	conn.Logger().Info().Msgf("clanker '%s' joined the game", name)
	payload.Stage = events.StagePlay
	f.emit(ctx, events.EventSessionJoined, payload)

	return events.StagePlay, session.Play(sctx, conn, f.messages, f.cfg.MessageInterval)
}

func (f *Fleet) emit(ctx context.Context, typ events.EventType, payload events.SessionPayload) {
	f.bus.Emit(ctx, events.Event{Type: typ, Source: eventSource, Payload: payload})
}

func (f *Fleet) emitLifecycle(ctx context.Context, typ events.EventType) {
	_ = f.bus.EmitSync(ctx, events.Event{
		Type:    typ,
		Source:  eventSource,
		Payload: events.FleetPayload{Destination: f.cfg.Destination, Sessions: f.cfg.Sessions},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
