package cli

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/clankers-project/clankers/internal/api"
	"github.com/clankers-project/clankers/internal/config"
	"github.com/clankers-project/clankers/internal/events"
	"github.com/clankers-project/clankers/internal/fleet"
	"github.com/clankers-project/clankers/internal/health"
	"github.com/clankers-project/clankers/internal/network"
	"github.com/clankers-project/clankers/internal/scheduler"
	"github.com/clankers-project/clankers/internal/stats"
	"github.com/clankers-project/clankers/internal/telemetry"
	"github.com/clankers-project/clankers/internal/util"
)

const (
	logRotateInterval   = 24 * time.Hour
	healthCheckInterval = time.Minute
)

// telemetryOptions are appended to the MQTT publisher options.
var telemetryOptions []telemetry.Option

// run loads and validates the configuration, then runs the fleet and its
// optional surfaces until ctx is cancelled.
func run(ctx context.Context, cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return invalidArguments(err)
	}

	result := config.Validate(cfg)
	if err := result.Err(); err != nil {
		return invalidArguments(err)
	}

	logFile, err := util.InitLogger(cfg.LogConfig())
	if err != nil {
		return runtimeError(err)
	}
	defer logFile.Close()

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	runtime.GOMAXPROCS(cfg.Threads)
	log.Info().Msgf("starting with %d threads", cfg.Threads)

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	names, messages, err := loadPools(cfg)
	if err != nil {
		return runtimeError(err)
	}

	bus := events.NewEventBus()
	collector := stats.NewCollector()
	collector.Attach(bus)
	registry := network.NewConnectionRegistry()

	f := fleet.New(fleet.Config{
		Destination:     cfg.Destination,
		Sessions:        cfg.Clankers,
		MessageInterval: cfg.MessageIntervalDuration(),
	}, names, messages, bus, registry)

	status := func() Status {
		st := Status{
			Destination: cfg.Destination,
			Clankers:    cfg.Clankers,
			Stats:       collector.Snapshot(),
			Sessions:    registry.Snapshot(),
		}
		if usage, err := util.GetProcessUsage(); err == nil {
			st.Usage = &usage
		}
		return st
	}

	sched := scheduler.NewScheduler()
	sched.Add(scheduler.Task{
		Name:  "status_report",
		Every: cfg.ReportIntervalDuration(),
		Run:   func(context.Context) { RenderStatus(cmd.OutOrStdout(), status()) },
	})
	sched.Add(scheduler.Task{
		Name:  "log_rotate",
		Every: logRotateInterval,
		Run: func(context.Context) {
			if err := logFile.Rotate(); err != nil {
				log.Warn().Err(err).Msg("failed to rotate log file")
			}
		},
	})

	healthMgr := health.NewManager(bus, collector, registry, cfg.Clankers, cfg.Logging.Directory)
	for _, task := range healthMgr.Tasks(healthCheckInterval) {
		sched.Add(task)
	}

	var publisher *telemetry.Publisher
	if cfg.MQTT.Broker != "" {
		opts := append([]telemetry.Option{
			telemetry.WithStatus(func() any { return collector.Snapshot() }, cfg.ReportIntervalDuration()),
		}, telemetryOptions...)
		publisher = telemetry.NewPublisher(cfg.MQTT, bus, opts...)
		if err := publisher.Connect(); err != nil {
			log.Warn().Err(err).Msg("MQTT telemetry failed, continuing without it")
			publisher = nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// Telemetry outlives the fleet so fleet_stopped still reaches the broker.
	tctx, stopTelemetry := context.WithCancel(context.WithoutCancel(ctx))
	defer stopTelemetry()

	g.Go(func() error {
		defer stopTelemetry()
		return f.Run(gctx)
	})
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})

	if cfg.API.Listen != "" {
		apiServer := api.NewServer(cfg, collector, registry)
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
	}

	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(tctx)
		})
	}

	err = g.Wait()
	bus.Stop()
	RenderStatus(cmd.OutOrStdout(), status())

	if err != nil && ctx.Err() == nil {
		return runtimeError(err)
	}
	log.Info().Msg("clankers stopped")
	return nil
}

// loadPools reads the list files. Without a name list every clanker gets a
// random name; a name list without names is an error.
func loadPools(cfg *config.Config) (*fleet.NamePool, *fleet.MessagePool, error) {
	var candidates []string
	if cfg.NameList != "" {
		lines, err := config.ReadLines(cfg.NameList)
		if err != nil {
			return nil, nil, err
		}
		if len(lines) == 0 {
			return nil, nil, fmt.Errorf("name list %s: %w", cfg.NameList, fleet.ErrNoNames)
		}
		candidates = lines
	}

	lines, err := config.ReadLines(cfg.MessageList)
	if err != nil {
		return nil, nil, err
	}
	messages, err := fleet.NewMessagePool(lines)
	if err != nil {
		return nil, nil, fmt.Errorf("message list %s: %w", cfg.MessageList, err)
	}

	log.Info().
		Int("names", len(candidates)).
		Int("messages", messages.Len()).
		Msg("lists loaded")

	return fleet.NewNamePool(candidates), messages, nil
}
