// Package health runs periodic checks on a fleet run and raises alerts on
// the event bus when the fleet stops making progress or the log disk fills.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clankers-project/clankers/internal/events"
	"github.com/clankers-project/clankers/internal/network"
	"github.com/clankers-project/clankers/internal/scheduler"
	"github.com/clankers-project/clankers/internal/stats"
	"github.com/clankers-project/clankers/internal/util"
)

// Alert levels.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

const (
	CheckFleet = "fleet_progress"
	CheckDisk  = "disk_utilization"
)

// Manager runs the health checks of one fleet.
type Manager struct {
	eventBus *events.EventBus
	stats    *stats.Collector
	registry *network.ConnectionRegistry
	slots    int
	logDir   string
	logger   zerolog.Logger

	diskUsage func(path string) (*util.DiskUsage, error)

	mu   sync.Mutex
	last stats.Snapshot
}

// NewManager creates a health check manager for a fleet of slots clankers
// writing logs to logDir.
func NewManager(eventBus *events.EventBus, collector *stats.Collector, registry *network.ConnectionRegistry, slots int, logDir string) *Manager {
	return &Manager{
		eventBus:  eventBus,
		stats:     collector,
		registry:  registry,
		slots:     slots,
		logDir:    logDir,
		logger:    util.ComponentLogger("health"),
		diskUsage: util.GetDiskUsage,
	}
}

// Tasks returns the checks as scheduler tasks running every interval.
func (m *Manager) Tasks(every time.Duration) []scheduler.Task {
	return []scheduler.Task{
		{Name: CheckFleet, Every: every, Run: m.CheckFleet},
		{Name: CheckDisk, Every: every, Run: m.CheckDisk},
	}
}

// CheckFleet compares the counters with the previous check. Attempts
// without a single join mean the server rejects every clanker; fewer than
// half the slots connected means the fleet is mostly reconnecting.
func (m *Manager) CheckFleet(ctx context.Context) {
	snap := m.stats.Snapshot()

	m.mu.Lock()
	prev := m.last
	m.last = snap
	m.mu.Unlock()

	attempts := snap.Connecting - prev.Connecting
	joined := snap.Joined - prev.Joined
	connected := m.registry.Count()

	m.logger.Debug().
		Int64("attempts", attempts).
		Int64("joined", joined).
		Int("connected", connected).
		Msg("fleet progress")

	switch {
	case attempts > 0 && joined == 0:
		msg := fmt.Sprintf("no clanker joined since the last check (%d attempts)", attempts)
		if len(snap.FailedBy) > 0 {
			msg += fmt.Sprintf(", most failures are %s", snap.FailedBy[0].Class)
		}
		m.alert(ctx, CheckFleet, LevelError, msg)
	case connected*2 < m.slots:
		m.alert(ctx, CheckFleet, LevelWarning,
			fmt.Sprintf("only %d of %d clankers are connected", connected, m.slots))
	}
}

// CheckDisk monitors the filesystem holding the log directory and alerts
// at 80, 90, 95 and 100 percent.
func (m *Manager) CheckDisk(ctx context.Context) {
	usage, err := m.diskUsage(m.logDir)
	if err != nil {
		m.logger.Warn().Err(err).Msg("disk utilization check failed")
		return
	}

	m.logger.Debug().
		Float64("used_percent", usage.UsedPercent).
		Uint64("free_gb", usage.Free).
		Msg("disk utilization")

	var level string
	switch {
	case usage.UsedPercent >= 100:
		level = LevelCritical
	case usage.UsedPercent >= 95:
		level = LevelError
	case usage.UsedPercent >= 90:
		level = LevelWarning
	case usage.UsedPercent >= 80:
		level = LevelInfo
	default:
		return
	}

	m.alert(ctx, CheckDisk, level, fmt.Sprintf("disk usage at %.1f%% (%d GB free of %d GB total)",
		usage.UsedPercent, usage.Free, usage.Total))
}

func (m *Manager) alert(ctx context.Context, check, level, message string) {
	m.logger.Warn().Str("check", check).Str("level", level).Msg(message)

	m.eventBus.Emit(ctx, events.Event{
		Type:    events.EventHealthAlert,
		Source:  "health_check",
		Payload: events.HealthPayload{Check: check, Level: level, Message: message},
	})
}
