// Package stats aggregates session events into fleet-wide counters.
package stats

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clankers-project/clankers/internal/events"
)

// Collector counts session events. Subscribe it to a bus with Attach.
type Collector struct {
	startedAt time.Time

	connecting atomic.Int64
	joined     atomic.Int64
	failed     atomic.Int64
	playing    atomic.Int64

	mu       sync.Mutex
	byClass  map[string]int64
	byStage  map[string]int64
	lastFail *events.SessionPayload
}

// ClassCount is the number of failures with one error class.
type ClassCount struct {
	Class string `json:"class"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	StartedAt   time.Time              `json:"started_at"`
	Uptime      time.Duration          `json:"uptime_ns"`
	Connecting  int64                  `json:"connect_attempts"`
	Joined      int64                  `json:"joined"`
	Failed      int64                  `json:"failed"`
	Playing     int64                  `json:"playing"`
	FailedBy    []ClassCount           `json:"failed_by_class"`
	FailedStage map[string]int64       `json:"failed_by_stage"`
	LastFailure *events.SessionPayload `json:"last_failure,omitempty"`
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		startedAt: time.Now(),
		byClass:   make(map[string]int64),
		byStage:   make(map[string]int64),
	}
}

// Attach subscribes the collector to every session event.
func (c *Collector) Attach(bus *events.EventBus) {
	bus.SubscribeAll(events.SessionTypes, "stats", c.Handle)
}

// Handle applies one event. It matches events.HandlerFunc.
func (c *Collector) Handle(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.EventSessionConnecting:
		c.connecting.Add(1)
	case events.EventSessionJoined:
		c.joined.Add(1)
		c.playing.Add(1)
	case events.EventSessionFailed:
		c.failed.Add(1)
		p, ok := e.Payload.(events.SessionPayload)
		if !ok {
			return nil
		}
		if p.Stage == events.StagePlay {
			c.playing.Add(-1)
		}

		c.mu.Lock()
		c.byClass[p.ErrClass]++
		c.byStage[p.Stage.String()]++
		c.lastFail = &p
		c.mu.Unlock()
	}
	return nil
}

// Snapshot returns the current counters. Failure classes are ordered by
// count, most frequent first.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		StartedAt:  c.startedAt,
		Uptime:     time.Since(c.startedAt),
		Connecting: c.connecting.Load(),
		Joined:     c.joined.Load(),
		Failed:     c.failed.Load(),
		// A slot's failure may be handled before its join.
		Playing: max(0, c.playing.Load()),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s.FailedBy = make([]ClassCount, 0, len(c.byClass))
	for class, n := range c.byClass {
		s.FailedBy = append(s.FailedBy, ClassCount{Class: class, Count: n})
	}
	sort.Slice(s.FailedBy, func(i, j int) bool {
		if s.FailedBy[i].Count != s.FailedBy[j].Count {
			return s.FailedBy[i].Count > s.FailedBy[j].Count
		}
		return s.FailedBy[i].Class < s.FailedBy[j].Class
	})

	s.FailedStage = make(map[string]int64, len(c.byStage))
	for stage, n := range c.byStage {
		s.FailedStage[stage] = n
	}
	if c.lastFail != nil {
		last := *c.lastFail
		s.LastFailure = &last
	}
	return s
}
