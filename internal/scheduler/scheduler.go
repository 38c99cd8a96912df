// Package scheduler runs periodic background tasks of a fleet run, such as
// status reports and log cleanup.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clankers-project/clankers/internal/util"
)

// Task is a named function run every Every. A Task with a non-positive
// interval is never run.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []Task
	logger zerolog.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{logger: util.ComponentLogger("scheduler")}
}

// Add registers a task. Tasks added after Start are not run.
func (s *Scheduler) Add(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Start runs every task on its own ticker and blocks until ctx is
// cancelled and all running tasks have returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, task := range tasks {
		if task.Every <= 0 {
			s.logger.Debug().Str("task", task.Name).Msg("task disabled")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, task)
		}()
	}

	s.logger.Info().Int("tasks", len(tasks)).Msg("scheduler started")
	<-ctx.Done()
	wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Every)
	defer ticker.Stop()

	s.logger.Debug().Str("task", task.Name).Dur("every", task.Every).Msg("task scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTask(ctx, task)
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("task", task.Name).Interface("panic", r).Msg("task panicked")
		}
	}()
	task.Run(ctx)
}
