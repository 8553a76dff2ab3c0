// Package scheduler runs the three periodic loops that drive the relay:
// discovery, resolution and the artifact pipeline. Loops never block each
// other; all cross-loop coordination happens through the match store.
package scheduler

import (
	"context"
	"time"

	"github.com/avoronov/demorelay/internal/logging"
)

// Loop is one periodic task. Each loop fires immediately on start and then
// on every interval tick until the context is cancelled. A tick never
// overlaps with itself: the next tick of the same loop waits for the
// previous invocation to return.
type Loop struct {
	Name     string
	Interval time.Duration

	// Gate, when set, is consulted before every tick; a false result skips
	// the tick. Used to hold resolution back until the session is ready.
	Gate func() bool

	Run func(ctx context.Context)
}

type Scheduler struct {
	loops  []Loop
	logger logging.Logger
}

func New(logger logging.Logger, loops ...Loop) *Scheduler {
	return &Scheduler{
		loops:  loops,
		logger: logger.With("module", "scheduler"),
	}
}

// Start runs every loop in its own goroutine and returns immediately.
// Callers track shutdown through the context and their own WaitGroup.
func (s *Scheduler) Start(ctx context.Context, done func()) {
	for _, l := range s.loops {
		go func(l Loop) {
			defer done()
			s.run(ctx, l)
		}(l)
	}
}

func (s *Scheduler) run(ctx context.Context, l Loop) {
	s.logger.Info(ctx, "loop started", "loop", l.Name, "interval", l.Interval)

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	s.tick(ctx, l)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "loop stopped", "loop", l.Name)
			return
		case <-ticker.C:
			s.tick(ctx, l)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, l Loop) {
	if l.Gate != nil && !l.Gate() {
		s.logger.Debug(ctx, "tick skipped by gate", "loop", l.Name)
		return
	}
	l.Run(ctx)
}
