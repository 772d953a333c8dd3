// Package scheduler runs periodic maintenance jobs next to the HTTP server.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/pkg/helpers"
)

// Sweeper lifts expired freezes; FreezeService satisfies it
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// FreezeSweeper calls SweepExpired on a fixed interval until stopped
type FreezeSweeper struct {
	sweeper  Sweeper
	interval time.Duration
	clock    helpers.Clock
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFreezeSweeper creates a sweeper; a nil clock uses the system clock
func NewFreezeSweeper(sweeper Sweeper, interval time.Duration, clock helpers.Clock, logger zerolog.Logger) *FreezeSweeper {
	if clock == nil {
		clock = helpers.SystemClock
	}
	return &FreezeSweeper{
		sweeper:  sweeper,
		interval: interval,
		clock:    clock,
		logger:   logger.With().Str("component", "freeze-sweeper").Logger(),
	}
}

// RunOnce performs a single sweep and logs failures
func (s *FreezeSweeper) RunOnce(ctx context.Context) int {
	n, err := s.sweeper.SweepExpired(ctx, s.clock())
	if err != nil {
		s.logger.Error().Err(err).Msg("Freeze sweep failed")
		return 0
	}
	return n
}

// Run sweeps once immediately, then on every tick, until ctx is cancelled
func (s *FreezeSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("Freeze sweeper started")
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Freeze sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Start runs the sweeper on its own goroutine
func (s *FreezeSweeper) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Stop cancels the loop and waits for the in-flight sweep to finish
func (s *FreezeSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
