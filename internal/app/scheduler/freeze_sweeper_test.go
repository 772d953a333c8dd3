package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (c *countingSweeper) SweepExpired(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, now)
	if c.err != nil {
		return 0, c.err
	}
	return 1, nil
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestRunOnceUsesClock(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sw := &countingSweeper{}
	s := NewFreezeSweeper(sw, time.Minute, func() time.Time { return at }, zerolog.Nop())

	assert.Equal(t, 1, s.RunOnce(context.Background()))
	assert.Equal(t, []time.Time{at}, sw.calls)
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	s := NewFreezeSweeper(sw, time.Minute, nil, zerolog.Nop())

	assert.Zero(t, s.RunOnce(context.Background()))
}

func TestSweeperTicksUntilStopped(t *testing.T) {
	sw := &countingSweeper{}
	s := NewFreezeSweeper(sw, 5*time.Millisecond, nil, zerolog.Nop())

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return sw.count() >= 3 }, time.Second, time.Millisecond)

	s.Stop()
	stopped := sw.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, sw.count())

	s.Stop()
}

func TestSweeperStopsWithParentContext(t *testing.T) {
	sw := &countingSweeper{}
	s := NewFreezeSweeper(sw, time.Hour, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sw.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
