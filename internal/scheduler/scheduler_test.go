package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/logger"
)

func TestGateBoundsAdmission(t *testing.T) {
	g := NewGate(2)

	assert.True(t, g.TryAcquire())
	assert.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire(), "third worker is rejected, not queued")
	assert.Equal(t, 2, g.Running())

	g.Release()
	assert.True(t, g.TryAcquire())
}

func TestGateReleaseOnEmptyIsHarmless(t *testing.T) {
	g := NewGate(1)
	g.Release()
	assert.Equal(t, 0, g.Running())
	assert.True(t, g.TryAcquire())
}

func TestSchedulerRejectsBeyondLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(NewGate(1), logger.NewNop())
	block := make(chan struct{})
	started := s.Start(ctx, "first", time.Hour, 0, func(context.Context) error {
		<-block
		return nil
	})
	require.True(t, started)

	assert.False(t, s.Start(ctx, "second", time.Hour, 0, func(context.Context) error {
		return nil
	}), "admission limit reached")

	close(block)
	cancel()
	s.Wait()
}

func TestSchedulerRunsImmediatelyThenOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s := New(NewGate(1), logger.NewNop())
	s.Start(ctx, "ticker", 10*time.Millisecond, 0, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestSchedulerSurvivesErrorsAndPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s := New(NewGate(1), logger.NewNop())
	s.Start(ctx, "flaky", 5*time.Millisecond, 0, func(context.Context) error {
		n := runs.Add(1)
		switch n {
		case 1:
			return errors.New("iteration failed")
		case 2:
			panic("iteration panicked")
		}
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestSchedulerSingleFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	s := New(NewGate(1), logger.NewNop())
	s.Start(ctx, "slow", time.Millisecond, 0, func(context.Context) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxInFlight, "iterations never overlap")
}

func TestSchedulerReleasesSlotOnExit(t *testing.T) {
	gate := NewGate(1)
	s := New(gate, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.Start(ctx, "loop", time.Hour, 0, func(context.Context) error {
		return nil
	}))
	cancel()
	s.Wait()

	assert.Equal(t, 0, gate.Running())
	assert.True(t, gate.TryAcquire())
}
