// Package scheduler runs the bounded set of background polling loops.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Gate is the admission controller for background workers: a counting gate
// that rejects immediately instead of queueing, so repeated start requests
// (restarts, redeploys) can never accumulate loops past the bound.
type Gate struct {
	slots chan struct{}
}

func NewGate(max int) *Gate {
	if max <= 0 {
		max = 1
	}
	return &Gate{slots: make(chan struct{}, max)}
}

// TryAcquire claims a worker slot without blocking.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a previously acquired slot.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
	}
}

// Running reports the number of currently admitted workers.
func (g *Gate) Running() int {
	return len(g.slots)
}

// Scheduler starts named periodic tasks behind the gate. Each task is
// single-flight with respect to itself: one iteration finishes (or fails)
// before the next is scheduled.
type Scheduler struct {
	gate *Gate
	log  *zap.SugaredLogger
	wg   sync.WaitGroup
}

func New(gate *Gate, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{gate: gate, log: log}
}

// Start admits one worker and runs fn immediately, then on every interval
// (plus up to jitter of random delay) until ctx is cancelled. It returns
// false when the admission gate is full; the caller logs and proceeds
// without the worker.
func (s *Scheduler) Start(ctx context.Context, name string, interval, jitter time.Duration, fn func(context.Context) error) bool {
	if !s.gate.TryAcquire() {
		s.log.Warnw("worker rejected: admission limit reached", "worker", name)
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.gate.Release()
		s.log.Infow("worker started", "worker", name, "interval", interval)
		s.runLoop(ctx, name, interval, jitter, fn)
		s.log.Infow("worker stopped", "worker", name)
	}()
	return true
}

// Wait blocks until every admitted worker has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval, jitter time.Duration, fn func(context.Context) error) {
	for {
		s.runOnce(ctx, name, fn)

		delay := interval
		if jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(jitter)))
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runOnce contains one iteration's failure at the loop boundary. Errors and
// panics are logged, never allowed to kill the loop; the next scheduled poll
// is the retry.
func (s *Scheduler) runOnce(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("worker iteration panicked", "worker", name, "panic", r)
		}
	}()
	if ctx.Err() != nil {
		return
	}
	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warnw("worker iteration failed", "worker", name, "err", err)
	}
}
