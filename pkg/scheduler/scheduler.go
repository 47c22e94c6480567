// Package scheduler ticks a minor refresh at wall-clock minute boundaries.
// It is hand-rolled against stdlib time.Timer rather than a cron library,
// re-arming itself each tick to the next boundary.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flapboard/contentcore/pkg/throttlelog"
)

// Tick is invoked once per minute boundary. Overlap is prevented: if the
// previous Tick call has not returned, the next boundary is skipped.
type Tick func(ctx context.Context)

// Scheduler fires Tick at each minute boundary.
type Scheduler struct {
	tick   Tick
	log    *throttlelog.Logger
	inFlight atomic.Bool

	stop chan struct{}
	done chan struct{}
}

// New builds a Scheduler. It does not start until Start is called.
func New(tick Tick, log *throttlelog.Logger) *Scheduler {
	return &Scheduler{tick: tick, log: log, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start runs the scheduler loop until ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop halts the scheduler and waits for the loop goroutine to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(untilNextMinute(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-timer.C:
			s.fire(ctx, now)
			timer.Reset(untilNextMinute(time.Now()))
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, now time.Time) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Warn("scheduler.overlap_skipped", "previous minor refresh still in flight, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	s.tick(ctx)
}

func untilNextMinute(from time.Time) time.Duration {
	next := from.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(from)
}
