package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FlushFunc refreshes a single repository.
type FlushFunc func(ctx context.Context, root string)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Window is how long a repository must be quiet before it is flushed.
	Window time.Duration

	// Tick is how often Pending is checked for expired repositories.
	Tick time.Duration

	// MaxConcurrent bounds the number of flushes running at once.
	MaxConcurrent int
}

// Scheduler periodically flushes the repositories in Pending whose debounce
// window has elapsed.
type Scheduler struct {
	pending *Pending
	clock   clockwork.Clock
	flush   FlushFunc
	config  SchedulerConfig
	log     log.FieldLogger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewScheduler returns a Scheduler draining pending into flush.
func NewScheduler(pending *Pending, clock clockwork.Clock, flush FlushFunc,
	config SchedulerConfig, logger log.FieldLogger) *Scheduler {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &Scheduler{
		pending:  pending,
		clock:    clock,
		flush:    flush,
		config:   config,
		log:      logger,
		inFlight: map[string]struct{}{},
	}
}

// Run blocks until ctx is cancelled, and then waits for the flushes that are
// still running. Repositories still in Pending are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	var group errgroup.Group
	group.SetLimit(s.config.MaxConcurrent)
	defer func() {
		// Flushes never return errors, so there's nothing to check.
		_ = group.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.config.Tick):
		}
		s.flushExpired(ctx, &group)
	}
}

// InFlight returns the number of flushes currently running.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) flushExpired(ctx context.Context, group *errgroup.Group) {
	now := s.clock.Now()
	// Readmitted repositories are backdated so that they are drained again on
	// the next tick rather than after another full window.
	readmitAt := now.Add(-s.config.Window)

	for _, root := range s.pending.DrainExpired(now, s.config.Window) {
		root := root
		if !s.markInFlight(root) {
			s.log.WithField("repo", root).Debug("Flush already running, will retry")
			s.pending.Readmit(root, readmitAt)
			continue
		}

		started := group.TryGo(func() error {
			defer s.clearInFlight(root)
			s.runFlush(ctx, root)
			return nil
		})
		if !started {
			s.clearInFlight(root)
			s.log.WithField("repo", root).Debug("Too many flushes running, will retry")
			s.pending.Readmit(root, readmitAt)
		}
	}
}

func (s *Scheduler) runFlush(ctx context.Context, root string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("repo", root).
				WithError(fmt.Errorf("%v", r)).
				Error("Flush panicked")
		}
	}()
	s.flush(ctx, root)
}

func (s *Scheduler) markInFlight(root string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[root]; ok {
		return false
	}
	s.inFlight[root] = struct{}{}
	return true
}

func (s *Scheduler) clearInFlight(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, root)
}
