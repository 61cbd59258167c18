// Package wake provides the tick sources that drive the engine: a recurring
// cadence for the scanner and optional one-shot timers for exact alarms.
package wake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/RexForge/quantum-habits/pkg/logx"
)

// Scheduler is what the engine needs from a wake source. Recurring drives the
// periodic scan; Once is the exact-alarm fast path and may be unsupported by
// an implementation (return ErrOnceUnsupported), in which case the scanner
// alone provides delivery.
type Scheduler interface {
	Recurring(name string, every time.Duration, job func(ctx context.Context)) error
	Once(name string, at time.Time, job func(ctx context.Context)) error
	Cancel(name string)
}

var ErrOnceUnsupported = errors.New("one-shot wakes not supported")

// CronScheduler implements Scheduler on robfig/cron for recurring jobs and
// versioned time.AfterFunc timers for one-shots.
type CronScheduler struct {
	log logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	entries map[string]cron.EntryID
	running map[string]*runGuard // overlap skip per name

	tmu     sync.Mutex
	timers  map[string]*time.Timer
	onceVer map[string]uint64

	ctx    context.Context
	cancel context.CancelFunc
}

type runGuard struct {
	mu   sync.Mutex
	busy bool
}

func NewCron(log logx.Logger) *CronScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		log:     log,
		c:       cron.New(),
		entries: make(map[string]cron.EntryID),
		running: make(map[string]*runGuard),
		timers:  make(map[string]*time.Timer),
		onceVer: make(map[string]uint64),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *CronScheduler) Start() { s.c.Start() }

// Stop halts the cron loop, cancels one-shot timers, and waits for running
// jobs to finish or ctx to expire.
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.cancel()

	s.tmu.Lock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.tmu.Unlock()

	done := s.c.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recurring registers (or replaces) a named periodic job. Runs that would
// overlap a still-running previous tick of the same name are skipped.
func (s *CronScheduler) Recurring(name string, every time.Duration, job func(ctx context.Context)) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	if every <= 0 {
		return fmt.Errorf("recurring %q: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeEntryLocked(name)

	guard := &runGuard{}
	s.running[name] = guard

	spec := fmt.Sprintf("@every %s", every.String())
	id, err := s.c.AddFunc(spec, func() {
		guard.mu.Lock()
		if guard.busy {
			guard.mu.Unlock()
			s.log.Debug("tick skipped, previous run still active", logx.String("name", name))
			return
		}
		guard.busy = true
		guard.mu.Unlock()

		defer func() {
			guard.mu.Lock()
			guard.busy = false
			guard.mu.Unlock()
		}()
		if s.ctx.Err() != nil {
			return
		}
		job(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("recurring %q (%s): %w", name, spec, err)
	}
	s.entries[name] = id
	s.log.Debug("recurring wake registered", logx.String("name", name), logx.String("spec", spec))
	return nil
}

// Once arms (or re-arms) a named one-shot at the given instant. A past
// instant fires immediately. Versions guard against a stale timer firing
// after its name was re-armed or cancelled.
func (s *CronScheduler) Once(name string, at time.Time, job func(ctx context.Context)) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name required")
	}
	if at.IsZero() {
		return errors.New("at required")
	}

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	ver := s.onceVer[name] + 1
	s.onceVer[name] = ver

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.timers[name] = time.AfterFunc(delay, func() {
		s.tmu.Lock()
		if s.onceVer[name] != ver {
			s.tmu.Unlock()
			return
		}
		delete(s.timers, name)
		delete(s.onceVer, name)
		s.tmu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		job(s.ctx)
	})
	s.log.Debug("one-shot wake armed", logx.String("name", name), logx.Time("at", at))
	return nil
}

// Cancel removes the named recurring job and/or one-shot timer.
func (s *CronScheduler) Cancel(name string) {
	s.mu.Lock()
	s.removeEntryLocked(name)
	s.mu.Unlock()

	s.tmu.Lock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	// Drop the version so an already-fired AfterFunc callback turns into a no-op.
	delete(s.onceVer, name)
	s.tmu.Unlock()
}

func (s *CronScheduler) removeEntryLocked(name string) {
	if id, ok := s.entries[name]; ok {
		s.c.Remove(id)
		delete(s.entries, name)
		delete(s.running, name)
	}
}
