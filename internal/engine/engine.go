// Package engine owns the pending-reminder collection: it compiles schedule
// requests, scans for due entries, and coordinates snooze and completion.
//
// Every mutation runs under one mutex as load → modify → save, so the scanner
// and the command surface can never interleave half-applied states. The store
// is the single source of truth; the engine keeps no entry cache.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RexForge/quantum-habits/internal/eventbus"
	"github.com/RexForge/quantum-habits/internal/gateway"
	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/internal/ledger"
	"github.com/RexForge/quantum-habits/internal/store"
	"github.com/RexForge/quantum-habits/internal/wake"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

type Config struct {
	ScanInterval   time.Duration
	GraceWindow    time.Duration
	SnoozeDuration time.Duration
	ExactAlarms    bool
}

func (c Config) withDefaults() Config {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 60 * time.Second
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = 5 * time.Minute
	}
	if c.SnoozeDuration <= 0 {
		c.SnoozeDuration = 60 * time.Minute
	}
	return c
}

type Engine struct {
	cfg Config
	st  store.Store
	gw  gateway.Gateway
	log logx.Logger

	wk  wake.Scheduler // optional exact-alarm source
	bus *eventbus.Bus  // optional
	led *ledger.Ledger // optional
	now func() time.Time

	mu    sync.Mutex
	decls map[int]habit.Declaration // last declaration per habit, for snooze fallback
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithBus(bus *eventbus.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

func WithWake(wk wake.Scheduler) Option {
	return func(e *Engine) { e.wk = wk }
}

func WithLedger(led *ledger.Ledger) Option {
	return func(e *Engine) { e.led = led }
}

func New(cfg Config, st store.Store, gw gateway.Gateway, log logx.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg.withDefaults(),
		st:    st,
		gw:    gw,
		log:   log,
		now:   time.Now,
		decls: make(map[int]habit.Declaration),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start registers the periodic scan on the wake scheduler.
func (e *Engine) Start(wk wake.Scheduler) error {
	return wk.Recurring("engine.scan", e.cfg.ScanInterval, func(ctx context.Context) {
		if _, err := e.Scan(ctx); err != nil {
			e.log.Error("scan pass failed", logx.Err(err))
		}
	})
}

// ScheduleResult reports what one schedule request produced.
type ScheduleResult struct {
	Scheduled int
	Removed   int
	Issues    []*habit.RuleError
}

// Schedule replaces each declared habit's pending entries with a fresh
// compilation of its rules. Bad rules are reported in Issues without
// aborting the rest. Store failures abort with nothing changed.
func (e *Engine) Schedule(ctx context.Context, decls []habit.Declaration) (ScheduleResult, error) {
	now := e.now()
	compiled, issues := habit.Compile(decls, now)
	res := ScheduleResult{Issues: issues}

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.st.Load(ctx)
	if err != nil {
		return res, err
	}

	// Replace wholesale per habit: stale instants and pending snoozes of a
	// rescheduled habit go away with it.
	for _, d := range decls {
		var removed bool
		entries, removed = store.RemoveByHabit(entries, d.HabitID)
		if removed {
			res.Removed++
		}
	}
	for _, c := range compiled {
		entries = store.Upsert(entries, c)
	}
	if err := e.st.Save(ctx, entries); err != nil {
		return res, err
	}

	for _, d := range decls {
		e.decls[d.HabitID] = d
	}
	res.Scheduled = len(compiled)

	for _, c := range compiled {
		e.armAlarm(c)
		e.publish(eventbus.TopicReminderScheduled, c)
	}
	for _, is := range issues {
		e.log.Warn("rule rejected", logx.Err(is))
	}
	e.log.Info("schedule applied",
		logx.Int("habits", len(decls)),
		logx.Int("entries", len(compiled)),
		logx.Int("issues", len(issues)))
	return res, nil
}

// Cancel removes every pending entry for habitID, snoozed copies included.
// An unknown habit is a no-op.
func (e *Engine) Cancel(ctx context.Context, habitID int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.st.Load(ctx)
	if err != nil {
		return 0, err
	}
	var removedIDs []string
	for _, en := range entries {
		if en.HabitID == habitID {
			removedIDs = append(removedIDs, en.ID)
		}
	}
	entries, changed := store.RemoveByHabit(entries, habitID)
	if !changed {
		return 0, nil
	}
	if err := e.st.Save(ctx, entries); err != nil {
		return 0, err
	}

	delete(e.decls, habitID)
	for _, id := range removedIDs {
		if e.wk != nil {
			e.wk.Cancel(alarmName(id))
		}
	}
	e.publish(eventbus.TopicReminderCancelled, habitID)
	e.log.Info("habit reminders cancelled",
		logx.Int("habit_id", habitID),
		logx.Int("removed", len(removedIDs)))
	return len(removedIDs), nil
}

// List returns the pending collection ordered by trigger time.
func (e *Engine) List(ctx context.Context) ([]habit.ScheduledReminder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.st.Load(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TriggerAt != entries[j].TriggerAt {
			return entries[i].TriggerAt < entries[j].TriggerAt
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (e *Engine) publish(topic string, data any) {
	if e.bus != nil {
		e.bus.Publish(topic, data)
	}
}

func alarmName(id string) string { return "alarm." + id }

// armAlarm schedules an exact one-shot wake for an entry. Callers hold e.mu;
// the alarm callback re-enters through ConsumeAlarm which takes it again.
func (e *Engine) armAlarm(r habit.ScheduledReminder) {
	if !e.cfg.ExactAlarms || e.wk == nil {
		return
	}
	id := r.ID
	err := e.wk.Once(alarmName(id), r.Trigger(), func(ctx context.Context) {
		e.ConsumeAlarm(ctx, id)
	})
	if err != nil && err != wake.ErrOnceUnsupported {
		e.log.Warn("exact alarm not armed", logx.String("id", id), logx.Err(err))
	}
}
