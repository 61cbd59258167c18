package engine

import (
	"context"
	"time"

	"github.com/RexForge/quantum-habits/internal/eventbus"
	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/internal/store"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

// ScanStats summarizes one scan pass.
type ScanStats struct {
	Fired     int
	Missed    int
	Remaining int
	Took      time.Duration
}

// Scan fires every entry whose trigger fell within the grace window and
// drops entries older than that as missed. All removals are persisted in one
// save before any delivery happens: after a crash mid-pass a reminder is
// silently lost, never delivered twice.
func (e *Engine) Scan(ctx context.Context) (ScanStats, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	cutoff := now.Add(-e.cfg.GraceWindow)

	entries, err := e.st.Load(ctx)
	if err != nil {
		return ScanStats{}, err
	}

	var (
		due    []habit.ScheduledReminder
		missed []habit.ScheduledReminder
		keep   = entries[:0]
	)
	for _, en := range entries {
		trig := en.Trigger()
		switch {
		case trig.After(now):
			keep = append(keep, en)
		case trig.Before(cutoff):
			missed = append(missed, en)
		default:
			due = append(due, en)
		}
	}

	stats := ScanStats{Fired: len(due), Missed: len(missed), Remaining: len(keep)}
	if len(due) == 0 && len(missed) == 0 {
		stats.Took = time.Since(start)
		return stats, nil
	}

	if err := e.st.Save(ctx, keep); err != nil {
		return ScanStats{}, err
	}

	for _, en := range missed {
		if e.wk != nil {
			e.wk.Cancel(alarmName(en.ID))
		}
		e.publish(eventbus.TopicReminderMissed, en)
		e.log.Warn("reminder missed",
			logx.String("id", en.ID),
			logx.Int("habit_id", en.HabitID),
			logx.Time("trigger_at", en.Trigger()))
	}
	for _, en := range due {
		if e.wk != nil {
			e.wk.Cancel(alarmName(en.ID))
		}
		e.gw.Post(ctx, en)
		e.publish(eventbus.TopicReminderFired, en)
	}

	stats.Took = time.Since(start)
	e.log.Debug("scan pass",
		logx.Int("fired", stats.Fired),
		logx.Int("missed", stats.Missed),
		logx.Int("remaining", stats.Remaining),
		logx.Duration("took", stats.Took))
	return stats, nil
}

// ConsumeAlarm delivers one entry by id, invoked by an exact-alarm one-shot.
// It shares the scanner's locked remove-persist-deliver path, so an alarm and
// a scan pass can never both deliver the same id: whoever removes it from the
// store first wins.
func (e *Engine) ConsumeAlarm(ctx context.Context, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.st.Load(ctx)
	if err != nil {
		e.log.Error("alarm load failed", logx.String("id", id), logx.Err(err))
		return
	}
	var target *habit.ScheduledReminder
	for i := range entries {
		if entries[i].ID == id {
			target = &entries[i]
			break
		}
	}
	if target == nil {
		// Already consumed by a scan pass or cancelled.
		return
	}
	en := *target

	remaining, _ := store.RemoveByID(entries, id)
	if err := e.st.Save(ctx, remaining); err != nil {
		e.log.Error("alarm save failed", logx.String("id", id), logx.Err(err))
		return
	}

	e.gw.Post(ctx, en)
	e.publish(eventbus.TopicReminderFired, en)
	e.log.Debug("reminder delivered by exact alarm", logx.String("id", id))
}
