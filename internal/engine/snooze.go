package engine

import (
	"context"
	"strings"

	"github.com/RexForge/quantum-habits/internal/eventbus"
	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/internal/store"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

const snoozeSuffix = " (Snoozed)"

// Snooze schedules a one-off copy of a fired reminder at now + snooze
// duration, under the derived id reminderID+"_snooze". Re-snoozing the same
// reminder replaces the previous snooze; the id marker and message suffix
// never stack.
//
// The fired entry is usually gone from the store already, so metadata is
// recovered in order from: the entry itself if still pending, a sibling
// pending entry of the same habit (preferring the same rule), or the
// declaration retained from the last schedule request. When none of those
// know the habit, Snooze is a no-op returning nil.
func (e *Engine) Snooze(ctx context.Context, habitID int, reminderID string) (*habit.ScheduledReminder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	entries, err := e.st.Load(ctx)
	if err != nil {
		return nil, err
	}

	base, ok := e.snoozeBase(entries, habitID, reminderID)
	if !ok {
		e.log.Debug("snooze ignored for unknown reminder",
			logx.Int("habit_id", habitID),
			logx.String("reminder_id", reminderID))
		return nil, nil
	}

	sn := base
	sn.ID = habit.SnoozeID(reminderID)
	sn.TriggerAt = now.Add(e.cfg.SnoozeDuration).UnixMilli()
	sn.Message = strings.TrimSuffix(base.Message, snoozeSuffix) + snoozeSuffix

	entries = store.Upsert(entries, sn)
	if err := e.st.Save(ctx, entries); err != nil {
		return nil, err
	}

	e.armAlarm(sn)
	e.publish(eventbus.TopicReminderSnoozed, sn)
	e.log.Info("reminder snoozed",
		logx.String("id", sn.ID),
		logx.Int("habit_id", habitID),
		logx.Time("trigger_at", sn.Trigger()))
	return &sn, nil
}

// snoozeBase finds the metadata template for a snooze. Caller holds e.mu.
func (e *Engine) snoozeBase(entries []habit.ScheduledReminder, habitID int, reminderID string) (habit.ScheduledReminder, bool) {
	baseID := strings.TrimSuffix(reminderID, "_snooze")
	_, ruleIndex, idOK := habit.ParseID(reminderID)

	var sibling *habit.ScheduledReminder
	for i := range entries {
		en := &entries[i]
		if en.ID == baseID {
			return *en, true
		}
		if en.HabitID != habitID {
			continue
		}
		if sibling == nil || (idOK && en.ReminderIndex == ruleIndex && sibling.ReminderIndex != ruleIndex) {
			sibling = en
		}
	}
	if sibling != nil {
		base := *sibling
		base.ID = baseID
		if idOK {
			base.ReminderIndex = ruleIndex
		}
		return base, true
	}

	d, ok := e.decls[habitID]
	if !ok {
		return habit.ScheduledReminder{}, false
	}
	msg := habit.DefaultMessage
	if idOK && ruleIndex >= 0 && ruleIndex < len(d.Rules) && d.Rules[ruleIndex].Message != "" {
		msg = d.Rules[ruleIndex].Message
	}
	color := d.Color
	if color == "" {
		color = habit.DefaultColor
	}
	return habit.ScheduledReminder{
		ID:            baseID,
		HabitID:       habitID,
		ReminderIndex: ruleIndex,
		HabitName:     d.HabitName,
		Message:       msg,
		HabitColor:    color,
	}, true
}

// Complete records a habit completion. The pending collection is untouched:
// completing a habit does not cancel its remaining reminders for the day.
func (e *Engine) Complete(ctx context.Context, habitID int) error {
	now := e.now()
	if e.led != nil {
		if err := e.led.Append(habitID, now); err != nil {
			return err
		}
	}
	e.publish(eventbus.TopicHabitCompleted, habitID)
	e.log.Info("habit completed", logx.Int("habit_id", habitID))
	return nil
}
