package habit

import "time"

// RuleType selects how a ReminderRule is expanded into trigger instants.
type RuleType string

const (
	// RuleSpecific fires at fixed wall-clock times ("08:00", "21:30").
	RuleSpecific RuleType = "specific"
	// RuleInterval fires every N minutes inside a [start, end] window.
	RuleInterval RuleType = "interval"
)

// Defaults applied when a declaration omits the optional presentation fields.
const (
	DefaultMessage = "Time for your habit!"
	DefaultColor   = "#3b82f6"
)

// ReminderRule is the declarative "when" of a habit reminder.
//
// Specific rules use Times; interval rules use StartTime/EndTime/IntervalMinutes.
// Fields of the other variant are ignored.
type ReminderRule struct {
	Type    RuleType `json:"type"`
	Enabled bool     `json:"enabled"`
	Message string   `json:"message,omitempty"`

	Times []string `json:"times,omitempty"`

	StartTime       string `json:"startTime,omitempty"`
	EndTime         string `json:"endTime,omitempty"`
	IntervalMinutes int    `json:"intervalMinutes,omitempty"`
}

// Declaration carries everything the engine needs to know about one habit's
// reminders. Declarations are supplied wholesale per schedule request; the
// engine does not track habit identity beyond what is passed here.
type Declaration struct {
	HabitID   int            `json:"habitId"`
	HabitName string         `json:"habitName"`
	Color     string         `json:"color,omitempty"`
	Rules     []ReminderRule `json:"reminders"`
}

// ScheduledReminder is a materialized absolute-time instance of a rule.
// This is the unit the store persists and the scanner fires.
//
// IDs are derived deterministically from (habitId, ruleIndex, subIndex), so
// re-issuing the same schedule request replaces rather than duplicates.
type ScheduledReminder struct {
	ID            string `json:"id"`
	HabitID       int    `json:"habitId"`
	ReminderIndex int    `json:"reminderIndex"`
	HabitName     string `json:"habitName"`
	Message       string `json:"message"`
	HabitColor    string `json:"habitColor"`
	TriggerAt     int64  `json:"triggerAt"` // epoch millis
}

// Trigger returns the trigger instant as a time.Time.
func (r ScheduledReminder) Trigger() time.Time { return time.UnixMilli(r.TriggerAt) }
