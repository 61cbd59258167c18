package habit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReminderID builds the deterministic id for one materialized instant.
// kind is "time" for specific rules and "interval" for interval rules.
func ReminderID(habitID, ruleIndex int, kind string, sub int) string {
	return fmt.Sprintf("habit-%d-reminder-%d-%s-%d", habitID, ruleIndex, kind, sub)
}

// SnoozeID derives the id of a snoozed copy of an entry. Snoozing a snooze
// re-derives from the same base, so at most one snooze per entry is pending.
func SnoozeID(id string) string {
	return strings.TrimSuffix(id, "_snooze") + "_snooze"
}

// IsSnoozeID reports whether id names a snoozed copy.
func IsSnoozeID(id string) bool { return strings.HasSuffix(id, "_snooze") }

// ParseID recovers (habitID, ruleIndex) from a reminder id, snoozed or not.
// ok is false for ids that were not produced by ReminderID.
func ParseID(id string) (habitID, ruleIndex int, ok bool) {
	parts := strings.Split(strings.TrimSuffix(id, "_snooze"), "-")
	if len(parts) != 6 || parts[0] != "habit" || parts[2] != "reminder" {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	r, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, 0, false
	}
	return h, r, true
}

// Compile expands declarations into future-only scheduled entries.
//
// Malformed rules (or single bad time strings inside a rule) are collected as
// RuleErrors and never abort the batch: everything that can be materialized
// is. Disabled rules are skipped silently. All returned entries trigger
// strictly after now.
func Compile(decls []Declaration, now time.Time) ([]ScheduledReminder, []*RuleError) {
	var (
		out    []ScheduledReminder
		issues []*RuleError
	)
	for _, d := range decls {
		entries, errs := compileOne(d, now)
		out = append(out, entries...)
		issues = append(issues, errs...)
	}
	return out, issues
}

func compileOne(d Declaration, now time.Time) ([]ScheduledReminder, []*RuleError) {
	var (
		out    []ScheduledReminder
		issues []*RuleError
	)
	for i, rule := range d.Rules {
		if !rule.Enabled {
			continue
		}
		switch rule.Type {
		case RuleSpecific:
			for k, ts := range rule.Times {
				at, err := SpecificInstant(ts, now)
				if err != nil {
					issues = append(issues, &RuleError{HabitID: d.HabitID, RuleIndex: i, Value: ts, Err: err})
					continue
				}
				out = append(out, materialize(d, rule, i, "time", k, at))
			}
		case RuleInterval:
			instants, err := IntervalInstants(rule.StartTime, rule.EndTime, rule.IntervalMinutes, now)
			if err != nil {
				issues = append(issues, &RuleError{HabitID: d.HabitID, RuleIndex: i, Err: err})
				continue
			}
			for k, at := range instants {
				out = append(out, materialize(d, rule, i, "interval", k, at))
			}
		default:
			issues = append(issues, &RuleError{
				HabitID: d.HabitID, RuleIndex: i,
				Err: fmt.Errorf("unknown rule type %q", rule.Type),
			})
		}
	}
	return out, issues
}

func materialize(d Declaration, rule ReminderRule, ruleIdx int, kind string, sub int, at time.Time) ScheduledReminder {
	msg := rule.Message
	if msg == "" {
		msg = DefaultMessage
	}
	color := d.Color
	if color == "" {
		color = DefaultColor
	}
	return ScheduledReminder{
		ID:            ReminderID(d.HabitID, ruleIdx, kind, sub),
		HabitID:       d.HabitID,
		ReminderIndex: ruleIdx,
		HabitName:     d.HabitName,
		Message:       msg,
		HabitColor:    color,
		TriggerAt:     at.UnixMilli(),
	}
}

// SpecificInstant resolves "HH:MM" to today at that wall time (seconds
// zeroed), rolled forward a day when the instant has already passed.
func SpecificInstant(ts string, now time.Time) (time.Time, error) {
	hh, mm, err := parseHHMM(ts)
	if err != nil {
		return time.Time{}, err
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if !at.After(now) {
		at = at.Add(24 * time.Hour)
	}
	return at, nil
}

// IntervalInstants walks start..end inclusive in step-minute hops and keeps
// only the instants still in the future. An end that does not land exactly on
// a hop is simply never reached; the walk does not overshoot.
func IntervalInstants(start, end string, stepMinutes int, now time.Time) ([]time.Time, error) {
	if stepMinutes <= 0 {
		return nil, ErrInvalidInterval
	}
	sh, sm, err := parseHHMM(start)
	if err != nil {
		return nil, err
	}
	eh, em, err := parseHHMM(end)
	if err != nil {
		return nil, err
	}
	startMin := sh*60 + sm
	endMin := eh*60 + em

	var out []time.Time
	for m := startMin; m <= endMin; m += stepMinutes {
		at := time.Date(now.Year(), now.Month(), now.Day(), m/60, m%60, 0, 0, now.Location())
		if at.After(now) {
			out = append(out, at)
		}
	}
	return out, nil
}

func parseHHMM(s string) (hh, mm int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidTimeFormat
	}
	hh, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, ErrInvalidTimeFormat
	}
	mm, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, ErrInvalidTimeFormat
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, ErrInvalidTimeFormat
	}
	return hh, mm, nil
}
