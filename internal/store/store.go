// Package store persists the pending-reminder collection.
//
// The engine treats the store as a dumb durable array: it loads the whole
// collection, mutates it in memory under its own lock, and saves it back
// wholesale. Both drivers make Save atomic (tmp+rename for the file driver,
// a single transaction for sqlite), so a crash leaves either the old or the
// new collection, never a torn one.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

// Store is the durable collection behind the engine.
type Store interface {
	Load(ctx context.Context) ([]habit.ScheduledReminder, error)
	Save(ctx context.Context, entries []habit.ScheduledReminder) error
	Close() error
}

// PersistenceError wraps a driver failure so callers can tell "the store
// broke" apart from domain errors.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Config selects and parameterizes a driver.
type Config struct {
	Driver string `json:"driver"` // "file" (default) or "sqlite"
	Path   string `json:"path"`
}

// Open constructs the configured driver.
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Path, log)
	case "sqlite":
		return OpenSQLite(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

var errNoPath = errors.New("store path not configured")

// ---- In-memory collection helpers ----
//
// These run inside the engine's critical section; they are pure slice
// transforms with no locking of their own.

// Upsert replaces the entry with e's id, or appends when absent.
func Upsert(entries []habit.ScheduledReminder, e habit.ScheduledReminder) []habit.ScheduledReminder {
	for i := range entries {
		if entries[i].ID == e.ID {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}

// RemoveByHabit drops every entry for habitID, snoozed copies included.
// The second result reports whether anything changed.
func RemoveByHabit(entries []habit.ScheduledReminder, habitID int) ([]habit.ScheduledReminder, bool) {
	kept := entries[:0]
	changed := false
	for _, e := range entries {
		if e.HabitID == habitID {
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	return kept, changed
}

// RemoveByID drops the entry with the given id, reporting whether it existed.
func RemoveByID(entries []habit.ScheduledReminder, id string) ([]habit.ScheduledReminder, bool) {
	for i := range entries {
		if entries[i].ID == id {
			return append(entries[:i], entries[i+1:]...), true
		}
	}
	return entries, false
}
