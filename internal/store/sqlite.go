package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

// SQLiteStore keeps the collection in one table. The pure-Go driver serializes
// writes anyway, so the pool is pinned to a single connection and the engine's
// whole-collection save runs as one transaction.
type SQLiteStore struct {
	db  *sql.DB
	log logx.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reminders (
	id             TEXT PRIMARY KEY,
	habit_id       INTEGER NOT NULL,
	reminder_index INTEGER NOT NULL,
	habit_name     TEXT NOT NULL,
	message        TEXT NOT NULL,
	habit_color    TEXT NOT NULL,
	trigger_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_habit ON reminders(habit_id);
CREATE INDEX IF NOT EXISTS idx_reminders_trigger ON reminders(trigger_at);
`

func OpenSQLite(path string, log logx.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errNoPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &PersistenceError{Op: "mkdir", Err: err}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "migrate", Err: err}
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]habit.ScheduledReminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, habit_id, reminder_index, habit_name, message, habit_color, trigger_at
		 FROM reminders ORDER BY trigger_at, id`)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	defer rows.Close()

	var entries []habit.ScheduledReminder
	for rows.Next() {
		var e habit.ScheduledReminder
		if err := rows.Scan(&e.ID, &e.HabitID, &e.ReminderIndex, &e.HabitName, &e.Message, &e.HabitColor, &e.TriggerAt); err != nil {
			s.log.Warn("dropping unscannable reminder row", logx.Err(err))
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "scan", Err: err}
	}
	return entries, nil
}

// Save replaces the table contents in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries []habit.ScheduledReminder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO reminders (id, habit_id, reminder_index, habit_name, message, habit_color, trigger_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &PersistenceError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.HabitID, e.ReminderIndex, e.HabitName, e.Message, e.HabitColor, e.TriggerAt); err != nil {
			return &PersistenceError{Op: "insert " + e.ID, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
