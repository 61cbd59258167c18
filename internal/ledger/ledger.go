// Package ledger records habit completions as append-only JSONL. One line per
// completion; re-completing a habit on the same day appends another line, and
// readers dedupe by (habit, date).
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one completion line.
type Record struct {
	HabitID     int    `json:"habitId"`
	Date        string `json:"date"`        // yyyy-mm-dd, local date of the completion
	CompletedAt int64  `json:"completedAt"` // epoch millis
}

type Ledger struct {
	mu   sync.Mutex
	path string
}

func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger mkdir: %w", err)
	}
	return &Ledger{path: path}, nil
}

// Append writes one completion record. The file is opened per append so an
// external rotation never strands a handle.
func (l *Ledger) Append(habitID int, at time.Time) error {
	rec := Record{
		HabitID:     habitID,
		Date:        at.Format("2006-01-02"),
		CompletedAt: at.UnixMilli(),
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ledger encode: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}

// CompletedOn reports whether habitID has a completion recorded for the day
// containing at (local date of the record writer).
func (l *Ledger) CompletedOn(habitID int, at time.Time) (bool, error) {
	date := at.Format("2006-01-02")
	records, err := l.Read()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.HabitID == habitID && r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

// Read returns all records. Undecodable lines (a torn final write after a
// crash) are skipped.
func (l *Ledger) Read() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger open: %w", err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ledger scan: %w", err)
	}
	return out, nil
}
