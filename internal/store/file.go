package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

// FileStore keeps the collection as one JSON array on disk.
type FileStore struct {
	path string
	log  logx.Logger
}

func NewFileStore(path string, log logx.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errNoPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &PersistenceError{Op: "mkdir", Err: err}
	}
	return &FileStore{path: path, log: log}, nil
}

// Load reads the collection. A missing file is an empty collection. Entries
// that fail to decode individually are dropped with a warning rather than
// poisoning the whole load; a file that is not a JSON array at all is an
// error, since silently discarding it would lose every pending reminder.
func (s *FileStore) Load(ctx context.Context) ([]habit.ScheduledReminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "read", Err: err}
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &PersistenceError{Op: "decode", Err: err}
	}

	entries := make([]habit.ScheduledReminder, 0, len(items))
	for i, item := range items {
		var e habit.ScheduledReminder
		if err := json.Unmarshal(item, &e); err != nil {
			s.log.Warn("dropping undecodable reminder entry",
				logx.Int("index", i), logx.Err(err))
			continue
		}
		if e.ID == "" || e.TriggerAt == 0 {
			s.log.Warn("dropping incomplete reminder entry", logx.Int("index", i))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Save writes the whole collection atomically: marshal, write a sibling tmp
// file, fsync, rename over the live path.
func (s *FileStore) Save(ctx context.Context, entries []habit.ScheduledReminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = []habit.ScheduledReminder{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &PersistenceError{Op: "open tmp", Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return &PersistenceError{Op: "write tmp", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &PersistenceError{Op: "sync tmp", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &PersistenceError{Op: "close tmp", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return &PersistenceError{Op: "rename", Err: fmt.Errorf("%s: %w", s.path, err)}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
