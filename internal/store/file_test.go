package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

func sample(id string, habitID int, at int64) habit.ScheduledReminder {
	return habit.ScheduledReminder{
		ID:         id,
		HabitID:    habitID,
		HabitName:  "Test",
		Message:    "msg",
		HabitColor: "#fff",
		TriggerAt:  at,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reminders.json")
	s, err := NewFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("missing file should load empty, got %d entries", len(got))
	}

	want := []habit.ScheduledReminder{
		sample("a", 1, 1000),
		sample("b", 2, 2000),
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestFileStoreTolerantLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reminders.json")
	blob := `[
		{"id":"good","habitId":1,"reminderIndex":0,"habitName":"n","message":"m","habitColor":"#fff","triggerAt":123},
		{"id":"no-trigger","habitId":1},
		{"id":17,"habitId":"wat"},
		{"habitId":2,"triggerAt":456}
	]`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s, err := NewFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Fatalf("want only the good entry, got %+v", got)
	}
}

func TestFileStoreCorruptArrayFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reminders.json")
	if err := os.WriteFile(path, []byte(`{"not":"an array"`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, err := NewFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("want error for non-array blob, got nil")
	}
}

func TestFileStoreSaveLeavesNoTmp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "reminders.json")
	s, err := NewFileStore(path, logx.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Save(context.Background(), []habit.ScheduledReminder{sample("a", 1, 1)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestCollectionHelpers(t *testing.T) {
	t.Parallel()

	entries := []habit.ScheduledReminder{
		sample("a", 1, 1),
		sample("b", 1, 2),
		sample("c", 2, 3),
	}

	entries = Upsert(entries, sample("b", 1, 99))
	if len(entries) != 3 || entries[1].TriggerAt != 99 {
		t.Fatalf("Upsert should replace in place: %+v", entries)
	}
	entries = Upsert(entries, sample("d", 3, 4))
	if len(entries) != 4 {
		t.Fatalf("Upsert should append new id: %+v", entries)
	}

	entries, changed := RemoveByHabit(entries, 1)
	if !changed || len(entries) != 2 {
		t.Fatalf("RemoveByHabit(1): changed=%v entries=%+v", changed, entries)
	}
	_, changed = RemoveByHabit(entries, 777)
	if changed {
		t.Fatal("RemoveByHabit of unknown habit reported a change")
	}

	entries, ok := RemoveByID(entries, "c")
	if !ok || len(entries) != 1 || entries[0].ID != "d" {
		t.Fatalf("RemoveByID: ok=%v entries=%+v", ok, entries)
	}
	_, ok = RemoveByID(entries, "zzz")
	if ok {
		t.Fatal("RemoveByID of unknown id reported removal")
	}
}
