package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const validYAML = `
logging:
  level: debug
storage:
  driver: file
  path: /tmp/reminders.json
engine:
  scan_interval: 30s
  grace_window: 2m
delivery:
  driver: log
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, validYAML)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Storage.Driver != "file" || cfg.Storage.Path != "/tmp/reminders.json" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	scan, grace, snooze, err := cfg.Engine.Durations()
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if scan != 30*time.Second || grace != 2*time.Minute || snooze != DefaultSnoozeDuration {
		t.Errorf("durations = %v %v %v", scan, grace, snooze)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"storage":{"driver":"sqlite","path":"/tmp/r.db"}}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Storage.Driver)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"storage":{"driver":"file","path":"x"},"typo_section":{}}`)

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("want error for unknown field")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"storage":{"path":"x"}}{"more":true}`)

	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("want error for trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"missing path", Config{}, false},
		{"file driver", Config{Storage: StorageConfig{Driver: "file", Path: "x"}}, true},
		{"default driver", Config{Storage: StorageConfig{Path: "x"}}, true},
		{"bad driver", Config{Storage: StorageConfig{Driver: "mongo", Path: "x"}}, false},
		{"telegram without creds", Config{
			Storage:  StorageConfig{Path: "x"},
			Delivery: DeliveryConfig{Driver: "telegram"},
		}, false},
		{"telegram with creds", Config{
			Storage:  StorageConfig{Path: "x"},
			Delivery: DeliveryConfig{Driver: "telegram", Telegram: TelegramConfig{Token: "t", ChatID: 1}},
		}, true},
		{"bad duration", Config{
			Storage: StorageConfig{Path: "x"},
			Engine:  EngineConfig{ScanInterval: "soon"},
		}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("want error, got nil")
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("f", ""); err != nil || d != 0 {
		t.Errorf("empty: %v %v", d, err)
	}
	if d, err := ParseDurationField("f", "90s"); err != nil || d != 90*time.Second {
		t.Errorf("90s: %v %v", d, err)
	}
	if _, err := ParseDurationField("f", "-1m"); err == nil {
		t.Error("negative accepted")
	}
	if _, err := ParseDurationField("f", "banana"); err == nil {
		t.Error("garbage accepted")
	}
	if d, err := ParseDurationOrDefault("f", "", time.Minute); err != nil || d != time.Minute {
		t.Errorf("default: %v %v", d, err)
	}
}
