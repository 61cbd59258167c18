package config

import "time"

// Config is the daemon's root configuration. JSON or YAML on disk; YAML is
// coerced to JSON so both formats go through one strict decoder.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Engine   EngineConfig   `json:"engine"`
	Delivery DeliveryConfig `json:"delivery"`
	RPC      RPCConfig      `json:"rpc"`
	Ledger   LedgerConfig   `json:"ledger"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console *bool  `json:"console,omitempty"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"file"`
}

// ConsoleEnabled defaults to true when unset.
func (c LoggingConfig) ConsoleEnabled() bool { return c.Console == nil || *c.Console }

type StorageConfig struct {
	Driver string `json:"driver"` // "file" or "sqlite"
	Path   string `json:"path"`
}

// EngineConfig holds the scan and snooze knobs. Durations are Go duration
// strings ("60s", "5m"); zero or empty falls back to the default.
type EngineConfig struct {
	ScanInterval   string `json:"scan_interval"`
	GraceWindow    string `json:"grace_window"`
	SnoozeDuration string `json:"snooze_duration"`
	ExactAlarms    bool   `json:"exact_alarms"`
}

const (
	DefaultScanInterval   = 60 * time.Second
	DefaultGraceWindow    = 5 * time.Minute
	DefaultSnoozeDuration = 60 * time.Minute
)

func (c EngineConfig) Durations() (scan, grace, snooze time.Duration, err error) {
	if scan, err = ParseDurationOrDefault("engine.scan_interval", c.ScanInterval, DefaultScanInterval); err != nil {
		return
	}
	if grace, err = ParseDurationOrDefault("engine.grace_window", c.GraceWindow, DefaultGraceWindow); err != nil {
		return
	}
	snooze, err = ParseDurationOrDefault("engine.snooze_duration", c.SnoozeDuration, DefaultSnoozeDuration)
	return
}

type DeliveryConfig struct {
	Driver   string         `json:"driver"` // "log" (default) or "telegram"
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Token     string  `json:"token"`
	ChatID    int64   `json:"chat_id"`
	RateLimit float64 `json:"rate_limit"` // messages per second, 0 = default
	Burst     int     `json:"burst"`
}

type RPCConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"` // host:port, default 127.0.0.1:8823
	Token   string `json:"token"`  // bearer token; empty disables the check
}

type LedgerConfig struct {
	Path string `json:"path"` // JSONL completion ledger; empty disables
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return errStoragePath
	}
	switch c.Storage.Driver {
	case "", "file", "sqlite":
	default:
		return errStorageDriver
	}
	switch c.Delivery.Driver {
	case "", "log":
	case "telegram":
		if c.Delivery.Telegram.Token == "" || c.Delivery.Telegram.ChatID == 0 {
			return errTelegramCreds
		}
	default:
		return errDeliveryDriver
	}
	if _, _, _, err := c.Engine.Durations(); err != nil {
		return err
	}
	return nil
}
