package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Config holds runtime settings for one tradeclub client tab.
//
// Fields:
//   - APIBaseURL: base URL of the auth API, e.g. http://localhost:8080/api.
//   - StoragePath: SQLite file shared by every tab of the same "browser".
//   - TabID: identity of this tab; generated when empty.
//   - SyncInterval: how often the shared session record is re-read.
//   - SessionTTL: lifetime of the shared session record (0 = until logout).
//   - RequestTimeout: per-request timeout for API calls.
//   - WatchStorage: deliver other tabs' writes as events, not only by polling.
//   - LogFormat: text, json, zerolog or zap.
type Config struct {
	APIBaseURL     string
	StoragePath    string
	TabID          string
	SyncInterval   time.Duration
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	WatchStorage   bool
	LogFormat      string
	Debug          bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8080/api"
	c.StoragePath = defaultStoragePath()
	c.TabID = ""
	c.SyncInterval = 3 * time.Second
	c.SessionTTL = 7 * 24 * time.Hour
	c.RequestTimeout = 10 * time.Second
	c.WatchStorage = true
	c.LogFormat = "text"
	c.Debug = false
}

// LoadConfig builds a Config from defaults, then the config file (-c or
// -config), then the environment (and .env), then command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	lookup, err := newEnvLookup(dotenvPath())
	if err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if cfg.TabID == "" {
		cfg.TabID = uuid.NewString()
	}
	return cfg, nil
}

func defaultStoragePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "tradeclub", "browser.db")
}
