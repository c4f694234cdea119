package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "TRADECLUB_"

type lookupFunc func(key string) (string, bool)

func dotenvPath() string {
	if p, ok := os.LookupEnv(envPrefix + "ENV_FILE"); ok {
		return p
	}
	return ".env"
}

// newEnvLookup resolves variables from the process environment first and
// from the dotenv file at path second. A missing file is not an error.
func newEnvLookup(path string) (lookupFunc, error) {
	dotenv, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

// parseEnv overlays cfg with TRADECLUB_* variables.
func parseEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(name string, dst *time.Duration) {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = d
	}
	boolean := func(name string, dst *bool) {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = b
	}

	str("API_URL", &cfg.APIBaseURL)
	str("STORAGE", &cfg.StoragePath)
	str("TAB_ID", &cfg.TabID)
	str("LOG_FORMAT", &cfg.LogFormat)
	dur("SYNC_INTERVAL", &cfg.SyncInterval)
	dur("SESSION_TTL", &cfg.SessionTTL)
	dur("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	boolean("WATCH_STORAGE", &cfg.WatchStorage)
	boolean("DEBUG", &cfg.Debug)

	return errors.Join(errs...)
}
