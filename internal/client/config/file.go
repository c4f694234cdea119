package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/tradeclub/internal/flagx"
	"github.com/dmitrijs2005/tradeclub/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is a DTO used exclusively for file unmarshalling. Pointer
// fields tell "absent" apart from a zero value, so a file only overrides
// what it names. Intervals use timex.Duration ("3s" or nanoseconds).
type fileConfig struct {
	APIBaseURL     *string         `json:"api_base_url" yaml:"api_base_url"`
	StoragePath    *string         `json:"storage_path" yaml:"storage_path"`
	TabID          *string         `json:"tab_id" yaml:"tab_id"`
	SyncInterval   *timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	SessionTTL     *timex.Duration `json:"session_ttl" yaml:"session_ttl"`
	RequestTimeout *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	WatchStorage   *bool           `json:"watch_storage" yaml:"watch_storage"`
	LogFormat      *string         `json:"log_format" yaml:"log_format"`
	Debug          *bool           `json:"debug" yaml:"debug"`
}

// parseFile overlays cfg with the file named by -c/-config. JSON is used
// for .json files, YAML for everything else.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc fileConfig) apply(cfg *Config) {
	setIf(&cfg.APIBaseURL, fc.APIBaseURL)
	setIf(&cfg.StoragePath, fc.StoragePath)
	setIf(&cfg.TabID, fc.TabID)
	setIf(&cfg.WatchStorage, fc.WatchStorage)
	setIf(&cfg.LogFormat, fc.LogFormat)
	setIf(&cfg.Debug, fc.Debug)
	if fc.SyncInterval != nil {
		cfg.SyncInterval = fc.SyncInterval.Duration
	}
	if fc.SessionTTL != nil {
		cfg.SessionTTL = fc.SessionTTL.Duration
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
