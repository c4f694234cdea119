package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/tradeclub/internal/flagx"
)

var knownFlags = []string{"-a", "-s", "-t", "-i", "-ttl", "-timeout", "-w", "-l", "-d"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string         base URL of the auth API
//	-s string         path of the shared SQLite storage file
//	-t string         tab id (generated when empty)
//	-i duration       session poll interval, e.g. 3s
//	-ttl duration     session record lifetime, e.g. 168h
//	-timeout duration API request timeout
//	-w bool           watch storage for other tabs' writes (use -w=false)
//	-l string         log format: text, json, zerolog or zap
//	-d bool           debug logging
//
// args are filtered with flagx.FilterArgs so -c/-config and unrelated
// arguments do not trip the parser.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("tradeclub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the auth API")
	fs.StringVar(&cfg.StoragePath, "s", cfg.StoragePath, "shared storage file")
	fs.StringVar(&cfg.TabID, "t", cfg.TabID, "tab id")
	fs.DurationVar(&cfg.SyncInterval, "i", cfg.SyncInterval, "session poll interval")
	fs.DurationVar(&cfg.SessionTTL, "ttl", cfg.SessionTTL, "session record lifetime")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "API request timeout")
	fs.BoolVar(&cfg.WatchStorage, "w", cfg.WatchStorage, "watch storage for other tabs' writes")
	fs.StringVar(&cfg.LogFormat, "l", cfg.LogFormat, "log format: text, json, zerolog or zap")
	fs.BoolVar(&cfg.Debug, "d", cfg.Debug, "debug logging")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
