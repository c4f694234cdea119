// Package config loads runtime configuration for a tradeclub client tab.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .json are read as JSON, anything else as YAML.
//  3. TRADECLUB_* environment variables, with a .env file (or the file
//     named by TRADECLUB_ENV_FILE) filling in what the process lacks.
//  4. Command-line flags (see parseFlags), which override everything.
//
// # File schema
//
// Intervals use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds:
//
//	api_base_url: http://localhost:8080/api
//	storage_path: /tmp/tradeclub/browser.db
//	sync_interval: 3s
//	session_ttl: 168h
//	request_timeout: 10s
//	watch_storage: true
//	log_format: json
//
// A tab id left empty by every source is generated with uuid.
package config
