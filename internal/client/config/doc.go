// Package config loads runtime configuration for the reviewdesk CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c / -config or REVIEWDESK_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the auth backend
//	-d string   data directory for the local credential database
//	-t int      request timeout (seconds)
//	-l string   log level: debug, info, warn or error
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "55m"
// or integer nanoseconds:
//
//	{
//	  "server_url": "https://reviews.example.com/api/auth",
//	  "data_dir": "/home/ann/.reviewdesk",
//	  "request_timeout": "10s",
//	  "log_level": "info",
//	  "refresh_lead_time": "2m",
//	  "safety_refresh_interval": "55m",
//	  "min_refresh_delay": "5s",
//	  "activity_check_interval": "5m",
//	  "max_inactivity": "720h"
//	}
//
// The session timing knobs are only configurable through JSON.
package config
