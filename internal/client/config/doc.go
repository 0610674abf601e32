// Package config loads runtime configuration for the timing station.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "5s" or
// integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "db_path": "ski-race-timer.db",
//	  "device_name": "Finish A",
//	  "race_id": "wc-2026",
//	  "poll_interval": "5s",
//	  "flush_debounce": "100ms",
//	  "broadcast": "mqtt",
//	  "mqtt_broker": "tcp://127.0.0.1:1883"
//	}
//
// Fields missing from the file keep their default.
package config
