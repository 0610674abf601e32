// Package config handles configuration for the reference coordination
// service, including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the coordination service.
//
// Fields:
//   - ListenAddr: bind address of the HTTP API.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - TokenValidity: lifetime of issued device tokens.
//   - PIN: the shared race PIN stations exchange for a token.
//   - MaxPhotoBytes: inline photos above this size are dropped and reported as skipped.
//   - PresenceTTL: how long a polling device counts towards deviceCount.
type Config struct {
	ListenAddr    string
	SecretKey     string
	TokenValidity time.Duration
	PIN           string
	MaxPhotoBytes int
	PresenceTTL   time.Duration
	LogLevel      string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.SecretKey = "secretKey"
	c.TokenValidity = 24 * time.Hour
	c.PIN = "1234"
	c.MaxPhotoBytes = 500 << 10
	c.PresenceTTL = 30 * time.Second
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
