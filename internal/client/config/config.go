package config

import "time"

// Broadcast transports.
const (
	BroadcastHub  = "hub"
	BroadcastMQTT = "mqtt"
	BroadcastNone = "none"
)

// Config holds runtime settings for the timing station.
//
// Durations are time.Duration values; the JSON file accepts "5s" style
// strings or integer nanoseconds.
type Config struct {
	ServerURL  string
	DBPath     string
	DeviceName string
	RaceID     string

	PollInterval        time.Duration
	IdlePollInterval    time.Duration
	MaxBackoff          time.Duration
	OnlineCheckInterval time.Duration
	FlushDebounce       time.Duration
	RequestTimeout      time.Duration
	RateLimit           float64

	Broadcast  string
	MQTTBroker string

	MetricsAddr string
	LogLevel    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBPath = "ski-race-timer.db"
	c.PollInterval = 5 * time.Second
	c.IdlePollInterval = 30 * time.Second
	c.MaxBackoff = 2 * time.Minute
	c.OnlineCheckInterval = 3 * time.Second
	c.FlushDebounce = 100 * time.Millisecond
	c.RequestTimeout = 10 * time.Second
	c.RateLimit = 10
	c.Broadcast = BroadcastHub
	c.MQTTBroker = "tcp://127.0.0.1:1883"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
