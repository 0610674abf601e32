package config

import (
	"encoding/json"
	"os"

	"github.com/jmeckel/ski-race-timer-sub004/internal/flagx"
	"github.com/jmeckel/ski-race-timer-sub004/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent fields
// leave the current Config value untouched.
type JsonConfig struct {
	ServerURL           *string         `json:"server_url"`
	DBPath              *string         `json:"db_path"`
	DeviceName          *string         `json:"device_name"`
	RaceID              *string         `json:"race_id"`
	PollInterval        *timex.Duration `json:"poll_interval"`
	IdlePollInterval    *timex.Duration `json:"idle_poll_interval"`
	MaxBackoff          *timex.Duration `json:"max_backoff"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	FlushDebounce       *timex.Duration `json:"flush_debounce"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	RateLimit           *float64        `json:"rate_limit"`
	Broadcast           *string         `json:"broadcast"`
	MQTTBroker          *string         `json:"mqtt_broker"`
	MetricsAddr         *string         `json:"metrics_addr"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without such a flag nothing is loaded. Read and unmarshal
// errors panic.
func parseJson(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc JsonConfig) apply(cfg *Config) {
	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.DeviceName, jc.DeviceName)
	setString(&cfg.RaceID, jc.RaceID)
	setString(&cfg.Broadcast, jc.Broadcast)
	setString(&cfg.MQTTBroker, jc.MQTTBroker)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.PollInterval != nil {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.IdlePollInterval != nil {
		cfg.IdlePollInterval = jc.IdlePollInterval.Duration
	}
	if jc.MaxBackoff != nil {
		cfg.MaxBackoff = jc.MaxBackoff.Duration
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.FlushDebounce != nil {
		cfg.FlushDebounce = jc.FlushDebounce.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RateLimit != nil {
		cfg.RateLimit = *jc.RateLimit
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
