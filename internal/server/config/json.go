package config

import (
	"encoding/json"
	"os"

	"github.com/jmeckel/ski-race-timer-sub004/internal/flagx"
	"github.com/jmeckel/ski-race-timer-sub004/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Interval fields use timex.Duration so both "30s" and integer
// nanoseconds parse. Absent fields keep their current value.
type JsonConfig struct {
	ListenAddr    *string         `json:"listen_addr"`
	SecretKey     *string         `json:"secret_key"`
	TokenValidity *timex.Duration `json:"token_validity"`
	PIN           *string         `json:"pin"`
	MaxPhotoBytes *int            `json:"max_photo_bytes"`
	PresenceTTL   *timex.Duration `json:"presence_ttl"`
	LogLevel      *string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config into config. Without such a flag nothing is loaded. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ListenAddr != nil {
		config.ListenAddr = *c.ListenAddr
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.TokenValidity != nil {
		config.TokenValidity = c.TokenValidity.Duration
	}
	if c.PIN != nil {
		config.PIN = *c.PIN
	}
	if c.MaxPhotoBytes != nil {
		config.MaxPhotoBytes = *c.MaxPhotoBytes
	}
	if c.PresenceTTL != nil {
		config.PresenceTTL = c.PresenceTTL.Duration
	}
	if c.LogLevel != nil {
		config.LogLevel = *c.LogLevel
	}
}
