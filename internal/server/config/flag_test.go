package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-s", "secret", "-t", "2h", "-pin", "0000",
			"-photo", "1024", "-presence", "1m", "-log", "debug",
		}, expectPanic: false,
			expected: &Config{
				ListenAddr:    "127.0.0.1:9090",
				SecretKey:     "secret",
				TokenValidity: 2 * time.Hour,
				PIN:           "0000",
				MaxPhotoBytes: 1024,
				PresenceTTL:   time.Minute,
				LogLevel:      "debug",
			}},
		{name: "foreign flags ignored", args: []string{"cmd", "-a", ":1", "-d", "db.sqlite"},
			expected: &Config{ListenAddr: ":1"}},
		{name: "bad duration", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
		{name: "bad photo size", args: []string{"cmd", "-photo", "big"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
