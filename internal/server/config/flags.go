package config

import (
	"flag"
	"os"

	"github.com/jmeckel/ski-race-timer-sub004/internal/flagx"
)

var ownedFlags = []string{"-a", "-s", "-t", "-pin", "-photo", "-presence", "-log"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g., ":8080")
//	-s string          JWT HMAC secret key
//	-t duration        token validity
//	-pin string        race PIN
//	-photo int         max inline photo size in bytes
//	-presence duration device presence window
//	-log string        log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], ownedFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.TokenValidity, "t", config.TokenValidity, "token validity")
	fs.StringVar(&config.PIN, "pin", config.PIN, "race PIN")
	fs.IntVar(&config.MaxPhotoBytes, "photo", config.MaxPhotoBytes, "max inline photo size (bytes)")
	fs.DurationVar(&config.PresenceTTL, "presence", config.PresenceTTL, "device presence window")
	fs.StringVar(&config.LogLevel, "log", config.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
