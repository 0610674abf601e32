package config

import (
	"flag"
	"os"

	"github.com/jmeckel/ski-race-timer-sub004/internal/flagx"
)

var ownedFlags = []string{"-s", "-d", "-n", "-r", "-p", "-i", "-b", "-m", "-metrics", "-log"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-s string     coordination service base URL
//	-d string     path of the local SQLite database
//	-n string     device name shown to other stations
//	-r string     race id to join
//	-p duration   base poll interval
//	-i duration   online check interval
//	-b string     broadcast transport: hub, mqtt or none
//	-m string     MQTT broker URL
//	-metrics addr listen address for /metrics (empty disables)
//	-log string   log level
//
// Only the flags listed above are parsed; everything else on the command line
// is ignored here.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], ownedFlags)

	fs := flag.NewFlagSet("station", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "coordination service URL")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database path")
	fs.StringVar(&cfg.DeviceName, "n", cfg.DeviceName, "device name")
	fs.StringVar(&cfg.RaceID, "r", cfg.RaceID, "race id")
	fs.DurationVar(&cfg.PollInterval, "p", cfg.PollInterval, "base poll interval")
	fs.DurationVar(&cfg.OnlineCheckInterval, "i", cfg.OnlineCheckInterval, "online check interval")
	fs.StringVar(&cfg.Broadcast, "b", cfg.Broadcast, "broadcast transport (hub, mqtt, none)")
	fs.StringVar(&cfg.MQTTBroker, "m", cfg.MQTTBroker, "MQTT broker URL")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
