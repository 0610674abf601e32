// Package flagx lets several configuration loaders share one command line.
// Each loader keeps only the flags it owns, so the station and the server can
// parse their own subsets without tripping over each other's flags.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs returns the subset of args made of the flags listed in owned,
// together with their values.
//
// Both "-f value" and "-f=value" forms are recognised. A bare flag followed by
// something that looks like another flag is kept without a value.
func FilterArgs(args []string, owned []string) []string {
	known := make(map[string]struct{}, len(owned))
	for _, f := range owned {
		known[f] = struct{}{}
	}

	kept := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, mine := known[name]; mine {
				kept = append(kept, arg)
			}
			continue
		}

		if _, mine := known[arg]; !mine {
			continue
		}
		kept = append(kept, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			kept = append(kept, args[i+1])
			i++
		}
	}

	return kept
}

// ConfigFile extracts the JSON config path given via -c or -config.
// An empty string means no file was requested.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
