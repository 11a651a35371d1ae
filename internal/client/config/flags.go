package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/spendsmart/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     base URL of the backend REST API
//	-d string     path of the local session database
//	-t duration   session time-to-live (e.g. 30m, 1h)
//	-l string     log level
//
// Only these flags are parsed (see flagx.FilterArgs), so flags owned by
// other components do not cause errors here.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the backend API")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local session database")
	fs.DurationVar(&cfg.SessionTTL, "t", cfg.SessionTTL, "session time-to-live")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")

	return fs.Parse(args)
}
