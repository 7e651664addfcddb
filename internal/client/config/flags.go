package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/reviewdesk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// The function filters os.Args to the flags it knows about using
// flagx.FilterArgs, so -c/-config and unrelated arguments pass through.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the auth backend")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	return nil
}
