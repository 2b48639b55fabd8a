package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/credcore/internal/flagx"
)

// parseFlags overlays cfg with the flags this package owns. Other flags on
// the command line are filtered out first so they do not cause errors.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-driver", "-d", "-s", "-l", "-t", "-n", "-m", "-z", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDriver, "driver", cfg.DatabaseDriver, "storage backend (sqlite or postgres)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SessionSigningKey, "s", cfg.SessionSigningKey, "session token signing key")
	fs.StringVar(&cfg.LogFormat, "l", cfg.LogFormat, "log format (text, json or zap)")
	sessionTTL := fs.Int("t", int(cfg.SessionTTL.Minutes()), "session lifetime (in minutes)")
	fs.IntVar(&cfg.LockoutThreshold, "n", cfg.LockoutThreshold, "failed logins before lockout")
	lockout := fs.Int("m", int(cfg.LockoutDuration.Minutes()), "lockout duration (in minutes)")
	fs.IntVar(&cfg.MinPasswordStrength, "z", cfg.MinPasswordStrength, "minimum zxcvbn password score (0 disables)")
	fs.BoolVar(&cfg.Debug, "v", cfg.Debug, "debug logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SessionTTL = time.Duration(*sessionTTL) * time.Minute
	cfg.LockoutDuration = time.Duration(*lockout) * time.Minute
}
