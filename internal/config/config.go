package config

import (
	"time"

	"github.com/dmitrijs2005/credcore/internal/dbx"
)

// Config holds runtime settings for credcore.
//
// SessionSigningKey signs session bearer tokens; when empty the process
// generates a random key at startup and tokens do not survive a restart.
type Config struct {
	DatabaseDriver      string
	DatabaseDSN         string
	SessionTTL          time.Duration
	EmailTokenTTL       time.Duration
	LockoutThreshold    int
	LockoutDuration     time.Duration
	KDFTime             uint32
	KDFMemoryKB         uint32
	KDFThreads          uint8
	TOTPIssuer          string
	SessionSigningKey   string
	LogFormat           string
	MinPasswordStrength int
	VerificationURL     string
	Debug               bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDriver = string(dbx.SQLite)
	c.DatabaseDSN = "file:credcore.db?_pragma=busy_timeout(5000)"
	c.SessionTTL = 24 * time.Hour
	c.EmailTokenTTL = 24 * time.Hour
	c.LockoutThreshold = 5
	c.LockoutDuration = 30 * time.Minute
	c.KDFTime = 3
	c.KDFMemoryKB = 64 * 1024
	c.KDFThreads = 4
	c.TOTPIssuer = "credcore"
	c.LogFormat = "text"
	c.MinPasswordStrength = 0
	c.VerificationURL = "credcore://verify"
}

// LoadConfig builds a Config from defaults, then the JSON file, then flags.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
