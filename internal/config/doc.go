// Package config loads runtime configuration for credcore.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-driver string  storage backend: sqlite or postgres
//	-d string       database DSN
//	-s string       session token signing key
//	-l string       log format: text, json or zap
//	-t int          session lifetime (minutes)
//	-n int          failed logins before the account is locked
//	-m int          lock duration (minutes)
//	-z int          minimum zxcvbn password score, 0 disables the check
//	-v              debug logging
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "30m" or
// integer nanoseconds:
//
//	{
//	  "database_driver": "sqlite",
//	  "database_dsn": "file:credcore.db?_pragma=busy_timeout(5000)",
//	  "session_ttl": "24h",
//	  "email_token_ttl": "24h",
//	  "lockout_threshold": 5,
//	  "lockout_duration": "30m",
//	  "kdf_time": 3,
//	  "kdf_memory_kb": 65536,
//	  "kdf_threads": 4,
//	  "totp_issuer": "credcore",
//	  "log_format": "text"
//	}
//
// Only keys present in the file override the defaults.
package config
