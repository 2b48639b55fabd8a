package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/credcore/internal/flagx"
	"github.com/dmitrijs2005/credcore/internal/timex"
)

// JsonConfig is a DTO used only for unmarshalling. Pointer fields tell
// absent keys apart from zero values.
type JsonConfig struct {
	DatabaseDriver      *string         `json:"database_driver"`
	DatabaseDSN         *string         `json:"database_dsn"`
	SessionTTL          *timex.Duration `json:"session_ttl"`
	EmailTokenTTL       *timex.Duration `json:"email_token_ttl"`
	LockoutThreshold    *int            `json:"lockout_threshold"`
	LockoutDuration     *timex.Duration `json:"lockout_duration"`
	KDFTime             *uint32         `json:"kdf_time"`
	KDFMemoryKB         *uint32         `json:"kdf_memory_kb"`
	KDFThreads          *uint8          `json:"kdf_threads"`
	TOTPIssuer          *string         `json:"totp_issuer"`
	SessionSigningKey   *string         `json:"session_signing_key"`
	LogFormat           *string         `json:"log_format"`
	MinPasswordStrength *int            `json:"min_password_strength"`
	VerificationURL     *string         `json:"verification_url"`
	Debug               *bool           `json:"debug"`
}

// parseJson overlays cfg with the file named by -c / -config. Without
// either flag it does nothing. Read and decode errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	set(&cfg.DatabaseDriver, jc.DatabaseDriver)
	set(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setDuration(&cfg.SessionTTL, jc.SessionTTL)
	setDuration(&cfg.EmailTokenTTL, jc.EmailTokenTTL)
	set(&cfg.LockoutThreshold, jc.LockoutThreshold)
	setDuration(&cfg.LockoutDuration, jc.LockoutDuration)
	set(&cfg.KDFTime, jc.KDFTime)
	set(&cfg.KDFMemoryKB, jc.KDFMemoryKB)
	set(&cfg.KDFThreads, jc.KDFThreads)
	set(&cfg.TOTPIssuer, jc.TOTPIssuer)
	set(&cfg.SessionSigningKey, jc.SessionSigningKey)
	set(&cfg.LogFormat, jc.LogFormat)
	set(&cfg.MinPasswordStrength, jc.MinPasswordStrength)
	set(&cfg.VerificationURL, jc.VerificationURL)
	set(&cfg.Debug, jc.Debug)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
