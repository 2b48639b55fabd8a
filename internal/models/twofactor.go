package models

import (
	"time"

	"github.com/dmitrijs2005/credcore/internal/cryptox"
)

// TwoFactorSecret is the per-user TOTP enrollment. Re-enrollment replaces
// the row. BackupCodeHashes are hex SHA-256 digests of unused codes.
type TwoFactorSecret struct {
	UserID           string
	EncryptedSecret  cryptox.EncryptedField
	BackupCodeHashes []string
	CreatedAt        time.Time
}
