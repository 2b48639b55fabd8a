package policy

import (
	"net/mail"
	"strings"

	"github.com/dmitrijs2005/credcore/internal/common"
)

const fieldEmail = "email"

// NormalizeEmail trims and lower-cases an address. Every lookup and every
// stored email goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare addr-spec whose domain has at least one dot.
// Display names ("Bob <bob@x.io>") are rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return common.NewValidationError(fieldEmail, "is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return common.NewValidationError(fieldEmail, "is not a valid address")
	}

	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return common.NewValidationError(fieldEmail, "is not a valid address")
	}
	return nil
}

const (
	fieldUsername     = "username"
	maxUsernameLength = 64
)

// ValidateUsername allows printable, non-space characters.
func ValidateUsername(username string) error {
	if username == "" {
		return common.NewValidationError(fieldUsername, "is required")
	}
	if len([]rune(username)) > maxUsernameLength {
		return common.NewValidationError(fieldUsername, "is too long")
	}
	for _, r := range username {
		if r <= ' ' || r == 0x7f {
			return common.NewValidationError(fieldUsername, "must not contain spaces or control characters")
		}
	}
	return nil
}
