// Package policy validates user-supplied credentials before they reach
// storage.
package policy

import (
	"fmt"
	"unicode"

	"github.com/dmitrijs2005/credcore/internal/common"
	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	DefaultMinPasswordLength = 8
	fieldPassword            = "password"
)

// PasswordRule validates a password according to a single rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies rules in order and stops at the first
// violation, which is a *common.ValidationError.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// DefaultPasswordValidator requires at least 8 characters with upper case,
// lower case and a digit. minStrength > 0 additionally requires a zxcvbn
// score of at least minStrength, judged against userInputs.
func DefaultPasswordValidator(minStrength int, userInputs ...string) *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(DefaultMinPasswordLength),
		RequireMixedCaseAndDigitRule(),
		RequirePasswordStrengthRule(minStrength, userInputs...),
	)
}

func (v *PasswordValidator) Validate(password string) error {
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return common.NewValidationError(fieldPassword, fmt.Sprintf("must be at least %d characters long", min))
		}
		return nil
	})
}

func RequireMixedCaseAndDigitRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		var hasUpper, hasLower, hasDigit bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			case unicode.IsDigit(r):
				hasDigit = true
			}
		}

		switch {
		case !hasUpper:
			return common.NewValidationError(fieldPassword, "must include an upper-case letter")
		case !hasLower:
			return common.NewValidationError(fieldPassword, "must include a lower-case letter")
		case !hasDigit:
			return common.NewValidationError(fieldPassword, "must include a digit")
		}
		return nil
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score. A minScore
// of 0 disables the rule.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	want := min(minScore, 4)
	return PasswordRuleFunc(func(password string) error {
		if want <= 0 {
			return nil
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= want {
			return nil
		}
		return common.NewValidationError(fieldPassword, "is too weak; choose a more complex value")
	})
}

// RequireDifferentFrom rejects reusing the current password.
func RequireDifferentFrom(current string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if password == current {
			return common.NewValidationError(fieldPassword, "must differ from the current password")
		}
		return nil
	})
}
