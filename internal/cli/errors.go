package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credcore/internal/common"
)

var errNotLoggedIn = errors.New("not logged in")

// describeError turns service errors into messages for the terminal.
// Storage and crypto details stay in the log.
func describeError(err error) string {
	var (
		locked *common.LockedError
		ve     *common.ValidationError
	)
	switch {
	case errors.As(err, &locked):
		return fmt.Sprintf("account locked, try again in %s", locked.RetryAfter.Round(time.Minute))
	case errors.As(err, &ve):
		return fmt.Sprintf("%s %s", ve.Field, ve.Reason)
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, common.ErrEmailNotVerified):
		return "email not verified yet, use 'verify' with the code from the message"
	case errors.Is(err, common.ErrDuplicateUser):
		return "an account with this email or username already exists"
	case errors.Is(err, common.ErrInvalidTwoFactor):
		return "invalid authentication code"
	case errors.Is(err, common.ErrTwoFactorNotSetUp):
		return "two-factor authentication is not enabled"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid or expired code"
	case errors.Is(err, common.ErrSessionExpired):
		return "session expired, please log in again"
	case errors.Is(err, errNotLoggedIn):
		return "please log in first"
	case errors.Is(err, common.ErrStorage), errors.Is(err, common.ErrCryptoUnavailable), errors.Is(err, common.ErrDecryption):
		return "internal error, see the log for details"
	default:
		return err.Error()
	}
}
