package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/services"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

const defaultAuditRows = 20

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

func (a *App) secret(text string) (string, error) {
	pw, err := getPassword(text, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// requireSession re-checks the session with the store, so an expired or
// revoked session logs the shell out.
func (a *App) requireSession(ctx context.Context) error {
	if a.session == nil {
		return errNotLoggedIn
	}
	s, err := a.auth.Authenticate(ctx, a.session.SessionID)
	if err != nil {
		a.clearSession()
		return err
	}
	a.session = s
	return nil
}

func (a *App) Register(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.secret("Enter password")
	if err != nil {
		return err
	}
	username, err := a.prompt("Enter username (empty to use the email)")
	if err != nil {
		return err
	}
	first, err := a.prompt("Enter first name (optional)")
	if err != nil {
		return err
	}
	last, err := a.prompt("Enter last name (optional)")
	if err != nil {
		return err
	}

	res, err := a.auth.Register(ctx, services.RegisterInput{
		Email:     email,
		Password:  password,
		Username:  username,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s. A verification code was sent to your email; run 'verify' to confirm.\n", res.Email)
	return nil
}

func (a *App) Verify(ctx context.Context, args []string) error {
	var token string
	if len(args) > 0 {
		token = args[0]
	} else {
		var err error
		if token, err = a.prompt("Enter verification code"); err != nil {
			return err
		}
	}

	if err := a.auth.VerifyEmail(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email verified, you can log in now.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.secret("Enter password")
	if err != nil {
		return err
	}

	res, err := a.auth.Login(ctx, email, password, "")
	if err != nil {
		return err
	}

	if res.Status == services.LoginRequires2FA {
		code, err := a.prompt("Enter authentication code (or a backup code)")
		if err != nil {
			return err
		}
		if res, err = a.auth.Login(ctx, email, password, code); err != nil {
			return err
		}
	}

	a.session = res.Session
	a.token = res.Token
	a.user = res.User
	fmt.Fprintf(a.out, "Welcome, %s. Session valid until %s.\n", a.user.Username, a.session.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	u, err := a.auth.GetUserByEmail(ctx, a.user.Email)
	if err != nil {
		return err
	}
	a.user = u

	fmt.Fprintf(a.out, "id:         %s\n", u.ID)
	fmt.Fprintf(a.out, "email:      %s (verified: %t)\n", u.Email, u.IsEmailVerified)
	fmt.Fprintf(a.out, "username:   %s\n", u.Username)
	if u.FirstName != "" || u.LastName != "" {
		fmt.Fprintf(a.out, "name:       %s %s\n", u.FirstName, u.LastName)
	}
	fmt.Fprintf(a.out, "role:       %s\n", u.Role)
	fmt.Fprintf(a.out, "two-factor: %t\n", u.IsTwoFactorEnabled)
	if u.LastLoginAt != nil {
		fmt.Fprintf(a.out, "last login: %s\n", u.LastLoginAt.Local().Format(time.DateTime))
	}
	return nil
}

// Profile asks for each field; an empty answer keeps the current value.
func (a *App) Profile(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}

	var upd services.ProfileUpdate
	for _, f := range []struct {
		prompt string
		dst    **string
	}{
		{"New username (empty to keep)", &upd.Username},
		{"New first name (empty to keep)", &upd.FirstName},
		{"New last name (empty to keep)", &upd.LastName},
	} {
		v, err := a.prompt(f.prompt)
		if err != nil {
			return err
		}
		if v != "" {
			*f.dst = &v
		}
	}

	u, err := a.auth.UpdateUser(ctx, a.session.UserID, upd)
	if err != nil {
		return err
	}
	a.user = u
	fmt.Fprintln(a.out, "Profile updated.")
	return nil
}

// Passwd changes the password. Every session ends, this one included.
func (a *App) Passwd(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	oldPassword, err := a.secret("Current password")
	if err != nil {
		return err
	}
	newPassword, err := a.secret("New password")
	if err != nil {
		return err
	}

	if err := a.auth.ChangePassword(ctx, a.session.UserID, oldPassword, newPassword); err != nil {
		return err
	}
	a.clearSession()
	fmt.Fprintln(a.out, "Password changed. Please log in again.")
	return nil
}

func (a *App) Enable2FA(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	enr, err := a.auth.Enable2FA(ctx, a.session.UserID)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Add this account to your authenticator app:")
	fmt.Fprintf(a.out, "  secret: %s\n", enr.Secret)
	fmt.Fprintf(a.out, "  uri:    %s\n", enr.ProvisioningURI)
	fmt.Fprintln(a.out, "Backup codes (each works once, store them safely):")
	for _, c := range enr.BackupCodes {
		fmt.Fprintf(a.out, "  %s\n", c)
	}
	return nil
}

func (a *App) Disable2FA(ctx context.Context) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}
	code, err := a.prompt("Enter authentication code (or a backup code)")
	if err != nil {
		return err
	}
	if err := a.auth.Disable2FA(ctx, a.session.UserID, code); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Two-factor authentication disabled.")
	return nil
}

func (a *App) Audit(ctx context.Context, args []string) error {
	if err := a.requireSession(ctx); err != nil {
		return err
	}

	limit := defaultAuditRows
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return errors.New("usage: audit [number of entries]")
		}
		limit = n
	}

	entries, err := a.auth.AuditLog(ctx, audit.Filter{UserID: a.session.UserID, Limit: limit})
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%s  %-20s %s\n", e.Timestamp.Local().Format(time.DateTime), e.Action, e.IPAddress)
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if a.session == nil {
		return errNotLoggedIn
	}
	if err := a.auth.Logout(ctx, a.session.SessionID); err != nil {
		return err
	}
	a.clearSession()
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
