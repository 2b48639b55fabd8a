package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_VerificationRequired(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	res := e.register(t, "a@b.com", "Abcd1234")

	_, err := e.svc.Login(ctx, "a@b.com", "Abcd1234", "")
	require.ErrorIs(t, err, common.ErrEmailNotVerified)

	require.NoError(t, e.svc.VerifyEmail(ctx, e.lastToken(t)))

	out, err := e.svc.Login(ctx, "A@b.com", "Abcd1234", "")
	require.NoError(t, err)
	assert.Equal(t, LoginOK, out.Status)
	require.NotNil(t, out.Session)
	assert.Equal(t, res.UserID, out.Session.UserID)
	assert.Equal(t, e.clock.Now().Add(24*time.Hour), out.Session.ExpiresAt)
	assert.NotEmpty(t, out.Token)

	require.NotNil(t, out.User)
	assert.Equal(t, "a@b.com", out.User.Email)
	require.NotNil(t, out.User.LastLoginAt)

	u := e.user(t, res.UserID)
	assert.Zero(t, u.FailedLoginAttempts)
	assert.False(t, u.AccountLocked)
	assert.Nil(t, u.AccountLockExpiry)
	require.NotNil(t, u.LastLoginAt)
	assert.True(t, u.LastLoginAt.Equal(e.clock.Now()))

	assert.Equal(t, []string{
		audit.ActionUserRegistered,
		audit.ActionLoginFailed,
		audit.ActionEmailVerified,
		audit.ActionLoginSuccess,
	}, e.actions(t, res.UserID))
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.registerVerified(t, "a@b.com", "Abcd1234")

	_, errUnknown := e.svc.Login(ctx, "nobody@b.com", "Abcd1234", "")
	_, errWrong := e.svc.Login(ctx, "a@b.com", "Wrong1234", "")

	require.ErrorIs(t, errUnknown, common.ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, common.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	entries, err := e.svc.AuditLog(ctx, audit.Filter{Action: audit.ActionLoginFailed})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bad_password", entries[0].Details["reason"])
	assert.Nil(t, entries[1].UserID)
	assert.Equal(t, "unknown_email", entries[1].Details["reason"])
}

func TestLogin_LockoutAndRecovery(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.registerVerified(t, "a@b.com", "Abcd1234")

	for i := 1; i <= 4; i++ {
		_, err := e.svc.Login(ctx, "a@b.com", "wrong", "")
		require.ErrorIs(t, err, common.ErrInvalidCredentials, "attempt %d", i)
		assert.Equal(t, i, e.user(t, res.UserID).FailedLoginAttempts)
	}

	_, err := e.svc.Login(ctx, "a@b.com", "wrong", "")
	require.ErrorIs(t, err, common.ErrAccountLocked, "fifth failure locks")
	var locked *common.LockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 30*time.Minute, locked.RetryAfter)

	u := e.user(t, res.UserID)
	assert.True(t, u.AccountLocked)
	require.NotNil(t, u.AccountLockExpiry)
	assert.True(t, u.AccountLockExpiry.Equal(e.clock.Now().Add(30*time.Minute)))

	e.clock.Advance(10 * time.Minute)
	_, err = e.svc.Login(ctx, "a@b.com", "Abcd1234", "")
	require.ErrorIs(t, err, common.ErrAccountLocked, "correct password during lock")
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 20*time.Minute, locked.RetryAfter)

	e.clock.Advance(21 * time.Minute)
	out, err := e.svc.Login(ctx, "a@b.com", "Abcd1234", "")
	require.NoError(t, err)
	assert.Equal(t, LoginOK, out.Status)

	u = e.user(t, res.UserID)
	assert.Zero(t, u.FailedLoginAttempts)
	assert.False(t, u.AccountLocked)
	assert.Nil(t, u.AccountLockExpiry)

	actions := e.actions(t, res.UserID)
	assert.Contains(t, actions, audit.ActionAccountLocked)
	assert.Contains(t, actions, audit.ActionLoginBlocked)
	assert.Equal(t, audit.ActionLoginSuccess, actions[len(actions)-1])

	assert.NoError(t, testutil.GatherAndCompare(e.reg, strings.NewReader(`
# HELP credcore_lockouts_total Total number of accounts locked after repeated failures.
# TYPE credcore_lockouts_total counter
credcore_lockouts_total 1
`), "credcore_lockouts_total"))
}

func TestLogin_ExpiredLockRestartsCount(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.registerVerified(t, "a@b.com", "Abcd1234")

	for i := 0; i < 5; i++ {
		_, _ = e.svc.Login(ctx, "a@b.com", "wrong", "")
	}
	require.True(t, e.user(t, res.UserID).AccountLocked)

	e.clock.Advance(31 * time.Minute)
	_, err := e.svc.Login(ctx, "a@b.com", "wrong", "")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	u := e.user(t, res.UserID)
	assert.Equal(t, 1, u.FailedLoginAttempts)
	assert.False(t, u.AccountLocked)
}

func TestLogin_RehashesWeakerHash(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := e.registerVerified(t, "a@b.com", "Abcd1234")

	key, err := e.store.Repos().Metadata.Get(ctx, common.FieldKeyName)
	require.NoError(t, err)
	stronger, err := cryptox.NewService(key, cryptox.KDFParams{Time: 2, MemoryKB: 1024, Threads: 1, KeyLen: 32})
	require.NoError(t, err)

	deps := e.deps
	deps.Crypto = stronger
	svc := NewAuthService(deps, e.cfg)

	_, err = svc.Login(ctx, "a@b.com", "Abcd1234", "")
	require.NoError(t, err)

	hash, err := stronger.Decrypt(e.user(t, res.UserID).Fields.PasswordHash)
	require.NoError(t, err)
	assert.Contains(t, string(hash), "t=2")
	assert.False(t, stronger.NeedsRehash(hash))

	_, err = e.svc.Login(ctx, "a@b.com", "Abcd1234", "")
	require.NoError(t, err, "stronger hashes still verify")
}

// failConcurrently fires n wrong-password logins at once and returns how
// many came back as bad credentials and how many as locked.
func failConcurrently(t *testing.T, e *testEnv, email string, n int) (invalid, locked int) {
	t.Helper()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Login(context.Background(), email, "Wrong1234", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, common.ErrInvalidCredentials):
				invalid++
			case errors.Is(err, common.ErrAccountLocked):
				locked++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	return invalid, locked
}

func TestLogin_ConcurrentFailuresAreAllCounted(t *testing.T) {
	e := newTestEnv(t)
	res := e.registerVerified(t, "a@b.com", "Abcd1234")

	const n = 4
	invalid, locked := failConcurrently(t, e, "a@b.com", n)
	assert.Equal(t, n, invalid)
	assert.Zero(t, locked)

	u := e.user(t, res.UserID)
	assert.Equal(t, n, u.FailedLoginAttempts)
	assert.False(t, u.AccountLocked)
}

func TestLogin_ConcurrentFailuresLockOnce(t *testing.T) {
	e := newTestEnv(t)
	res := e.registerVerified(t, "a@b.com", "Abcd1234")

	const n = 8
	invalid, locked := failConcurrently(t, e, "a@b.com", n)
	assert.Equal(t, e.cfg.LockoutThreshold-1, invalid)
	assert.Equal(t, n-invalid, locked)

	u := e.user(t, res.UserID)
	assert.Equal(t, e.cfg.LockoutThreshold, u.FailedLoginAttempts)
	assert.True(t, u.LockActive(e.clock.Now()))

	var lockEvents int
	for _, a := range e.actions(t, res.UserID) {
		if a == audit.ActionAccountLocked {
			lockEvents++
		}
	}
	assert.Equal(t, 1, lockEvents)

	_, err := e.svc.Login(context.Background(), "a@b.com", "Abcd1234", "")
	require.ErrorIs(t, err, common.ErrAccountLocked)
}
