package twofactor

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/dbtest"
	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/models"
	tfrepo "github.com/dmitrijs2005/credcore/internal/repositories/twofactor"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Start of a 30-second window.
var windowStart = time.Unix(1_700_000_010, 0).UTC()

const fixedSecret = "JBSWY3DPEHPK3PXP"

type fixture struct {
	svc    *Service
	repo   *tfrepo.SQLRepository
	crypto *cryptox.Service
	clock  *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := cryptox.GenerateKey()
	require.NoError(t, err)
	cs, err := cryptox.NewService(key, cryptox.KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1, KeyLen: 32})
	require.NoError(t, err)

	clk := clock.NewFake(windowStart)
	repo := tfrepo.NewSQLRepository(dbtest.OpenSQLite(t), dbx.SQLite)
	return &fixture{svc: New(cs, clk, repo, "credcore-test"), repo: repo, crypto: cs, clock: clk}
}

func (f *fixture) storeSecret(t *testing.T, userID, secret string) {
	t.Helper()
	enc, err := f.crypto.EncryptString(secret)
	require.NoError(t, err)
	require.NoError(t, f.repo.Upsert(context.Background(), &models.TwoFactorSecret{
		UserID:          userID,
		EncryptedSecret: enc,
		CreatedAt:       windowStart,
	}))
}

func TestEnroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.Enroll(ctx, nil, "u1", "a@b.com")
	require.NoError(t, err)

	// 20 bytes of secret is 32 base32 characters without padding.
	assert.Len(t, e.Secret, 32)
	assert.Len(t, e.BackupCodes, BackupCodeCount)

	u, err := url.Parse(e.ProvisioningURI)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, e.Secret, u.Query().Get("secret"))
	assert.Equal(t, "credcore-test", u.Query().Get("issuer"))

	rec, err := f.repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, string(rec.EncryptedSecret.Ciphertext), e.Secret, "secret is stored encrypted")
	assert.Len(t, rec.BackupCodeHashes, BackupCodeCount)

	code, err := totp.GenerateCode(e.Secret, windowStart)
	require.NoError(t, err)
	ok, err := f.svc.Verify(ctx, "u1", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnroll_OverwritesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Enroll(ctx, nil, "u1", "a@b.com")
	require.NoError(t, err)
	second, err := f.svc.Enroll(ctx, nil, "u1", "a@b.com")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	old, err := totp.GenerateCode(first.Secret, windowStart)
	require.NoError(t, err)
	cur, err := totp.GenerateCode(second.Secret, windowStart)
	require.NoError(t, err)

	ok, err := f.svc.Verify(ctx, "u1", cur)
	require.NoError(t, err)
	assert.True(t, ok)

	if old != cur {
		ok, err = f.svc.Verify(ctx, "u1", old)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	used, err := f.svc.ConsumeBackupCode(ctx, nil, "u1", first.BackupCodes[0])
	require.NoError(t, err)
	assert.False(t, used, "old backup codes are gone")
}

func TestVerify_Window(t *testing.T) {
	f := newFixture(t)
	f.storeSecret(t, "u1", fixedSecret)
	ctx := context.Background()

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"two windows back", "822542", false},
		{"previous window", "324550", true},
		{"current window", "367665", true},
		{"next window", "870960", true},
		{"two windows ahead", "656781", false},
		{"garbage", "12ab56", false},
		{"wrong length", "12345", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.svc.Verify(ctx, "u1", tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestVerify_MatchesLibraryAcrossOffsets(t *testing.T) {
	f := newFixture(t)
	f.storeSecret(t, "u1", fixedSecret)
	ctx := context.Background()

	for _, d := range []time.Duration{-30 * time.Second, 0, 29 * time.Second, 30 * time.Second} {
		code, err := totp.GenerateCodeCustom(fixedSecret, windowStart.Add(d), validateOpts)
		require.NoError(t, err)
		ok, err := f.svc.Verify(ctx, "u1", code)
		require.NoError(t, err)
		assert.True(t, ok, "offset %s", d)
	}
}

func TestVerify_NotEnrolled(t *testing.T) {
	f := newFixture(t)

	ok, err := f.svc.Verify(context.Background(), "nobody", "123456")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_TamperedSecretIsAnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enc, err := f.crypto.EncryptString(fixedSecret)
	require.NoError(t, err)
	enc.Ciphertext[0] ^= 0xff
	require.NoError(t, f.repo.Upsert(ctx, &models.TwoFactorSecret{UserID: "u1", EncryptedSecret: enc, CreatedAt: windowStart}))

	_, err = f.svc.Verify(ctx, "u1", "367665")
	require.Error(t, err)
}

func TestConsumeBackupCode_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.Enroll(ctx, nil, "u1", "a@b.com")
	require.NoError(t, err)
	code := e.BackupCodes[3]

	ok, err := f.svc.ConsumeBackupCode(ctx, nil, "u1", strings.ToLower(code))
	require.NoError(t, err)
	assert.True(t, ok, "codes are case and dash insensitive")

	ok, err = f.svc.ConsumeBackupCode(ctx, nil, "u1", code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.ConsumeBackupCode(ctx, nil, "u2", e.BackupCodes[0])
	require.NoError(t, err)
	assert.False(t, ok, "codes are bound to their owner")

	rec, err := f.repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rec.BackupCodeHashes, BackupCodeCount-1)
}

func TestConsumeBackupCode_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.Enroll(ctx, nil, "u1", "a@b.com")
	require.NoError(t, err)

	const n = 5
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.ConsumeBackupCode(ctx, nil, "u1", e.BackupCodes[0])
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, nil, "u1", "a@b.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.Remove(ctx, nil, "u1"))

	_, err = f.repo.Get(ctx, "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
