package users

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/dbtest"
	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newUser(id, email, username string) *models.User {
	return &models.User{
		ID:       id,
		Email:    email,
		Username: username,
		Role:     models.RoleUser,
		Fields: models.EncryptedFields{
			PasswordHash: cryptox.EncryptedField{IV: []byte("iv-iv-iv-iv-"), Ciphertext: []byte("hash")},
			Email:        cryptox.EncryptedField{IV: []byte("iv-iv-iv-iv2"), Ciphertext: []byte("mail")},
		},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func newRepo(t *testing.T) *SQLRepository {
	t.Helper()
	return NewSQLRepository(dbtest.OpenSQLite(t), dbx.SQLite)
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	u := newUser("u1", "a@b.com", "alice")
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, int64(1), u.Version)

	byEmail, err := repo.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "alice", byEmail.Username)
	assert.Equal(t, u.Fields, byEmail.Fields)
	assert.True(t, t0.Equal(byEmail.CreatedAt))
	assert.Nil(t, byEmail.LastLoginAt)
	assert.Nil(t, byEmail.AccountLockExpiry)
	assert.False(t, byEmail.IsEmailVerified)

	byID, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)
}

func TestGet_NotFound(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.GetByEmail(context.Background(), "nobody@b.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreate_DuplicateEmailOrUsername(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Create(ctx, newUser("u1", "a@b.com", "alice")))

	err := repo.Create(ctx, newUser("u2", "a@b.com", "bob"))
	require.ErrorIs(t, err, common.ErrAlreadyExists)

	err = repo.Create(ctx, newUser("u3", "c@d.com", "alice"))
	require.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestUpdate_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Create(ctx, newUser("u1", "a@b.com", "alice")))

	first, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	stale, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)

	lockUntil := t0.Add(30 * time.Minute)
	first.FailedLoginAttempts = 5
	first.AccountLocked = true
	first.AccountLockExpiry = &lockUntil
	first.IsEmailVerified = true
	first.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	stale.FailedLoginAttempts = 1
	require.ErrorIs(t, repo.Update(ctx, stale), common.ErrVersionConflict)

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedLoginAttempts)
	assert.True(t, got.AccountLocked)
	require.NotNil(t, got.AccountLockExpiry)
	assert.True(t, lockUntil.Equal(*got.AccountLockExpiry))
	assert.True(t, got.IsEmailVerified)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdate_UsernameTaken(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Create(ctx, newUser("u1", "a@b.com", "alice")))
	require.NoError(t, repo.Create(ctx, newUser("u2", "c@d.com", "bob")))

	bob, err := repo.GetByID(ctx, "u2")
	require.NoError(t, err)
	bob.Username = "alice"
	require.ErrorIs(t, repo.Update(ctx, bob), common.ErrAlreadyExists)
}

func TestGetByIDForUpdate_SQLite(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, newUser("u1", "a@b.com", "alice")))

	got, err := repo.GetByIDForUpdate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = repo.GetByIDForUpdate(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
