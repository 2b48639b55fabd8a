package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/models"
)

var columns = []string{
	"id", "email", "username", "encrypted_fields", "role",
	"is_email_verified", "is_two_factor_enabled", "failed_login_attempts",
	"account_locked", "account_lock_expiry", "created_at", "updated_at",
	"last_login_at", "version",
}

type SQLRepository struct {
	db      dbx.DBTX
	sb      sq.StatementBuilderType
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, sb: d.Builder(), dialect: d}
}

func (r *SQLRepository) Create(ctx context.Context, u *models.User) error {
	fields, err := json.Marshal(u.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	query, args, err := r.sb.Insert("users").Columns(columns...).Values(
		u.ID, u.Email, u.Username, string(fields), u.Role,
		u.IsEmailVerified, u.IsTwoFactorEnabled, u.FailedLoginAttempts,
		u.AccountLocked, dbx.NullNanos(u.AccountLockExpiry),
		dbx.Nanos(u.CreatedAt), dbx.Nanos(u.UpdatedAt),
		dbx.NullNanos(u.LastLoginAt), int64(1),
	).ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	u.Version = 1
	return nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id, false)
}

func (r *SQLRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id, true)
}

func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email, false)
}

func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username, false)
}

func (r *SQLRepository) getBy(ctx context.Context, column, value string, lock bool) (*models.User, error) {
	b := r.sb.Select(columns...).From("users").Where(sq.Eq{column: value})
	if suffix := r.dialect.RowLockSuffix(); lock && suffix != "" {
		b = b.Suffix(suffix)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	var (
		u         models.User
		fields    string
		lockUntil sql.NullInt64
		lastLogin sql.NullInt64
		created   int64
		updated   int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.Username, &fields, &u.Role,
		&u.IsEmailVerified, &u.IsTwoFactorEnabled, &u.FailedLoginAttempts,
		&u.AccountLocked, &lockUntil, &created, &updated,
		&lastLogin, &u.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal([]byte(fields), &u.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of user %s: %w", u.ID, err)
	}
	u.AccountLockExpiry = dbx.TimePtr(lockUntil)
	u.LastLoginAt = dbx.TimePtr(lastLogin)
	u.CreatedAt = dbx.FromNanos(created)
	u.UpdatedAt = dbx.FromNanos(updated)

	return &u, nil
}

func (r *SQLRepository) Update(ctx context.Context, u *models.User) error {
	fields, err := json.Marshal(u.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	query, args, err := r.sb.Update("users").SetMap(map[string]any{
		"username":              u.Username,
		"encrypted_fields":      string(fields),
		"role":                  u.Role,
		"is_email_verified":     u.IsEmailVerified,
		"is_two_factor_enabled": u.IsTwoFactorEnabled,
		"failed_login_attempts": u.FailedLoginAttempts,
		"account_locked":        u.AccountLocked,
		"account_lock_expiry":   dbx.NullNanos(u.AccountLockExpiry),
		"updated_at":            dbx.Nanos(u.UpdatedAt),
		"last_login_at":         dbx.NullNanos(u.LastLoginAt),
		"version":               u.Version + 1,
	}).Where(sq.Eq{"id": u.ID, "version": u.Version}).ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}

	u.Version++
	return nil
}
