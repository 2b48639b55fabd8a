package twofactor

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

type SQLRepository struct {
	db dbx.DBTX
	sb sq.StatementBuilderType
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, sb: d.Builder()}
}

func encodeCodes(codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", fmt.Errorf("encode backup codes: %w", err)
	}
	return string(b), nil
}

func (r *SQLRepository) Upsert(ctx context.Context, s *models.TwoFactorSecret) error {
	secret, err := json.Marshal(s.EncryptedSecret)
	if err != nil {
		return fmt.Errorf("encode secret: %w", err)
	}
	codes, err := encodeCodes(s.BackupCodeHashes)
	if err != nil {
		return err
	}

	query, args, err := r.sb.Insert("two_factor_secrets").
		Columns("user_id", "encrypted_secret", "backup_code_hashes", "created_at").
		Values(s.UserID, string(secret), codes, dbx.Nanos(s.CreatedAt)).
		Suffix(`ON CONFLICT(user_id) DO UPDATE SET
			encrypted_secret = excluded.encrypted_secret,
			backup_code_hashes = excluded.backup_code_hashes,
			created_at = excluded.created_at`).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, userID string) (*models.TwoFactorSecret, error) {
	query, args, err := r.sb.Select("user_id", "encrypted_secret", "backup_code_hashes", "created_at").
		From("two_factor_secrets").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		s       models.TwoFactorSecret
		secret  string
		codes   string
		created int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&s.UserID, &secret, &codes, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal([]byte(secret), &s.EncryptedSecret); err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if err := json.Unmarshal([]byte(codes), &s.BackupCodeHashes); err != nil {
		return nil, fmt.Errorf("decode backup codes: %w", err)
	}
	s.CreatedAt = dbx.FromNanos(created)
	return &s, nil
}

func (r *SQLRepository) ReplaceBackupCodes(ctx context.Context, userID string, prev, next []string) error {
	prevEnc, err := encodeCodes(prev)
	if err != nil {
		return err
	}
	nextEnc, err := encodeCodes(next)
	if err != nil {
		return err
	}

	query, args, err := r.sb.Update("two_factor_secrets").
		Set("backup_code_hashes", nextEnc).
		Where(sq.Eq{"user_id": userID, "backup_code_hashes": prevEnc}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, userID string) error {
	query, args, err := r.sb.Delete("two_factor_secrets").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
