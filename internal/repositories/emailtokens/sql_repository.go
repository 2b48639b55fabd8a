package emailtokens

import (
	"context"
	"database/sql"
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

func (r *SQLRepository) Create(ctx context.Context, t *models.EmailToken) error {
	query, args, err := r.sb.Insert("email_tokens").
		Columns("token", "user_id", "type", "expires_at").
		Values(t.Token, t.UserID, t.Type, dbx.Nanos(t.ExpiresAt)).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Consume(ctx context.Context, token string) (*models.EmailToken, error) {
	query, args, err := r.sb.Delete("email_tokens").
		Where(sq.Eq{"token": token}).
		Suffix("RETURNING token, user_id, type, expires_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		t       models.EmailToken
		expires int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&t.Token, &t.UserID, &t.Type, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.ExpiresAt = dbx.FromNanos(expires)
	return &t, nil
}

func (r *SQLRepository) DeleteByUser(ctx context.Context, userID string) error {
	query, args, err := r.sb.Delete("email_tokens").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
