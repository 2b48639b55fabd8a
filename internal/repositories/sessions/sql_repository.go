package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/models"
)

var columns = []string{"session_id", "user_id", "created_at", "expires_at", "last_activity"}

type SQLRepository struct {
	db dbx.DBTX
	sb sq.StatementBuilderType
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, sb: d.Builder()}
}

func (r *SQLRepository) Create(ctx context.Context, s *models.Session) error {
	query, args, err := r.sb.Insert("sessions").Columns(columns...).
		Values(s.SessionID, s.UserID, dbx.Nanos(s.CreatedAt), dbx.Nanos(s.ExpiresAt), dbx.Nanos(s.LastActivity)).
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

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (models.Session, error) {
	var (
		s                          models.Session
		created, expires, activity int64
	)
	if err := row.Scan(&s.SessionID, &s.UserID, &created, &expires, &activity); err != nil {
		return s, err
	}
	s.CreatedAt = dbx.FromNanos(created)
	s.ExpiresAt = dbx.FromNanos(expires)
	s.LastActivity = dbx.FromNanos(activity)
	return s, nil
}

func (r *SQLRepository) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	query, args, err := r.sb.Select(columns...).From("sessions").Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return nil, err
	}

	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	query, args, err := r.sb.Select(columns...).From("sessions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error {
	query, args, err := r.sb.Update("sessions").
		Set("last_activity", dbx.Nanos(at)).
		Where(sq.Eq{"session_id": sessionID}).
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
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.exec(ctx, r.sb.Delete("sessions").Where(sq.Eq{"session_id": sessionID}))
	return err
}

func (r *SQLRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, r.sb.Delete("sessions").Where(sq.Eq{"user_id": userID}))
}

func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, r.sb.Delete("sessions").Where(sq.LtOrEq{"expires_at": dbx.Nanos(now)}))
}

func (r *SQLRepository) exec(ctx context.Context, b sq.DeleteBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
