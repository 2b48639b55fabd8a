package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
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

func (r *SQLRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	var userID sql.NullString
	if e.UserID != nil {
		userID = sql.NullString{String: *e.UserID, Valid: true}
	}

	query, args, err := r.sb.Insert("audit_logs").
		Columns("user_id", "action", "details", "timestamp", "ip_address", "user_agent").
		Values(userID, e.Action, string(raw), dbx.Nanos(e.Timestamp), e.IPAddress, e.UserAgent).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, f Filter) ([]models.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	b := r.sb.Select("id", "user_id", "action", "details", "timestamp", "ip_address", "user_agent").
		From("audit_logs").
		OrderBy("id DESC").
		Limit(uint64(limit))
	if f.UserID != "" {
		b = b.Where(sq.Eq{"user_id": f.UserID})
	}
	if f.Action != "" {
		b = b.Where(sq.Eq{"action": f.Action})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.AuditEntry
	for rows.Next() {
		var (
			e       models.AuditEntry
			userID  sql.NullString
			details string
			ts      int64
		)
		if err := rows.Scan(&e.ID, &userID, &e.Action, &details, &ts, &e.IPAddress, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if userID.Valid {
			id := userID.String
			e.UserID = &id
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decode audit details of entry %d: %w", e.ID, err)
		}
		e.Timestamp = dbx.FromNanos(ts)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}
	return result, nil
}
