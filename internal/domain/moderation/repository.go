package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository is the audit ledger. It is append-only by contract: no
// update or delete operation exists, and none may be added.
type Repository interface {
	Append(ctx context.Context, entry *AuditLogEntry) (uuid.UUID, error)
	Query(ctx context.Context, filter *QueryFilter) ([]*AuditLogEntry, error)
	LatestForContent(ctx context.Context, ref ContentReference) (*AuditLogEntry, error)
	Count(ctx context.Context, filter *QueryFilter) (int, error)
	Stats(ctx context.Context, since, until time.Time) (*Stats, error)
}

// QueryFilter narrows ledger queries. Zero values mean "no constraint".
type QueryFilter struct {
	Since          time.Time
	Until          time.Time
	Classification Classification
	ContentType    ContentType
	ContentID      string
	Limit          int
	Offset         int
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates the ledger repository. The ledger always lives
// in PostgreSQL, whichever backend stores the content itself.
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, entry *AuditLogEntry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO moderation_audit_log (
			id, content_type, content_id, course_id, timestamp,
			classifier_output, reasoning, classification, action_taken,
			original_author, moderator_id, override_reason, override_at,
			overrides_entry_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ContentType,
		entry.ContentID,
		entry.CourseID,
		entry.Timestamp,
		entry.ClassifierOutput,
		entry.Reasoning,
		entry.Classification,
		entry.ActionTaken,
		entry.OriginalAuthor,
		entry.ModeratorID,
		entry.OverrideReason,
		entry.OverrideAt,
		entry.OverridesEntryID,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("append audit entry: %w", err)
	}
	return entry.ID, nil
}

func (r *repository) Query(ctx context.Context, filter *QueryFilter) ([]*AuditLogEntry, error) {
	query := `
		SELECT * FROM moderation_audit_log
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if filter != nil {
		if !filter.Since.IsZero() {
			query += fmt.Sprintf(` AND timestamp >= $%d`, argPos)
			args = append(args, filter.Since)
			argPos++
		}
		if !filter.Until.IsZero() {
			query += fmt.Sprintf(` AND timestamp < $%d`, argPos)
			args = append(args, filter.Until)
			argPos++
		}
		if filter.Classification != "" {
			query += fmt.Sprintf(` AND classification = $%d`, argPos)
			args = append(args, filter.Classification)
			argPos++
		}
		if filter.ContentType != "" {
			query += fmt.Sprintf(` AND content_type = $%d`, argPos)
			args = append(args, filter.ContentType)
			argPos++
		}
		if filter.ContentID != "" {
			query += fmt.Sprintf(` AND content_id = $%d`, argPos)
			args = append(args, filter.ContentID)
			argPos++
		}

		query += ` ORDER BY timestamp DESC`

		if filter.Limit > 0 {
			query += fmt.Sprintf(` LIMIT $%d`, argPos)
			args = append(args, filter.Limit)
			argPos++
		}
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argPos)
			args = append(args, filter.Offset)
		}
	} else {
		query += ` ORDER BY timestamp DESC LIMIT 50`
	}

	var entries []*AuditLogEntry
	err := r.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

func (r *repository) LatestForContent(ctx context.Context, ref ContentReference) (*AuditLogEntry, error) {
	query := `
		SELECT * FROM moderation_audit_log
		WHERE content_type = $1 AND content_id = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var entry AuditLogEntry
	err := r.db.GetContext(ctx, &entry, query, ref.ContentType, ref.ContentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM moderation_audit_log WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter != nil {
		if !filter.Since.IsZero() {
			query += fmt.Sprintf(` AND timestamp >= $%d`, argPos)
			args = append(args, filter.Since)
			argPos++
		}
		if !filter.Until.IsZero() {
			query += fmt.Sprintf(` AND timestamp < $%d`, argPos)
			args = append(args, filter.Until)
			argPos++
		}
		if filter.Classification != "" {
			query += fmt.Sprintf(` AND classification = $%d`, argPos)
			args = append(args, filter.Classification)
			argPos++
		}
		if filter.ContentType != "" {
			query += fmt.Sprintf(` AND content_type = $%d`, argPos)
			args = append(args, filter.ContentType)
			argPos++
		}
		if filter.ContentID != "" {
			query += fmt.Sprintf(` AND content_id = $%d`, argPos)
			args = append(args, filter.ContentID)
		}
	}

	var count int
	err := r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

func (r *repository) Stats(ctx context.Context, since, until time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE classification = 'spam') AS spam
		FROM moderation_audit_log
		WHERE timestamp >= $1 AND timestamp < $2
	`
	var row struct {
		Total int `db:"total"`
		Spam  int `db:"spam"`
	}
	if err := r.db.GetContext(ctx, &row, query, since, until); err != nil {
		return nil, err
	}

	stats := &Stats{
		Total: row.Total,
		Spam:  row.Spam,
		Since: since,
		Until: until,
	}
	if row.Total > 0 {
		stats.SpamRate = float64(row.Spam) / float64(row.Total)
	}
	return stats, nil
}
