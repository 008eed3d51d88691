package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openedx/forum/internal/domain/moderation"
)

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates the PostgreSQL-backed content repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateThread(ctx context.Context, t *Thread) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO threads (id, course_id, author_id, title, body, is_spam, created_at, updated_at)
		VALUES (:id, :course_id, :author_id, :title, :body, :is_spam, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetThread(ctx context.Context, id string) (*Thread, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	var t Thread
	err := r.db.GetContext(ctx, &t, `SELECT * FROM threads WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &t, nil
}

func (r *postgresRepository) ListThreads(ctx context.Context, f ListFilter) ([]Thread, error) {
	query := `SELECT * FROM threads`
	args := []interface{}{}
	if f.CourseID != "" {
		query += ` WHERE course_id = $1`
		args = append(args, f.CourseID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, f.Limit, f.Offset)

	threads := []Thread{}
	if err := r.db.SelectContext(ctx, &threads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

func (r *postgresRepository) CreateComment(ctx context.Context, c *Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO comments (id, thread_id, course_id, author_id, body, is_spam, created_at, updated_at)
		VALUES (:id, :thread_id, :course_id, :author_id, :body, :is_spam, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetComment(ctx context.Context, id string) (*Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	var c Comment
	err := r.db.GetContext(ctx, &c, `SELECT * FROM comments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

func (r *postgresRepository) ListComments(ctx context.Context, threadID string, limit, offset int) ([]Comment, error) {
	comments := []Comment{}
	query := fmt.Sprintf(
		`SELECT * FROM comments WHERE thread_id = $1 ORDER BY created_at ASC LIMIT %d OFFSET %d`,
		limit, offset,
	)
	if err := r.db.SelectContext(ctx, &comments, query, threadID); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// tableFor maps a content type to its table. Both tables carry the same
// moderation columns, so flag writes differ only in the table name.
func tableFor(ct moderation.ContentType) (string, error) {
	switch ct {
	case moderation.ContentTypeThread:
		return "threads", nil
	case moderation.ContentTypeComment:
		return "comments", nil
	default:
		return "", fmt.Errorf("unknown content type: %s", ct)
	}
}

func (r *postgresRepository) FlagAsSpam(ctx context.Context, ref moderation.ContentReference, reason string) error {
	table, err := tableFor(ref.ContentType)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(ref.ContentID); err != nil {
		return ErrInvalidID
	}

	query := fmt.Sprintf(
		`UPDATE %s SET is_spam = TRUE, ai_moderation_reason = $1, updated_at = $2 WHERE id = $3`,
		table,
	)
	res, err := r.db.ExecContext(ctx, query, reason, time.Now().UTC(), ref.ContentID)
	if err != nil {
		return fmt.Errorf("failed to flag %s as spam: %w", ref.ContentType, err)
	}
	return checkFound(res, ref)
}

func (r *postgresRepository) UnflagSpam(ctx context.Context, ref moderation.ContentReference) error {
	table, err := tableFor(ref.ContentType)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(ref.ContentID); err != nil {
		return ErrInvalidID
	}

	query := fmt.Sprintf(
		`UPDATE %s SET is_spam = FALSE, ai_moderation_reason = NULL, updated_at = $1 WHERE id = $2`,
		table,
	)
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), ref.ContentID)
	if err != nil {
		return fmt.Errorf("failed to unflag %s: %w", ref.ContentType, err)
	}
	return checkFound(res, ref)
}

func (r *postgresRepository) ReadModerationState(ctx context.Context, ref moderation.ContentReference) (*moderation.ModerationState, error) {
	table, err := tableFor(ref.ContentType)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(ref.ContentID); err != nil {
		return nil, ErrInvalidID
	}

	var state moderation.ModerationState
	query := fmt.Sprintf(`SELECT is_spam, ai_moderation_reason AS reason FROM %s WHERE id = $1`, table)
	err = r.db.GetContext(ctx, &state, query, ref.ContentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moderation.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read moderation state: %w", err)
	}
	return &state, nil
}

func checkFound(res sql.Result, ref moderation.ContentReference) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return moderation.ErrContentNotFound
	}
	return nil
}
