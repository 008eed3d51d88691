package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order on startup. Statements must stay
// idempotent; there is no down path.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS threads (
		id UUID PRIMARY KEY,
		course_id TEXT NOT NULL,
		author_id UUID NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		is_spam BOOLEAN NOT NULL DEFAULT FALSE,
		ai_moderation_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_threads_course_created
		ON threads (course_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id UUID PRIMARY KEY,
		thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
		course_id TEXT NOT NULL,
		author_id UUID NOT NULL,
		body TEXT NOT NULL,
		is_spam BOOLEAN NOT NULL DEFAULT FALSE,
		ai_moderation_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_thread_created
		ON comments (thread_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS moderation_audit_log (
		id UUID PRIMARY KEY,
		content_type TEXT NOT NULL,
		content_id TEXT NOT NULL,
		course_id TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL,
		classifier_output JSONB,
		reasoning TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL,
		action_taken TEXT NOT NULL,
		original_author UUID NOT NULL,
		moderator_id UUID,
		override_reason TEXT,
		override_at TIMESTAMPTZ,
		overrides_entry_id UUID REFERENCES moderation_audit_log(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_content
		ON moderation_audit_log (content_type, content_id, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_timestamp
		ON moderation_audit_log (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_classification
		ON moderation_audit_log (classification, timestamp)`,
}

// Migrate ensures the relational schema exists. The audit log table is
// always created: the ledger lives in PostgreSQL even when content is
// stored in MongoDB.
func Migrate(db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("Database schema ensured")
	return nil
}
