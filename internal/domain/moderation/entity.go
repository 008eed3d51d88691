package moderation

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// ContentType identifies the kind of forum content a decision refers to
type ContentType string

const (
	ContentTypeThread  ContentType = "thread"
	ContentTypeComment ContentType = "comment"
)

// ContentReference identifies exactly one content item across storage
// backends. ContentID is opaque: a UUID on the relational backend, an
// ObjectID hex string on the document backend. Immutable once built.
type ContentReference struct {
	ContentType ContentType `json:"content_type"`
	ContentID   string      `json:"content_id"`
	CourseID    string      `json:"course_id"`
	AuthorID    uuid.UUID   `json:"author_id"`
}

// Classification recorded in the audit ledger
type Classification string

const (
	ClassificationSpam    Classification = "spam"
	ClassificationNotSpam Classification = "not_spam"
)

// ActionTaken records what the pipeline did with a decision
type ActionTaken string

const (
	ActionFlagged  ActionTaken = "flagged"
	ActionApproved ActionTaken = "approved"
	ActionDeleted  ActionTaken = "deleted"
	ActionNoAction ActionTaken = "no_action"
)

// ModerationState is the moderation projection carried on the content
// entity itself, regardless of backend
type ModerationState struct {
	IsSpam bool    `db:"is_spam" json:"is_spam"`
	Reason *string `db:"reason" json:"ai_moderation_reason,omitempty"`
}

// AuditLogEntry is one immutable record in the moderation ledger.
// Entries are never updated or deleted; an override appends a new entry
// whose OverridesEntryID points at the decision being reversed.
type AuditLogEntry struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	ContentType      ContentType    `db:"content_type" json:"content_type"`
	ContentID        string         `db:"content_id" json:"content_id"`
	CourseID         string         `db:"course_id" json:"course_id"`
	Timestamp        time.Time      `db:"timestamp" json:"timestamp"`
	ClassifierOutput types.JSONText `db:"classifier_output" json:"classifier_output,omitempty"`
	Reasoning        string         `db:"reasoning" json:"reasoning"`
	Classification   Classification `db:"classification" json:"classification"`
	ActionTaken      ActionTaken    `db:"action_taken" json:"action_taken"`
	OriginalAuthor   uuid.UUID      `db:"original_author" json:"original_author"`
	ModeratorID      uuid.NullUUID  `db:"moderator_id" json:"moderator_id,omitempty"`
	OverrideReason   *string        `db:"override_reason" json:"override_reason,omitempty"`
	OverrideAt       *time.Time     `db:"override_at" json:"override_at,omitempty"`
	OverridesEntryID uuid.NullUUID  `db:"overrides_entry_id" json:"overrides_entry_id,omitempty"`
}

// ContentRef rebuilds the reference this entry was recorded for
func (e *AuditLogEntry) ContentRef() ContentReference {
	return ContentReference{
		ContentType: e.ContentType,
		ContentID:   e.ContentID,
		CourseID:    e.CourseID,
		AuthorID:    e.OriginalAuthor,
	}
}

// IsOverride reports whether the entry was produced by a human moderator
func (e *AuditLogEntry) IsOverride() bool {
	return e.ModeratorID.Valid
}

// Stats is an aggregate over a ledger window
type Stats struct {
	Total    int       `json:"total"`
	Spam     int       `json:"spam"`
	SpamRate float64   `json:"spam_rate"`
	Since    time.Time `json:"since"`
	Until    time.Time `json:"until"`
}
