package content

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a discussion thread. IDs are strings because the two
// backends disagree: UUIDs in PostgreSQL, ObjectID hex in MongoDB.
// IsSpam and AIModerationReason are the cached projection of the latest
// moderation ledger entry for this thread.
type Thread struct {
	ID                 string    `db:"id" bson:"_id" json:"id"`
	CourseID           string    `db:"course_id" bson:"course_id" json:"course_id"`
	AuthorID           uuid.UUID `db:"author_id" bson:"author_id" json:"author_id"`
	Title              string    `db:"title" bson:"title" json:"title"`
	Body               string    `db:"body" bson:"body" json:"body"`
	IsSpam             bool      `db:"is_spam" bson:"is_spam,omitempty" json:"is_spam"`
	AIModerationReason *string   `db:"ai_moderation_reason" bson:"ai_moderation_reason,omitempty" json:"ai_moderation_reason,omitempty"`
	CreatedAt          time.Time `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" bson:"updated_at" json:"updated_at"`
}

// Comment is a reply within a thread
type Comment struct {
	ID                 string    `db:"id" bson:"_id" json:"id"`
	ThreadID           string    `db:"thread_id" bson:"thread_id" json:"thread_id"`
	CourseID           string    `db:"course_id" bson:"course_id" json:"course_id"`
	AuthorID           uuid.UUID `db:"author_id" bson:"author_id" json:"author_id"`
	Body               string    `db:"body" bson:"body" json:"body"`
	IsSpam             bool      `db:"is_spam" bson:"is_spam,omitempty" json:"is_spam"`
	AIModerationReason *string   `db:"ai_moderation_reason" bson:"ai_moderation_reason,omitempty" json:"ai_moderation_reason,omitempty"`
	CreatedAt          time.Time `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" bson:"updated_at" json:"updated_at"`
}
