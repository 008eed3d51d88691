package content

import (
	"context"

	"github.com/openedx/forum/internal/domain/moderation"
)

// Repository is the storage contract for threads and comments. Both
// implementations (PostgreSQL and MongoDB) also satisfy
// moderation.FlagApplier, so the moderation gate works against either
// backend through the same interface.
type Repository interface {
	CreateThread(ctx context.Context, t *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, f ListFilter) ([]Thread, error)
	CreateComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, threadID string, limit, offset int) ([]Comment, error)

	FlagAsSpam(ctx context.Context, ref moderation.ContentReference, reason string) error
	UnflagSpam(ctx context.Context, ref moderation.ContentReference) error
	ReadModerationState(ctx context.Context, ref moderation.ContentReference) (*moderation.ModerationState, error)
}
