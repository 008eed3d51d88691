package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openedx/forum/internal/domain/moderation"
)

// Gate is the post-persistence moderation hook. Evaluate never fails:
// it absorbs classifier, flag and ledger errors internally.
type Gate interface {
	Evaluate(ctx context.Context, ref moderation.ContentReference, text string, enabled bool)
}

// ToggleSource resolves the per-course moderation switch
type ToggleSource interface {
	AIModerationEnabled(ctx context.Context, courseID string) bool
}

type Service struct {
	repo    Repository
	gate    Gate
	toggles ToggleSource
}

// NewService creates the content service. gate and toggles may be nil,
// in which case created content is never screened.
func NewService(repo Repository, gate Gate, toggles ToggleSource) *Service {
	return &Service{
		repo:    repo,
		gate:    gate,
		toggles: toggles,
	}
}

// CreateThread persists the thread and then runs it through the
// moderation gate. The create itself succeeds or fails on persistence
// alone; whatever moderation does afterwards is reflected in the
// returned thread but can never fail the call.
func (s *Service) CreateThread(ctx context.Context, authorID uuid.UUID, req CreateThreadRequest) (*Thread, error) {
	t := &Thread{
		CourseID: req.CourseID,
		AuthorID: authorID,
		Title:    req.Title,
		Body:     req.Body,
	}
	if err := s.repo.CreateThread(ctx, t); err != nil {
		return nil, err
	}

	ref := moderation.ContentReference{
		ContentType: moderation.ContentTypeThread,
		ContentID:   t.ID,
		CourseID:    t.CourseID,
		AuthorID:    t.AuthorID,
	}
	s.moderate(ctx, ref, threadText(t))

	return s.repo.GetThread(ctx, t.ID)
}

// CreateComment persists a comment on an existing thread and runs it
// through the moderation gate. The comment inherits the thread's course.
func (s *Service) CreateComment(ctx context.Context, authorID uuid.UUID, threadID string, req CreateCommentRequest) (*Comment, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	c := &Comment{
		ThreadID: thread.ID,
		CourseID: thread.CourseID,
		AuthorID: authorID,
		Body:     req.Body,
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, err
	}

	ref := moderation.ContentReference{
		ContentType: moderation.ContentTypeComment,
		ContentID:   c.ID,
		CourseID:    c.CourseID,
		AuthorID:    c.AuthorID,
	}
	s.moderate(ctx, ref, c.Body)

	return s.repo.GetComment(ctx, c.ID)
}

func (s *Service) moderate(ctx context.Context, ref moderation.ContentReference, text string) {
	if s.gate == nil {
		return
	}
	enabled := false
	if s.toggles != nil {
		enabled = s.toggles.AIModerationEnabled(ctx, ref.CourseID)
	}
	s.gate.Evaluate(ctx, ref, text, enabled)
}

// threadText is what the classifier sees for a thread: title and body
// together, since spam often lives entirely in the title.
func threadText(t *Thread) string {
	return fmt.Sprintf("%s\n\n%s", t.Title, t.Body)
}

func (s *Service) GetThread(ctx context.Context, id string) (*Thread, error) {
	return s.repo.GetThread(ctx, id)
}

func (s *Service) ListThreads(ctx context.Context, f ListFilter) ([]Thread, error) {
	return s.repo.ListThreads(ctx, f)
}

func (s *Service) GetComment(ctx context.Context, id string) (*Comment, error) {
	return s.repo.GetComment(ctx, id)
}

func (s *Service) ListComments(ctx context.Context, threadID string, limit, offset int) ([]Comment, error) {
	if _, err := s.repo.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, threadID, limit, offset)
}
