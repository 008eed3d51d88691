package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openedx/forum/internal/pkg/classifier"
	"github.com/openedx/forum/internal/pkg/logger"
)

// Classifier abstracts the external moderation API client
type Classifier interface {
	Enabled() bool
	Classify(ctx context.Context, text string) classifier.Decision
}

// FlagApplier applies or clears the spam flag on content, polymorphic
// over the storage backend. Both operations are idempotent.
type FlagApplier interface {
	FlagAsSpam(ctx context.Context, ref ContentReference, reason string) error
	UnflagSpam(ctx context.Context, ref ContentReference) error
	ReadModerationState(ctx context.Context, ref ContentReference) (*ModerationState, error)
}

// Service is the moderation gate and override handler. Evaluate absorbs
// every internal failure; Override reports errors to its (human) caller.
type Service struct {
	repo       Repository
	classifier Classifier
	flags      FlagApplier
}

// NewService creates the moderation service
func NewService(repo Repository, cls Classifier, flags FlagApplier) *Service {
	return &Service{
		repo:       repo,
		classifier: cls,
		flags:      flags,
	}
}

// Evaluate screens newly persisted content. It is a post-persistence
// hook: the caller's create operation has already committed, and nothing
// that happens here may fail it, so Evaluate returns nothing.
//
// enabled is the per-course toggle, resolved by the caller and passed in
// explicitly so the gate is testable without a toggle subsystem. A
// disabled toggle and an unconfigured classifier both mean a full no-op:
// no API call, no flag mutation, no audit entry.
func (s *Service) Evaluate(ctx context.Context, ref ContentReference, text string, enabled bool) {
	if !enabled {
		return
	}
	if s.classifier == nil || !s.classifier.Enabled() {
		// Missing configuration is equivalent to a disabled toggle.
		// The classifier client already logged this once at startup.
		return
	}

	decision := s.classifier.Classify(ctx, text)

	classification := ClassificationNotSpam
	action := ActionNoAction
	reasoning := decision.Reasoning

	switch {
	case !decision.Succeeded:
		// Fail open: the content stays visible and unflagged, but the
		// attempt is still recorded so the gap is observable.
		reasoning = "classifier unavailable or returned malformed response"

	case decision.Classification.IsSpam():
		classification = ClassificationSpam
		if err := s.flags.FlagAsSpam(ctx, ref, decision.Reasoning); err != nil {
			// Flag write failed: record no_action so the ledger never
			// claims a flag that was not applied.
			logger.FromContext(ctx).Error().Err(err).
				Str("content_type", string(ref.ContentType)).
				Str("content_id", ref.ContentID).
				Msg("Spam flag write failed")
		} else {
			action = ActionFlagged
			logger.FromContext(ctx).Info().
				Str("content_type", string(ref.ContentType)).
				Str("content_id", ref.ContentID).
				Msg("AI moderation flagged content as spam")
		}

	default:
		// Confident not_spam clears any stale flag from an earlier
		// evaluation of the same content.
		if err := s.flags.UnflagSpam(ctx, ref); err != nil {
			logger.FromContext(ctx).Error().Err(err).
				Str("content_type", string(ref.ContentType)).
				Str("content_id", ref.ContentID).
				Msg("Spam unflag write failed")
		}
		action = ActionApproved
	}

	entry := &AuditLogEntry{
		ContentType:      ref.ContentType,
		ContentID:        ref.ContentID,
		CourseID:         ref.CourseID,
		ClassifierOutput: classifierOutputJSON(decision),
		Reasoning:        reasoning,
		Classification:   classification,
		ActionTaken:      action,
		OriginalAuthor:   ref.AuthorID,
	}
	if _, err := s.repo.Append(ctx, entry); err != nil {
		// Never roll back the flag or surface this to the caller.
		logger.FromContext(ctx).Error().Err(err).
			Str("content_type", string(ref.ContentType)).
			Str("content_id", ref.ContentID).
			Msg("Audit ledger append failed")
	}
}

// Override lets a human moderator reverse the current decision for a
// content item. The prior entry is located but never edited; the
// reversal is a new ledger entry with override info populated.
func (s *Service) Override(ctx context.Context, ref ContentReference, moderatorID uuid.UUID, newClassification Classification, reason string) (*AuditLogEntry, error) {
	prior, err := s.repo.LatestForContent(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("locate prior decision: %w", err)
	}
	if prior == nil {
		return nil, ErrNoModerationHistory
	}

	var action ActionTaken
	switch newClassification {
	case ClassificationSpam:
		if err := s.flags.FlagAsSpam(ctx, ref, reason); err != nil {
			return nil, fmt.Errorf("apply spam flag: %w", err)
		}
		action = ActionFlagged
	case ClassificationNotSpam:
		if err := s.flags.UnflagSpam(ctx, ref); err != nil {
			return nil, fmt.Errorf("clear spam flag: %w", err)
		}
		action = ActionApproved
	default:
		return nil, ErrInvalidClassification
	}

	now := time.Now().UTC()
	entry := &AuditLogEntry{
		ContentType:      ref.ContentType,
		ContentID:        ref.ContentID,
		CourseID:         prior.CourseID,
		Timestamp:        now,
		ClassifierOutput: overrideOutputJSON(prior.ID),
		Reasoning:        reason,
		Classification:   newClassification,
		ActionTaken:      action,
		OriginalAuthor:   prior.OriginalAuthor,
		ModeratorID:      uuid.NullUUID{UUID: moderatorID, Valid: true},
		OverrideReason:   &reason,
		OverrideAt:       &now,
		OverridesEntryID: uuid.NullUUID{UUID: prior.ID, Valid: true},
	}
	if _, err := s.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append override entry: %w", err)
	}

	logger.FromContext(ctx).Info().
		Str("content_type", string(ref.ContentType)).
		Str("content_id", ref.ContentID).
		Str("moderator_id", moderatorID.String()).
		Str("classification", string(newClassification)).
		Msg("Moderator override applied")

	return entry, nil
}

// QueryAuditLog returns ledger entries matching the filter
func (s *Service) QueryAuditLog(ctx context.Context, filter *QueryFilter) ([]*AuditLogEntry, error) {
	return s.repo.Query(ctx, filter)
}

// CountAuditLog returns the number of entries matching the filter
func (s *Service) CountAuditLog(ctx context.Context, filter *QueryFilter) (int, error) {
	return s.repo.Count(ctx, filter)
}

// AuditStats returns the spam-detection rate over a ledger window
func (s *Service) AuditStats(ctx context.Context, since, until time.Time) (*Stats, error) {
	return s.repo.Stats(ctx, since, until)
}

// classifierOutputJSON packages the full decision for the audit trail
func classifierOutputJSON(d classifier.Decision) []byte {
	out, err := json.Marshal(struct {
		Classification string          `json:"classification"`
		Reasoning      string          `json:"reasoning"`
		Succeeded      bool            `json:"succeeded"`
		RawResponse    json.RawMessage `json:"raw_response,omitempty"`
	}{
		Classification: string(d.Classification),
		Reasoning:      d.Reasoning,
		Succeeded:      d.Succeeded,
		RawResponse:    d.RawOutput,
	})
	if err != nil {
		return []byte(`{"error":"failed to encode classifier output"}`)
	}
	return out
}

func overrideOutputJSON(priorID uuid.UUID) []byte {
	out, _ := json.Marshal(map[string]string{
		"source":             "moderator_override",
		"overrides_entry_id": priorID.String(),
	})
	return out
}
