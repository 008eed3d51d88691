package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openedx/forum/internal/pkg/classifier"
)

type fakeLedger struct {
	entries   []*AuditLogEntry
	appendErr error
}

func (f *fakeLedger) Append(ctx context.Context, entry *AuditLogEntry) (uuid.UUID, error) {
	if f.appendErr != nil {
		return uuid.Nil, f.appendErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	cp := *entry
	f.entries = append(f.entries, &cp)
	return entry.ID, nil
}

func (f *fakeLedger) Query(ctx context.Context, filter *QueryFilter) ([]*AuditLogEntry, error) {
	return f.entries, nil
}

func (f *fakeLedger) LatestForContent(ctx context.Context, ref ContentReference) (*AuditLogEntry, error) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.ContentType == ref.ContentType && e.ContentID == ref.ContentID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return len(f.entries), nil
}

func (f *fakeLedger) Stats(ctx context.Context, since, until time.Time) (*Stats, error) {
	return &Stats{Total: len(f.entries), Since: since, Until: until}, nil
}

type fakeFlags struct {
	flagged    map[string]string
	flagErr    error
	unflagErr  error
	flagCalls  int
	unflagCall int
}

func newFakeFlags() *fakeFlags {
	return &fakeFlags{flagged: make(map[string]string)}
}

func (f *fakeFlags) FlagAsSpam(ctx context.Context, ref ContentReference, reason string) error {
	f.flagCalls++
	if f.flagErr != nil {
		return f.flagErr
	}
	f.flagged[ref.ContentID] = reason
	return nil
}

func (f *fakeFlags) UnflagSpam(ctx context.Context, ref ContentReference) error {
	f.unflagCall++
	if f.unflagErr != nil {
		return f.unflagErr
	}
	delete(f.flagged, ref.ContentID)
	return nil
}

func (f *fakeFlags) ReadModerationState(ctx context.Context, ref ContentReference) (*ModerationState, error) {
	reason, ok := f.flagged[ref.ContentID]
	if !ok {
		return &ModerationState{}, nil
	}
	return &ModerationState{IsSpam: true, Reason: &reason}, nil
}

type fakeClassifier struct {
	enabled  bool
	decision classifier.Decision
	calls    int
}

func (f *fakeClassifier) Enabled() bool { return f.enabled }

func (f *fakeClassifier) Classify(ctx context.Context, text string) classifier.Decision {
	f.calls++
	return f.decision
}

func testRef() ContentReference {
	return ContentReference{
		ContentType: ContentTypeThread,
		ContentID:   uuid.New().String(),
		CourseID:    "course-v1:edX+Demo+2026",
		AuthorID:    uuid.New(),
	}
}

func spamDecision(reasoning string) classifier.Decision {
	return classifier.Decision{
		Classification: classifier.ClassificationSpam,
		Reasoning:      reasoning,
		RawOutput:      json.RawMessage(`{"classification":"spam"}`),
		Succeeded:      true,
	}
}

func notSpamDecision() classifier.Decision {
	return classifier.Decision{
		Classification: classifier.ClassificationNotSpam,
		Reasoning:      "ordinary course question",
		RawOutput:      json.RawMessage(`{"classification":"not_spam"}`),
		Succeeded:      true,
	}
}

func TestEvaluateToggleDisabled(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: spamDecision("spam")}
	svc := NewService(ledger, cls, flags)

	svc.Evaluate(context.Background(), testRef(), "buy cheap followers", false)

	if cls.calls != 0 {
		t.Errorf("classifier called %d times with toggle off, want 0", cls.calls)
	}
	if flags.flagCalls != 0 || flags.unflagCall != 0 {
		t.Error("flag applier touched with toggle off")
	}
	if len(ledger.entries) != 0 {
		t.Errorf("got %d audit entries with toggle off, want 0", len(ledger.entries))
	}
}

func TestEvaluateClassifierNotConfigured(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: false}
	svc := NewService(ledger, cls, flags)

	svc.Evaluate(context.Background(), testRef(), "anything", true)

	if cls.calls != 0 {
		t.Error("disabled classifier was called")
	}
	if len(ledger.entries) != 0 {
		t.Errorf("got %d audit entries with unconfigured classifier, want 0", len(ledger.entries))
	}
}

func TestEvaluateSpam(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: spamDecision("promotional link spam")}
	svc := NewService(ledger, cls, flags)
	ref := testRef()

	svc.Evaluate(context.Background(), ref, "Buy cheap followers now, click this link!!!", true)

	if got := flags.flagged[ref.ContentID]; got != "promotional link spam" {
		t.Errorf("flag reason = %q, want classifier reasoning", got)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(ledger.entries))
	}
	e := ledger.entries[0]
	if e.Classification != ClassificationSpam {
		t.Errorf("classification = %q, want spam", e.Classification)
	}
	if e.ActionTaken != ActionFlagged {
		t.Errorf("action = %q, want flagged", e.ActionTaken)
	}
	if e.OriginalAuthor != ref.AuthorID {
		t.Error("original_author does not match content author")
	}
	if e.CourseID != ref.CourseID {
		t.Errorf("course_id = %q, want %q", e.CourseID, ref.CourseID)
	}
	var payload map[string]any
	if err := json.Unmarshal(e.ClassifierOutput, &payload); err != nil {
		t.Fatalf("classifier_output is not valid JSON: %v", err)
	}
	if payload["classification"] != "spam" {
		t.Errorf("classifier_output classification = %v, want spam", payload["classification"])
	}
}

func TestEvaluateNotSpamClearsFlag(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: notSpamDecision()}
	svc := NewService(ledger, cls, flags)
	ref := testRef()
	flags.flagged[ref.ContentID] = "stale flag"

	svc.Evaluate(context.Background(), ref, "how do I submit assignment 3?", true)

	if _, still := flags.flagged[ref.ContentID]; still {
		t.Error("not_spam verdict did not clear the existing flag")
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(ledger.entries))
	}
	e := ledger.entries[0]
	if e.Classification != ClassificationNotSpam || e.ActionTaken != ActionApproved {
		t.Errorf("got %s/%s, want not_spam/approved", e.Classification, e.ActionTaken)
	}
}

func TestEvaluateClassifierFailureFailsOpen(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: classifier.Decision{
		Classification: classifier.ClassificationUnknown,
		Succeeded:      false,
	}}
	svc := NewService(ledger, cls, flags)
	ref := testRef()

	svc.Evaluate(context.Background(), ref, "some post", true)

	if flags.flagCalls != 0 || flags.unflagCall != 0 {
		t.Error("flag state mutated on classifier failure")
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(ledger.entries))
	}
	e := ledger.entries[0]
	if e.Classification != ClassificationNotSpam {
		t.Errorf("classification = %q, want not_spam (fail open)", e.Classification)
	}
	if e.ActionTaken != ActionNoAction {
		t.Errorf("action = %q, want no_action", e.ActionTaken)
	}
	if e.Reasoning == "" {
		t.Error("failure entry has no reasoning")
	}
}

func TestEvaluateFlagWriteFailure(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	flags.flagErr = errors.New("connection reset")
	cls := &fakeClassifier{enabled: true, decision: spamDecision("spam")}
	svc := NewService(ledger, cls, flags)

	svc.Evaluate(context.Background(), testRef(), "spam text", true)

	if len(ledger.entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(ledger.entries))
	}
	e := ledger.entries[0]
	if e.Classification != ClassificationSpam {
		t.Errorf("classification = %q, want spam", e.Classification)
	}
	if e.ActionTaken != ActionNoAction {
		t.Errorf("action = %q after failed flag write, want no_action", e.ActionTaken)
	}
}

func TestEvaluateLedgerFailureAbsorbed(t *testing.T) {
	ledger := &fakeLedger{appendErr: errors.New("ledger down")}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: spamDecision("spam")}
	svc := NewService(ledger, cls, flags)
	ref := testRef()

	// Must not panic or surface the error; the flag still lands.
	svc.Evaluate(context.Background(), ref, "spam text", true)

	if _, ok := flags.flagged[ref.ContentID]; !ok {
		t.Error("flag not applied when ledger append failed")
	}
}

func TestOverrideSpamToNotSpam(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: spamDecision("looks like spam")}
	svc := NewService(ledger, cls, flags)
	ref := testRef()

	svc.Evaluate(context.Background(), ref, "false positive post", true)
	prior := ledger.entries[0]
	priorSnapshot, err := json.Marshal(prior)
	if err != nil {
		t.Fatal(err)
	}

	moderatorID := uuid.New()
	entry, err := svc.Override(context.Background(), ref, moderatorID, ClassificationNotSpam, "legitimate question about the syllabus")
	if err != nil {
		t.Fatalf("Override() error: %v", err)
	}

	if _, still := flags.flagged[ref.ContentID]; still {
		t.Error("override to not_spam did not clear the flag")
	}
	if len(ledger.entries) != 2 {
		t.Fatalf("got %d ledger entries after override, want 2", len(ledger.entries))
	}
	if entry.Classification != ClassificationNotSpam || entry.ActionTaken != ActionApproved {
		t.Errorf("override entry is %s/%s, want not_spam/approved", entry.Classification, entry.ActionTaken)
	}
	if !entry.ModeratorID.Valid || entry.ModeratorID.UUID != moderatorID {
		t.Error("override entry missing moderator id")
	}
	if !entry.OverridesEntryID.Valid || entry.OverridesEntryID.UUID != prior.ID {
		t.Error("override entry does not reference the prior entry")
	}
	if entry.OverrideReason == nil || entry.OverrideAt == nil {
		t.Error("override entry missing reason or timestamp")
	}
	if entry.OriginalAuthor != ref.AuthorID {
		t.Error("override entry lost the original author")
	}

	// The prior entry is history: it must be byte-for-byte untouched.
	after, err := json.Marshal(ledger.entries[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(priorSnapshot) {
		t.Errorf("prior ledger entry mutated by override:\nbefore: %s\nafter:  %s", priorSnapshot, after)
	}
}

func TestOverrideNotSpamToSpam(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: notSpamDecision()}
	svc := NewService(ledger, cls, flags)
	ref := testRef()

	svc.Evaluate(context.Background(), ref, "sneaky spam the classifier missed", true)

	entry, err := svc.Override(context.Background(), ref, uuid.New(), ClassificationSpam, "obvious phishing link")
	if err != nil {
		t.Fatalf("Override() error: %v", err)
	}
	if entry.Classification != ClassificationSpam || entry.ActionTaken != ActionFlagged {
		t.Errorf("override entry is %s/%s, want spam/flagged", entry.Classification, entry.ActionTaken)
	}
	if got := flags.flagged[ref.ContentID]; got != "obvious phishing link" {
		t.Errorf("flag reason = %q, want moderator reason", got)
	}
}

func TestOverrideWithoutHistory(t *testing.T) {
	svc := NewService(&fakeLedger{}, &fakeClassifier{}, newFakeFlags())

	_, err := svc.Override(context.Background(), testRef(), uuid.New(), ClassificationNotSpam, "nothing to override")
	if !errors.Is(err, ErrNoModerationHistory) {
		t.Errorf("got %v, want ErrNoModerationHistory", err)
	}
}

func TestOverrideInvalidClassification(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: spamDecision("spam")}
	svc := NewService(ledger, cls, flags)
	ref := testRef()

	svc.Evaluate(context.Background(), ref, "post", true)

	_, err := svc.Override(context.Background(), ref, uuid.New(), Classification("maybe_spam"), "unsure")
	if !errors.Is(err, ErrInvalidClassification) {
		t.Errorf("got %v, want ErrInvalidClassification", err)
	}
	if len(ledger.entries) != 1 {
		t.Error("invalid override appended a ledger entry")
	}
}

func TestOverrideFlagFailurePropagates(t *testing.T) {
	ledger := &fakeLedger{}
	flags := newFakeFlags()
	cls := &fakeClassifier{enabled: true, decision: notSpamDecision()}
	svc := NewService(ledger, cls, flags)
	ref := testRef()

	svc.Evaluate(context.Background(), ref, "post", true)

	flags.flagErr = errors.New("backend down")
	_, err := svc.Override(context.Background(), ref, uuid.New(), ClassificationSpam, "spam after all")
	if err == nil {
		t.Fatal("Override() succeeded despite flag write failure")
	}
	if len(ledger.entries) != 1 {
		t.Error("failed override still appended a ledger entry")
	}
}
