package moderation

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/openedx/forum/internal/middleware"
	"github.com/openedx/forum/internal/pkg/response"
	"github.com/openedx/forum/internal/pkg/validator"
)

// Handler handles moderation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates moderation handler
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// Override reverses the latest moderation decision for a content item
// POST /moderation/override
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	moderatorID := middleware.GetUserID(r.Context())

	var req OverrideRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	entry, err := h.service.Override(
		r.Context(),
		req.ref(),
		moderatorID,
		Classification(req.NewClassification),
		req.Reason,
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoModerationHistory):
			response.NotFound(w, "Content has no moderation history")
		case errors.Is(err, ErrInvalidClassification):
			response.BadRequest(w, "Invalid classification")
		case errors.Is(err, ErrContentNotFound):
			response.NotFound(w, "Content not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, OverrideResponse{Entry: entry})
}

// ListAuditLog lists ledger entries
// GET /moderation/audit
func (h *Handler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	entries, err := h.service.QueryAuditLog(r.Context(), filter)
	if err != nil {
		response.InternalError(w)
		return
	}

	total, _ := h.service.CountAuditLog(r.Context(), filter)

	meta := response.Meta{
		Total: total,
		Limit: filter.Limit,
	}

	response.WithMeta(w, entries, meta)
}

// AuditStats returns the spam-detection rate over a window
// GET /moderation/audit/stats
func (h *Handler) AuditStats(w http.ResponseWriter, r *http.Request) {
	until := time.Now().UTC()
	since := until.AddDate(0, 0, -7)

	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid since timestamp, expected RFC3339")
			return
		}
		since = parsed
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid until timestamp, expected RFC3339")
			return
		}
		until = parsed
	}

	stats, err := h.service.AuditStats(r.Context(), since, until)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, stats)
}

func parseAuditFilter(r *http.Request) (*QueryFilter, error) {
	q := r.URL.Query()

	filter := &QueryFilter{
		Limit: 50,
	}

	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("invalid since timestamp, expected RFC3339")
		}
		filter.Since = parsed
	}
	if raw := q.Get("until"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("invalid until timestamp, expected RFC3339")
		}
		filter.Until = parsed
	}
	if c := q.Get("classification"); c != "" {
		if c != string(ClassificationSpam) && c != string(ClassificationNotSpam) {
			return nil, errors.New("invalid classification, expected spam or not_spam")
		}
		filter.Classification = Classification(c)
	}
	if ct := q.Get("content_type"); ct != "" {
		if ct != string(ContentTypeThread) && ct != string(ContentTypeComment) {
			return nil, errors.New("invalid content_type, expected thread or comment")
		}
		filter.ContentType = ContentType(ct)
	}
	filter.ContentID = q.Get("content_id")

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			return nil, errors.New("invalid limit, expected 1-500")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, errors.New("invalid offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}
