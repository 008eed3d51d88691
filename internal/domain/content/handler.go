package content

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openedx/forum/internal/middleware"
	"github.com/openedx/forum/internal/pkg/response"
	"github.com/openedx/forum/internal/pkg/validator"
)

// Handler handles thread and comment HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates content handler
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// CreateThread creates a discussion thread
// POST /threads
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	authorID := middleware.GetUserID(r.Context())

	var req CreateThreadRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	thread, err := h.service.CreateThread(r.Context(), authorID, req)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, thread)
}

// GetThread returns one thread
// GET /threads/{id}
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	thread, err := h.service.GetThread(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrThreadNotFound), errors.Is(err, ErrInvalidID):
			response.NotFound(w, "Thread not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, thread)
}

// ListThreads lists threads, optionally filtered by course
// GET /threads?course_id=...&limit=...&offset=...
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		CourseID: r.URL.Query().Get("course_id"),
		Limit:    parseIntParam(r, "limit", 50, 200),
		Offset:   parseIntParam(r, "offset", 0, 1<<30),
	}

	threads, err := h.service.ListThreads(r.Context(), filter)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.WithMeta(w, threads, response.Meta{
		Total: len(threads),
		Limit: filter.Limit,
	})
}

// CreateComment creates a comment on a thread
// POST /threads/{id}/comments
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	authorID := middleware.GetUserID(r.Context())
	threadID := chi.URLParam(r, "id")

	var req CreateCommentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	comment, err := h.service.CreateComment(r.Context(), authorID, threadID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrThreadNotFound), errors.Is(err, ErrInvalidID):
			response.NotFound(w, "Thread not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, comment)
}

// ListComments lists a thread's comments
// GET /threads/{id}/comments
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	limit := parseIntParam(r, "limit", 50, 200)
	offset := parseIntParam(r, "offset", 0, 1<<30)

	comments, err := h.service.ListComments(r.Context(), threadID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, ErrThreadNotFound), errors.Is(err, ErrInvalidID):
			response.NotFound(w, "Thread not found")
		default:
			response.InternalError(w)
		}
		return
	}

	response.WithMeta(w, comments, response.Meta{
		Total: len(comments),
		Limit: limit,
	})
}

func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
