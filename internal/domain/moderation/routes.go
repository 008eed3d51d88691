package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns moderator-facing moderation routes. Callers must pass
// auth plus a role gate restricting access to moderators/admins.
func (h *Handler) Routes(authMiddleware, moderatorMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(moderatorMiddleware)

	r.Post("/override", h.Override)
	r.Get("/audit", h.ListAuditLog)
	r.Get("/audit/stats", h.AuditStats)

	return r
}
