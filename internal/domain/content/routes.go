package content

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns thread and comment routes. Reads are public; writes
// require an authenticated user.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListThreads)
	r.Get("/{id}", h.GetThread)
	r.Get("/{id}/comments", h.ListComments)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.CreateThread)
		r.Post("/{id}/comments", h.CreateComment)
	})

	return r
}
