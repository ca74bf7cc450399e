package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))

	r.Get("/health", h.Health)

	r.Route("/recordings", func(r chi.Router) {
		r.Post("/", h.UploadRecording)
		r.Get("/", h.ListRecordings)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetRecording)
			r.Post("/distribute", h.Distribute)
		})
	})

	return r
}
