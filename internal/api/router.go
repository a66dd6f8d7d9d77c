package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jobpilot/internal/interviewservice"
)

// NewRouter creates a chi router with the /api routes mounted.
// loopbackOnly rejects non-local callers. ctl, if non-nil, is mounted at
// /session. sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *interviewservice.Service, ctl SessionControl, loopbackOnly bool, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(LoopbackOnly(loopbackOnly))

	r.Get("/interviews", h.ListInterviews)
	r.Post("/interviews", h.CreateInterview)
	r.Route("/interviews/{id}", func(r chi.Router) {
		r.Get("/", h.GetInterview)
		r.Put("/", h.UpdateInterview)
		r.Delete("/", h.DeleteInterview)
		r.Post("/video", h.UploadVideo)
		r.Get("/video", h.GetVideo)
		r.Post("/transcript", h.SetTranscript)
		r.Get("/transcript", h.GetTranscript)
	})
	r.Put("/transcripts/{id}", h.UpdateTranscript)

	if ctl != nil {
		r.Mount("/session", NewSessionHandler(ctl).Routes())
	}
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}
	return r
}
