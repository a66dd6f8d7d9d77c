package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jobpilot/internal/session"
)

// SessionControl is the recorder the session routes drive.
type SessionControl interface {
	Snapshot() session.Snapshot
	Stop(ctx context.Context) error
	Persist(ctx context.Context, interviewID, transcript string) (session.Saved, error)
	Abandon(ctx context.Context)
	Reset() error
}

// SessionHandler serves /api/session.
type SessionHandler struct {
	ctl SessionControl
}

// NewSessionHandler creates a handler over ctl.
func NewSessionHandler(ctl SessionControl) *SessionHandler {
	return &SessionHandler{ctl: ctl}
}

// Routes returns the /api/session router.
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Post("/stop", h.Stop)
	r.Post("/persist", h.Persist)
	r.Post("/abandon", h.Abandon)
	r.Post("/reset", h.Reset)
	return r
}

// Get handles GET /api/session.
func (h *SessionHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// Stop handles POST /api/session/stop.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Stop(r.Context()); err != nil {
		writeSessionError(w, "stop session", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// Persist handles POST /api/session/persist.
func (h *SessionHandler) Persist(w http.ResponseWriter, r *http.Request) {
	var req PersistRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.InterviewID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("interviewId is required"))
		return
	}
	saved, err := h.ctl.Persist(r.Context(), req.InterviewID, req.Transcript)
	if err != nil {
		writeSessionError(w, "persist session", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// Abandon handles POST /api/session/abandon.
func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.ctl.Abandon(r.Context())
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// Reset handles POST /api/session/reset.
func (h *SessionHandler) Reset(w http.ResponseWriter, _ *http.Request) {
	if err := h.ctl.Reset(); err != nil {
		writeSessionError(w, "reset session", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

func writeSessionError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, session.ErrInvalidTransition) || errors.Is(err, session.ErrBusy) {
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	writeStoreError(w, op, err)
}
