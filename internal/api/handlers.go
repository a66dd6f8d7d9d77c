package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jobpilot/internal/interviewservice"
)

const (
	maxJSONBody  = 10 << 20
	maxVideoBody = 2 << 30
)

// Handler holds the store route handlers.
type Handler struct {
	svc *interviewservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *interviewservice.Service) *Handler {
	return &Handler{svc: svc}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListInterviews handles GET /api/interviews.
//
//	@Summary	List interviews
//	@Tags		interviews
//	@Produce	json
//	@Success	200	{object}	InterviewListResponse
//	@Router		/interviews [get]
func (h *Handler) ListInterviews(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeStoreError(w, "list interviews", err)
		return
	}
	writeJSON(w, http.StatusOK, InterviewListResponse{Interviews: items, Total: len(items)})
}

// CreateInterview handles POST /api/interviews.
//
//	@Summary	Create an interview
//	@Tags		interviews
//	@Accept		json
//	@Produce	json
//	@Param		body	body		InterviewRequest	true	"Interview metadata"
//	@Success	201		{object}	store.Interview
//	@Failure	400		{object}	errResponse
//	@Router		/interviews [post]
func (h *Handler) CreateInterview(w http.ResponseWriter, r *http.Request) {
	var req InterviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.Create(r.Context(), req.record())
	if err != nil {
		writeStoreError(w, "create interview", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetInterview handles GET /api/interviews/{id}.
//
//	@Summary	Get an interview with its transcript and videos
//	@Tags		interviews
//	@Produce	json
//	@Param		id	path		string	true	"Interview id"
//	@Success	200	{object}	interviewservice.Detail
//	@Failure	404	{object}	errResponse
//	@Router		/interviews/{id} [get]
func (h *Handler) GetInterview(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "get interview", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateInterview handles PUT /api/interviews/{id}.
//
//	@Summary	Replace an interview's metadata
//	@Tags		interviews
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Interview id"
//	@Param		body	body		InterviewRequest	true	"Interview metadata"
//	@Success	200		{object}	store.Interview
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Router		/interviews/{id} [put]
func (h *Handler) UpdateInterview(w http.ResponseWriter, r *http.Request) {
	var req InterviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.record())
	if err != nil {
		writeStoreError(w, "update interview", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteInterview handles DELETE /api/interviews/{id}.
//
//	@Summary	Delete an interview with its videos and transcripts
//	@Tags		interviews
//	@Param		id	path	string	true	"Interview id"
//	@Success	204
//	@Router		/interviews/{id} [delete]
func (h *Handler) DeleteInterview(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "delete interview", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadVideo handles POST /api/interviews/{id}/video. The body is the raw
// recording.
//
//	@Summary	Attach a recording to an interview
//	@Tags		videos
//	@Accept		octet-stream
//	@Produce	json
//	@Param		id				path		string	true	"Interview id"
//	@Param		thumbnailUrl	query		string	false	"Thumbnail data URL"
//	@Success	201				{object}	idResponse
//	@Failure	404				{object}	errResponse
//	@Failure	413				{object}	errResponse
//	@Router		/interviews/{id}/video [post]
func (h *Handler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxVideoBody)
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("recording too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if len(blob) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("recording is empty"))
		return
	}
	id, err := h.svc.AddVideo(r.Context(), chi.URLParam(r, "id"), blob, r.URL.Query().Get("thumbnailUrl"))
	if err != nil {
		writeStoreError(w, "upload video", err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// GetVideo handles GET /api/interviews/{id}/video.
//
//	@Summary	Download the interview's first recording
//	@Tags		videos
//	@Produce	octet-stream
//	@Param		id	path	string	true	"Interview id"
//	@Success	200
//	@Failure	404	{object}	errResponse
//	@Router		/interviews/{id}/video [get]
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Video(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "get video", err)
		return
	}
	w.Header().Set("Content-Type", "video/webm")
	w.Header().Set("Content-Length", strconv.Itoa(len(v.Blob)))
	w.Header().Set("X-Video-Id", v.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(v.Blob)
}

// SetTranscript handles POST /api/interviews/{id}/transcript.
//
//	@Summary	Create or replace the interview's transcript
//	@Tags		transcripts
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Interview id"
//	@Param		body	body		TranscriptRequest	true	"Transcript"
//	@Success	200		{object}	idResponse
//	@Failure	404		{object}	errResponse
//	@Router		/interviews/{id}/transcript [post]
func (h *Handler) SetTranscript(w http.ResponseWriter, r *http.Request) {
	var req TranscriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := h.svc.SetTranscript(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeStoreError(w, "set transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, idResponse{ID: id})
}

// GetTranscript handles GET /api/interviews/{id}/transcript.
//
//	@Summary	Get the interview's transcript
//	@Tags		transcripts
//	@Produce	json
//	@Param		id	path		string	true	"Interview id"
//	@Success	200	{object}	store.Transcript
//	@Failure	404	{object}	errResponse
//	@Router		/interviews/{id}/transcript [get]
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Transcript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, "get transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTranscript handles PUT /api/transcripts/{id}.
//
//	@Summary	Rewrite a transcript by id
//	@Tags		transcripts
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Transcript id"
//	@Param		body	body		TranscriptRequest	true	"Transcript"
//	@Success	200		{object}	store.Transcript
//	@Failure	404		{object}	errResponse
//	@Router		/transcripts/{id} [put]
func (h *Handler) UpdateTranscript(w http.ResponseWriter, r *http.Request) {
	var req TranscriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.svc.UpdateTranscript(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeStoreError(w, "update transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
