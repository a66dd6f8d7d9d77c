package api

import (
	"github.com/starford/jobpilot/internal/ipc"
	"github.com/starford/jobpilot/internal/store"
)

// InterviewRequest is the body of POST /api/interviews and
// PUT /api/interviews/{id}.
type InterviewRequest struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Duration    string   `json:"duration"`
	Status      string   `json:"status"`
}

func (r InterviewRequest) record() store.Interview {
	return store.Interview{
		Title:       r.Title,
		Company:     r.Company,
		Position:    r.Position,
		Tags:        store.Tags(r.Tags),
		Description: r.Description,
		Duration:    r.Duration,
		Status:      store.Status(r.Status),
	}
}

// InterviewListResponse is returned by GET /api/interviews.
type InterviewListResponse struct {
	Interviews []store.Interview `json:"interviews"`
	Total      int               `json:"total"`
}

// TranscriptRequest is the body of the transcript endpoints.
type TranscriptRequest struct {
	Content string `json:"content"`
}

// PersistRequest is the body of POST /api/session/persist.
type PersistRequest struct {
	InterviewID string `json:"interviewId"`
	Transcript  string `json:"transcript"`
}

// OpenWindowRequest is the body of POST /ipc/windows.
type OpenWindowRequest struct {
	Name string `json:"name"`
}

// OpenWindowResponse is returned by POST /ipc/windows.
type OpenWindowResponse struct {
	ID ipc.WindowID `json:"id"`
}

type idResponse struct {
	ID string `json:"id"`
}
