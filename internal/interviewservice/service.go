// Package interviewservice composes store operations into the views used by
// the HTTP bridge and the MCP server.
package interviewservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/jobpilot/internal/apperr"
	"github.com/starford/jobpilot/internal/store"
)

// Store is the subset of the local store the service needs.
type Store interface {
	SaveInterview(ctx context.Context, rec store.Interview) (string, error)
	AllInterviews(ctx context.Context) ([]store.Interview, error)
	InterviewByID(ctx context.Context, id string) (*store.Interview, error)
	DeleteInterview(ctx context.Context, id string) error
	SaveVideo(ctx context.Context, in store.NewVideo) (string, error)
	VideoByInterviewID(ctx context.Context, interviewID string) (*store.VideoRecord, error)
	VideosByInterviewID(ctx context.Context, interviewID string) ([]store.VideoRecord, error)
	SaveTranscript(ctx context.Context, in store.NewTranscript) (string, error)
	TranscriptByInterviewID(ctx context.Context, interviewID string) (*store.Transcript, error)
	TranscriptByID(ctx context.Context, id string) (*store.Transcript, error)
	UpdateTranscript(ctx context.Context, id, content string) error
}

// VideoMeta describes a stored video without its payload.
type VideoMeta struct {
	ID           string    `json:"id"`
	Size         int       `json:"size"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Detail is an interview with its transcript and videos.
type Detail struct {
	store.Interview
	Transcript *store.Transcript `json:"transcript"`
	Videos     []VideoMeta       `json:"videos"`
}

// Service wraps the store.
type Service struct {
	store Store
}

// New creates a service over s.
func New(s Store) *Service {
	return &Service{store: s}
}

// List returns every interview.
func (s *Service) List(ctx context.Context) ([]store.Interview, error) {
	items, err := s.store.AllInterviews(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Interview{}
	}
	return items, nil
}

// Create stores a new interview and returns it as saved.
func (s *Service) Create(ctx context.Context, rec store.Interview) (*store.Interview, error) {
	rec.ID = ""
	id, err := s.store.SaveInterview(ctx, rec)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get returns one interview or an error wrapping apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*store.Interview, error) {
	rec, err := s.store.InterviewByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("interview %s: %w", id, apperr.ErrNotFound)
	}
	return rec, nil
}

// Update replaces an existing interview's fields, keeping its id and date.
func (s *Service) Update(ctx context.Context, id string, rec store.Interview) (*store.Interview, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.ID = cur.ID
	rec.Date = cur.Date
	if rec.Status == "" {
		rec.Status = cur.Status
	}
	if _, err := s.store.SaveInterview(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Detail returns the interview with its earliest transcript and all videos.
func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.store.TranscriptByInterviewID(ctx, id)
	if err != nil {
		return nil, err
	}
	videos, err := s.store.VideosByInterviewID(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &Detail{Interview: *rec, Transcript: tr, Videos: make([]VideoMeta, 0, len(videos))}
	for _, v := range videos {
		d.Videos = append(d.Videos, VideoMeta{
			ID:           v.ID,
			Size:         len(v.Blob),
			ThumbnailURL: v.ThumbnailURL,
			CreatedAt:    v.CreatedAt,
		})
	}
	return d, nil
}

// Delete removes an interview and its dependents. Deleting an absent id
// succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteInterview(ctx, id)
}

// AddVideo stores a recording for an existing interview.
func (s *Service) AddVideo(ctx context.Context, interviewID string, blob []byte, thumbnailURL string) (string, error) {
	if _, err := s.Get(ctx, interviewID); err != nil {
		return "", err
	}
	return s.store.SaveVideo(ctx, store.NewVideo{InterviewID: interviewID, Blob: blob, ThumbnailURL: thumbnailURL})
}

// Video returns the earliest video of an interview or an error wrapping
// apperr.ErrNotFound.
func (s *Service) Video(ctx context.Context, interviewID string) (*store.VideoRecord, error) {
	v, err := s.store.VideoByInterviewID(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("video for %s: %w", interviewID, apperr.ErrNotFound)
	}
	return v, nil
}

// Transcript returns the earliest transcript of an interview or an error
// wrapping apperr.ErrNotFound.
func (s *Service) Transcript(ctx context.Context, interviewID string) (*store.Transcript, error) {
	t, err := s.store.TranscriptByInterviewID(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("transcript for %s: %w", interviewID, apperr.ErrNotFound)
	}
	return t, nil
}

// SetTranscript updates the interview's transcript in place, or creates one
// when it has none. It returns the transcript id.
func (s *Service) SetTranscript(ctx context.Context, interviewID, content string) (string, error) {
	if _, err := s.Get(ctx, interviewID); err != nil {
		return "", err
	}
	cur, err := s.store.TranscriptByInterviewID(ctx, interviewID)
	if err != nil {
		return "", err
	}
	if cur == nil {
		return s.store.SaveTranscript(ctx, store.NewTranscript{InterviewID: interviewID, Content: content})
	}
	if err := s.store.UpdateTranscript(ctx, cur.ID, content); err != nil {
		return "", err
	}
	return cur.ID, nil
}

// UpdateTranscript rewrites a transcript by its own id.
func (s *Service) UpdateTranscript(ctx context.Context, id, content string) (*store.Transcript, error) {
	if err := s.store.UpdateTranscript(ctx, id, content); err != nil {
		return nil, err
	}
	t, err := s.store.TranscriptByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("transcript %s: %w", id, apperr.ErrNotFound)
	}
	return t, nil
}
