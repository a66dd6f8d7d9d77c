package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/starford/jobpilot/internal/apperr"
)

const (
	videoColumns      = `id, interview_id, payload, thumbnail_url, created_at`
	transcriptColumns = `id, interview_id, content, created_at`
)

// SaveVideo inserts a new video record and returns its id.
func (s *Store) SaveVideo(ctx context.Context, in NewVideo) (string, error) {
	rec := VideoRecord{
		ID:           NewID(),
		InterviewID:  in.InterviewID,
		Blob:         in.Blob,
		ThumbnailURL: in.ThumbnailURL,
		CreatedAt:    now().UTC(),
	}
	if rec.Blob == nil {
		rec.Blob = []byte{}
	}
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO videos (`+videoColumns+`)
			VALUES (:id, :interview_id, :payload, :thumbnail_url, :created_at)`, rec)
		return err
	})
	if err != nil {
		return "", fail(apperr.ErrWriteFailed, "save video", err)
	}
	return rec.ID, nil
}

// SaveTranscript inserts a new transcript and returns its id.
func (s *Store) SaveTranscript(ctx context.Context, in NewTranscript) (string, error) {
	rec := Transcript{
		ID:          NewID(),
		InterviewID: in.InterviewID,
		Content:     in.Content,
		CreatedAt:   now().UTC(),
	}
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO transcripts (`+transcriptColumns+`)
			VALUES (:id, :interview_id, :content, :created_at)`, rec)
		return err
	})
	if err != nil {
		return "", fail(apperr.ErrWriteFailed, "save transcript", err)
	}
	return rec.ID, nil
}

// VideoByInterviewID returns the earliest video of the interview, or nil.
func (s *Store) VideoByInterviewID(ctx context.Context, interviewID string) (*VideoRecord, error) {
	var rec VideoRecord
	ok, err := s.first(ctx, &rec, `SELECT `+videoColumns+` FROM videos
		WHERE interview_id = ? ORDER BY created_at, id LIMIT 1`, interviewID)
	if err != nil {
		return nil, fail(apperr.ErrReadFailed, "video by interview", err)
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// VideosByInterviewID returns every video of the interview, oldest first.
func (s *Store) VideosByInterviewID(ctx context.Context, interviewID string) ([]VideoRecord, error) {
	out := []VideoRecord{}
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &out, `SELECT `+videoColumns+` FROM videos
			WHERE interview_id = ? ORDER BY created_at, id`, interviewID)
	})
	if err != nil {
		return nil, fail(apperr.ErrReadFailed, "videos by interview", err)
	}
	return out, nil
}

// TranscriptByInterviewID returns the earliest transcript of the interview, or nil.
func (s *Store) TranscriptByInterviewID(ctx context.Context, interviewID string) (*Transcript, error) {
	var rec Transcript
	ok, err := s.first(ctx, &rec, `SELECT `+transcriptColumns+` FROM transcripts
		WHERE interview_id = ? ORDER BY created_at, id LIMIT 1`, interviewID)
	if err != nil {
		return nil, fail(apperr.ErrReadFailed, "transcript by interview", err)
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// TranscriptsByInterviewID returns every transcript of the interview, oldest first.
func (s *Store) TranscriptsByInterviewID(ctx context.Context, interviewID string) ([]Transcript, error) {
	out := []Transcript{}
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &out, `SELECT `+transcriptColumns+` FROM transcripts
			WHERE interview_id = ? ORDER BY created_at, id`, interviewID)
	})
	if err != nil {
		return nil, fail(apperr.ErrReadFailed, "transcripts by interview", err)
	}
	return out, nil
}

// TranscriptByID returns the transcript or nil.
func (s *Store) TranscriptByID(ctx context.Context, id string) (*Transcript, error) {
	var rec Transcript
	ok, err := s.first(ctx, &rec, `SELECT `+transcriptColumns+` FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return nil, fail(apperr.ErrReadFailed, "transcript by id", err)
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// UpdateTranscript replaces the content of an existing transcript.
func (s *Store) UpdateTranscript(ctx context.Context, id, content string) error {
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		var rec Transcript
		err := tx.GetContext(ctx, &rec, `SELECT `+transcriptColumns+` FROM transcripts WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transcript %s: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return err
		}
		rec.Content = content
		_, err = tx.NamedExecContext(ctx, `UPDATE transcripts SET content = :content WHERE id = :id`, rec)
		return err
	})
	if err != nil {
		return fail(apperr.ErrWriteFailed, "update transcript", err)
	}
	return nil
}

// first scans the single row of query into dest and reports whether one existed.
func (s *Store) first(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	found := true
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, dest, query, args...)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	return found, err
}
