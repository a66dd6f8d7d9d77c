package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jobpilot/internal/apperr"
)

const interviewColumns = `id, title, company, position, tags, description, date, duration, status`

// SaveInterview stores rec and returns its id. A record without an id is a
// create: the store allocates the id, stamps Date and defaults Status to
// completed. A record with an id replaces the stored one wholesale.
func (s *Store) SaveInterview(ctx context.Context, rec Interview) (string, error) {
	if rec.Tags == nil {
		rec.Tags = Tags{}
	}
	create := rec.ID == ""
	if create {
		rec.ID = NewID()
		rec.Date = now().UTC()
		if rec.Status == "" {
			rec.Status = StatusCompleted
		}
	}
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("store: save interview: %w: %w", apperr.ErrWriteFailed, err)
	}

	query := `INSERT INTO interviews (` + interviewColumns + `)
		VALUES (:id, :title, :company, :position, :tags, :description, :date, :duration, :status)`
	if !create {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			company     = excluded.company,
			position    = excluded.position,
			tags        = excluded.tags,
			description = excluded.description,
			date        = excluded.date,
			duration    = excluded.duration,
			status      = excluded.status`
	}

	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, query, rec)
		return err
	})
	if err != nil {
		return "", fail(apperr.ErrWriteFailed, "save interview", err)
	}
	return rec.ID, nil
}

// AllInterviews returns every interview in primary-key order.
func (s *Store) AllInterviews(ctx context.Context) ([]Interview, error) {
	out := []Interview{}
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &out, `SELECT `+interviewColumns+` FROM interviews ORDER BY id`)
	})
	if err != nil {
		return nil, fail(apperr.ErrReadFailed, "all interviews", err)
	}
	return out, nil
}

// InterviewByID returns the interview or nil when there is none.
func (s *Store) InterviewByID(ctx context.Context, id string) (*Interview, error) {
	var rec Interview
	ok, err := s.first(ctx, &rec, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)
	if err != nil {
		return nil, fail(apperr.ErrReadFailed, "interview by id", err)
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// DeleteInterview removes the interview and every video and transcript that
// references it, in one transaction over all three collections. The two
// dependent deletes run concurrently inside that transaction; the call
// returns once it has committed. Deleting an unknown id is not an error.
func (s *Store) DeleteInterview(ctx context.Context, id string) error {
	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM interviews WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete interview: %w", err)
		}
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error { return deleteDependents(gCtx, tx, Videos, id) })
		g.Go(func() error { return deleteDependents(gCtx, tx, Transcripts, id) })
		return g.Wait()
	})
	if err != nil {
		return fail(apperr.ErrDeleteFailed, "delete interview", err)
	}
	return nil
}

// deleteDependents looks up rows of table through its interview index and
// deletes them one by one.
func deleteDependents(ctx context.Context, tx *sqlx.Tx, table, interviewID string) error {
	var ids []string
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM `+table+` WHERE interview_id = ?`, interviewID); err != nil {
		return fmt.Errorf("lookup %s: %w", table, err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete %s %s: %w", table, id, err)
		}
	}
	return nil
}
