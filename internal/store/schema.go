// Package store is the embedded, versioned object store for interviews,
// recorded videos and transcripts.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/jobpilot/internal/apperr"
)

// Collection names.
const (
	Interviews  = "interviews"
	Videos      = "videos"
	Transcripts = "transcripts"
)

// migrations maps a schema version to the statements that bring the
// previous version up to it. Every statement must be safe to re-run.
var migrations = map[int]string{
	1: `
CREATE TABLE IF NOT EXISTS interviews (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	company     TEXT NOT NULL DEFAULT '',
	position    TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	description TEXT NOT NULL DEFAULT '',
	date        DATETIME NOT NULL,
	duration    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'completed'
);
CREATE INDEX IF NOT EXISTS interviews_date ON interviews(date);
CREATE INDEX IF NOT EXISTS interviews_company ON interviews(company);

CREATE TABLE IF NOT EXISTS videos (
	id            TEXT PRIMARY KEY,
	interview_id  TEXT NOT NULL,
	payload       BLOB NOT NULL,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS videos_interviewId ON videos(interview_id);
CREATE INDEX IF NOT EXISTS videos_createdAt ON videos(created_at);

CREATE TABLE IF NOT EXISTS transcripts (
	id           TEXT PRIMARY KEY,
	interview_id TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS transcripts_interviewId ON transcripts(interview_id);
CREATE INDEX IF NOT EXISTS transcripts_createdAt ON transcripts(created_at);
`,
}

// upgrade brings the database from its stored user_version to target.
// A database written by a newer schema is refused.
func upgrade(ctx context.Context, db *sqlx.DB, target int) error {
	var current int
	if err := db.GetContext(ctx, &current, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("%w: read version: %w", apperr.ErrStoreUnavailable, err)
	}
	if current == target {
		return nil
	}
	if current > target {
		return fmt.Errorf("%w: stored version %d is newer than %d", apperr.ErrStoreUnavailable, current, target)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin upgrade: %w", apperr.ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for v := current + 1; v <= target; v++ {
		stmt, ok := migrations[v]
		if !ok {
			return fmt.Errorf("%w: no migration for version %d", apperr.ErrStoreUnavailable, v)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: apply version %d: %w", apperr.ErrStoreUnavailable, v, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, target)); err != nil {
		return fmt.Errorf("%w: set version: %w", apperr.ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit upgrade: %w", apperr.ErrStoreUnavailable, err)
	}
	return nil
}
