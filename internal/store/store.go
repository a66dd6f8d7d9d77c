package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/starford/jobpilot/internal/apperr"
)

// Defaults for Options.
const (
	DefaultName    = "job-pilot-db"
	DefaultVersion = 1
)

// Options identify the database to open.
type Options struct {
	Dir     string
	Name    string
	Version int
}

// Store is a handle to the local database. It holds no connection: every
// operation opens one, runs a single transaction and closes it again, so a
// connection never outlives a schema upgrade.
type Store struct {
	path    string
	version int
}

var now = time.Now

// Open validates that the database can be opened at the requested version,
// creating or upgrading its collections as needed.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Version <= 0 {
		opts.Version = DefaultVersion
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w: %w", apperr.ErrStoreUnavailable, err)
	}

	s := &Store{
		path:    filepath.Join(opts.Dir, opts.Name+".sqlite"),
		version: opts.Version,
	}
	db, err := s.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("store: close after open: %w: %w", apperr.ErrStoreUnavailable, err)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Version returns the schema version the store was opened with.
func (s *Store) Version() int { return s.version }

// Ping opens and closes a connection, reporting ErrStoreUnavailable when the
// database cannot be reached.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return db.Close()
}

func (s *Store) connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", s.path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %w", apperr.ErrStoreUnavailable, err)
	}
	if err := upgrade(ctx, db, s.version); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// transact runs fn inside one transaction on a fresh connection. It returns
// only after COMMIT has completed, and the connection is closed on every path.
func (s *Store) transact(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// fail tags err with kind unless it already carries a more specific sentinel.
func fail(kind error, op string, err error) error {
	if errors.Is(err, apperr.ErrStoreUnavailable) || errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	return fmt.Errorf("store: %s: %w: %w", op, kind, err)
}

// NewID returns a record id made of a base36 millisecond timestamp followed
// by a base36 random suffix. Collisions are not checked.
func NewID() string {
	u := uuid.New()
	suffix := binary.BigEndian.Uint64(u[8:]) &^ (3 << 62) // clear the variant bits
	return strconv.FormatInt(now().UnixMilli(), 36) + strconv.FormatUint(suffix, 36)
}
