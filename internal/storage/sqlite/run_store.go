package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/storage"
)

// RunStore implements storage.RunStore on a local SQLite file.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway ledger.
func NewRunStore(path string) (*RunStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &RunStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		realm TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		snapshot_ts INTEGER NOT NULL DEFAULT 0,
		auctions_stored INTEGER NOT NULL DEFAULT 0,
		items_fetched INTEGER NOT NULL DEFAULT 0,
		statistics_stored INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if the id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.IngestRun) error {
	if r == nil || r.ID == uuid.Nil {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (
			id, mode, realm, started_at, finished_at, status, snapshot_ts,
			auctions_stored, items_fetched, statistics_stored, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID.String(), string(r.Mode), r.Realm, r.StartedAt, r.FinishedAt, string(r.Status),
		r.SnapshotTimestamp, r.AuctionsStored, r.ItemsFetched, r.StatisticsStored, r.Error,
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Update replaces a stored run. Returns ErrNotFound if not exists.
func (s *RunStore) Update(ctx context.Context, r *domain.IngestRun) error {
	if r == nil {
		return storage.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs SET
			mode = ?, realm = ?, started_at = ?, finished_at = ?, status = ?, snapshot_ts = ?,
			auctions_stored = ?, items_fetched = ?, statistics_stored = ?, error = ?
		WHERE id = ?
	`,
		string(r.Mode), r.Realm, r.StartedAt, r.FinishedAt, string(r.Status), r.SnapshotTimestamp,
		r.AuctionsStored, r.ItemsFetched, r.StatisticsStored, r.Error,
		r.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by id. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.IngestRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, realm, started_at, finished_at, status, snapshot_ts,
			auctions_stored, items_fetched, statistics_stored, error
		FROM ingest_runs WHERE id = ?
	`, id.String())

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRecent returns up to limit runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]*domain.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, realm, started_at, finished_at, status, snapshot_ts,
			auctions_stored, items_fetched, statistics_stored, error
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.IngestRun, error) {
	var (
		r            domain.IngestRun
		id           string
		mode, status string
	)
	err := row.Scan(
		&id, &mode, &r.Realm, &r.StartedAt, &r.FinishedAt, &status, &r.SnapshotTimestamp,
		&r.AuctionsStored, &r.ItemsFetched, &r.StatisticsStored, &r.Error,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse run id %q: %w", id, err)
	}
	r.ID = parsed
	r.Mode = domain.PullMode(mode)
	r.Status = domain.RunStatus(status)
	return &r, nil
}

func isConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
