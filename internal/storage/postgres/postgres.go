package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// Tables holds the table names used by the stores.
// Names are configurable so several deployments can share one database.
type Tables struct {
	Auctions   string `yaml:"auctions"`
	Snapshots  string `yaml:"snapshots"`
	Items      string `yaml:"items"`
	Statistics string `yaml:"statistics"`
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{
		Auctions:   "auctions",
		Snapshots:  "snapshots",
		Items:      "items",
		Statistics: "item_statistics",
	}
}

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Validate checks that every name is a plain lowercase SQL identifier.
func (t Tables) Validate() error {
	for _, name := range []string{t.Auctions, t.Snapshots, t.Items, t.Statistics} {
		if !identifierRe.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}

// WithDefaults fills empty names from DefaultTables.
func (t Tables) WithDefaults() Tables {
	d := DefaultTables()
	if t.Auctions == "" {
		t.Auctions = d.Auctions
	}
	if t.Snapshots == "" {
		t.Snapshots = d.Snapshots
	}
	if t.Items == "" {
		t.Items = d.Items
	}
	if t.Statistics == "" {
		t.Statistics = d.Statistics
	}
	return t
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
