// Package store persists grid tables in a relational database and serves
// them to the grid through the grid.DataSource interface.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	celx "github.com/oakwood-commons/kvgrid/internal/cel"
	"github.com/oakwood-commons/kvgrid/internal/grid"
)

// DefaultReadTimeout bounds shared reads when Config.ReadTimeout is unset.
const DefaultReadTimeout = 30 * time.Second

// Config describes how to reach the database.
type Config struct {
	Driver         string
	DSN            string
	ConnectTimeout time.Duration
	// ReadTimeout bounds a coalesced page or search query. Zero means
	// DefaultReadTimeout.
	ReadTimeout    time.Duration
	MaxOpenConns   int
	Logger         logr.Logger
}

// Store is a grid.DataSource backed by database/sql.
type Store struct {
	db          *sql.DB
	dialect     Dialect
	log         logr.Logger
	eval        *celx.Evaluator
	reads       singleflight.Group
	// readTimeout bounds shared reads, which outlive any single caller.
	readTimeout time.Duration
	newID       func() string
	now         func() time.Time
}

var _ grid.DataSource = (*Store)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects, pings within ConnectTimeout and creates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := Lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s: empty DSN", d.Name)
	}
	db, err := sql.Open(d.Name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	switch {
	case d.SingleConn:
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, mapErr(pingCtx, err))
	}
	s, err := New(db, d, cfg.Logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.ReadTimeout > 0 {
		s.readTimeout = cfg.ReadTimeout
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB, d Dialect, log logr.Logger) (*Store, error) {
	eval, err := celx.NewEvaluator()
	if err != nil {
		return nil, err
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Store{
		db:          db,
		dialect:     d,
		log:         log.WithName("store").WithValues("driver", d.Name),
		eval:        eval,
		readTimeout: DefaultReadTimeout,
		newID:       uuid.NewString,
		now:         time.Now,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// EnsureSchema creates the storage tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", mapErr(ctx, err))
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(ctx, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(ctx, err)
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}
