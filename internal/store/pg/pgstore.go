// Package pg is the PostgreSQL store. Documents that the services treat as
// opaque (invoice bodies, organization profiles, claim bags) live in jsonb
// columns; everything queried or joined on is a real column.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"factura.org/internal/admin"
	"factura.org/internal/audit"
	"factura.org/internal/auth"
	"factura.org/internal/fault"
	"factura.org/internal/invoice"
	"factura.org/internal/tenant"
)

type Store struct {
	db *sql.DB
}

var (
	_ auth.UserStore = (*Store)(nil)
	_ tenant.Store   = (*Store)(nil)
	_ invoice.Store  = (*Store)(nil)
	_ audit.Store    = (*Store)(nil)
	_ admin.Store    = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle, for tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// retryable reports whether the transaction failed on a serialization
// conflict or deadlock and is worth retrying.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func notFound(err error, fallback *fault.Error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fallback
	}
	return err
}
