// Package pg implements persistence for the catalog, orders, identities
// and the audit log over PostgreSQL. Mutations on logged entities write
// their audit entry inside the same transaction, so a committed mutation
// always has its record.
package pg

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"zapchasti.org/internal/audit"
	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/catalog"
	"zapchasti.org/internal/orders"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Store struct {
	db *sql.DB

	// retryBase is the first transient-retry delay; doubles per attempt.
	retryBase time.Duration
}

var (
	_ catalog.Store      = (*Store)(nil)
	_ orders.Store       = (*Store)(nil)
	_ auth.IdentityStore = (*Store)(nil)
	_ audit.Store        = (*Store)(nil)
)

// Open connects to PostgreSQL via the pgx stdlib driver and tunes the
// connection pool.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, retryBase: defaultRetryBase}, nil
}

// NewWithDB wraps an existing connection, for tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, retryBase: defaultRetryBase}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(v string) sql.NullString {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// placeholders renders $from..$from+n-1 for IN clauses.
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, ", ")
}
