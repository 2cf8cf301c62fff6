package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // The pure Go SQLite driver
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DBorTx is an interface that allows query functions to accept either a
// `*sql.DB` for single statements or a `*sql.Tx` inside a transaction.
type DBorTx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Service is the central struct for all database interactions. It owns the
// connection pool, knows which SQL dialect it speaks and serializes write
// transactions.
type Service struct {
	driver string
	db     *sql.DB
	now    func() time.Time

	// writeMu serializes write transactions; SQLite allows a single writer.
	writeMu sync.Mutex
}

// NewService opens the database for the given driver ("sqlite" or "pgx") and
// verifies the connection.
func NewService(driver, dsn string) (*Service, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	if driver == DriverPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(30 * time.Minute)
	}

	return &Service{
		driver: driver,
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WriteTx executes fn inside a transaction, serialized with every other
// write. The transaction is rolled back when fn returns an error.
func (s *Service) WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// DB returns the underlying pool for reads outside a transaction.
func (s *Service) DB() *sql.DB {
	return s.db
}

// Driver reports the dialect in use.
func (s *Service) Driver() string {
	return s.driver
}

// Close closes the connection pool.
func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		logrus.WithError(err).Warn("closing database")
		return
	}
	logrus.Info("database connection closed")
}

// rebind rewrites `?` placeholders into the `$n` form PostgreSQL expects.
// Queries in this package never contain a literal question mark.
func (s *Service) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Service) exec(ctx context.Context, db DBorTx, query string, args ...interface{}) (sql.Result, error) {
	return db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Service) queryRow(ctx context.Context, db DBorTx, query string, args ...interface{}) *sql.Row {
	return db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Service) query(ctx context.Context, db DBorTx, query string, args ...interface{}) (*sql.Rows, error) {
	return db.QueryContext(ctx, s.rebind(query), args...)
}

// placeholders returns "?, ?, ?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return "?" + strings.Repeat(", ?", n-1)
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// InitSchema creates every table if it does not exist yet. It is idempotent
// and safe to run on every start.
func (s *Service) InitSchema(ctx context.Context) error {
	pk, ts, money := "INTEGER PRIMARY KEY", "DATETIME", "TEXT"
	if s.driver == DriverPostgres {
		pk, ts, money = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ", "NUMERIC(10,2)"
	}
	r := strings.NewReplacer("{{pk}}", pk, "{{ts}}", ts, "{{money}}", money)

	return s.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, r.Replace(stmt)); err != nil {
				return fmt.Errorf("schema: %w", err)
			}
		}
		return nil
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		name TEXT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT,
		role TEXT NOT NULL DEFAULT 'member',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id {{pk}},
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		slots_paid INTEGER NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		id {{pk}},
		team_id BIGINT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		joined_at {{ts}} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_team_members_team_user ON team_members (team_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members (user_id)`,
	`CREATE TABLE IF NOT EXISTS invitations (
		id {{pk}},
		team_id BIGINT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		invited_by BIGINT NOT NULL REFERENCES users (id),
		invited_at {{ts}} NOT NULL,
		token TEXT UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending'
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id {{pk}},
		owner_id BIGINT NOT NULL,
		owner_type TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_name TEXT,
		content_type TEXT,
		size INTEGER,
		uploaded_at {{ts}} NOT NULL,
		verified_by BIGINT,
		verified_at {{ts}},
		notes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_type, owner_id)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id {{pk}},
		team_id BIGINT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
		amount {{money}} NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		txn_ref TEXT,
		proof_url TEXT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_team ON payments (team_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS banned_names (
		id {{pk}},
		word TEXT NOT NULL,
		normalized TEXT NOT NULL,
		source_file TEXT,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_banned_names_normalized ON banned_names (normalized)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id {{pk}},
		team_id BIGINT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
		user_id BIGINT REFERENCES users (id) ON DELETE SET NULL,
		action TEXT NOT NULL,
		timestamp {{ts}} NOT NULL,
		ip_address TEXT
	)`,
}
