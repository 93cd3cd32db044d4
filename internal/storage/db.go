package storage

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var (
	ErrNotFound       = errors.New("storage: not found")
	ErrEmailTaken     = errors.New("storage: email already registered")
	ErrStatusConflict = errors.New("storage: cv status conflict")
)

type DB struct {
	connection *sql.DB
}

func NewDB(dataSourceName string) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Connection pool tuning
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DB{connection: db}, nil
}

// NewDBWithConn wraps an existing connection pool. For callers that manage
// the pool themselves.
func NewDBWithConn(conn *sql.DB) *DB {
	return &DB{connection: conn}
}

func (db *DB) Close() {
	if err := db.connection.Close(); err != nil {
		log.Println("Error closing the database connection:", err)
	}
}

func (db *DB) Ping(ctx context.Context) error {
	return db.connection.PingContext(ctx)
}

// EnsureSchema creates the tables this service owns. Idempotent; runs at
// startup.
func (db *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			email                TEXT UNIQUE NOT NULL,
			password_hash        TEXT NOT NULL,
			role                 TEXT NOT NULL,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login_at        TIMESTAMPTZ,
			is_active            BOOLEAN NOT NULL DEFAULT TRUE,
			deleted_at           TIMESTAMPTZ,
			first_name           TEXT NOT NULL DEFAULT '',
			last_name            TEXT NOT NULL DEFAULT '',
			location             TEXT NOT NULL DEFAULT '',
			cv_processing_status TEXT NOT NULL DEFAULT 'none',
			cv_filename          TEXT NOT NULL DEFAULT '',
			cv_uploaded_at       TIMESTAMPTZ,
			cv_status_changed_at TIMESTAMPTZ,
			vector_key           TEXT NOT NULL DEFAULT '',
			company_name         TEXT NOT NULL DEFAULT '',
			job_title            TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_cv_status ON users (cv_processing_status)`,
		`CREATE TABLE IF NOT EXISTS saved_searches (
			id           TEXT PRIMARY KEY,
			recruiter_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name         TEXT NOT NULL,
			requirements TEXT NOT NULL,
			filters      JSONB,
			result_limit INT NOT NULL DEFAULT 10,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_used_at TIMESTAMPTZ,
			use_count    INT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_searches_recruiter ON saved_searches (recruiter_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.connection.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetConnection returns the underlying database connection for advanced queries
func (db *DB) GetConnection() *sql.DB {
	return db.connection
}
