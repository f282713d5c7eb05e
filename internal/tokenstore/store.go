package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// SingletonKey is the fixed id under which the one global token lives.
// There are no per-merchant tokens.
const SingletonKey = "token"

// SafetyMargin is subtracted from the computed expiry before a cached token
// is considered usable.
const SafetyMargin = 5 * time.Minute

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Open initializes the connection pool and verifies connectivity.
func Open(config DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		config.Host,
		config.Port,
		config.Database,
		config.User,
		config.Password,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", config.Database)
	return db, nil
}

// Record is the singleton Token Record. Expiry is encoded either as
// issued_at + expires_in, or as the legacy absolute expires_at. A record with
// neither is treated as non-expiring.
type Record struct {
	AccessToken string
	ExpiresIn   sql.NullInt64
	IssuedAt    sql.NullTime
	ExpiresAt   sql.NullTime
}

// ValidAt reports whether the record holds a usable token at the given
// instant. The safety margin is inclusive: exactly at effective expiry the
// token counts as expired.
func (r Record) ValidAt(now time.Time) bool {
	if r.AccessToken == "" {
		return false
	}
	switch {
	case r.ExpiresIn.Valid && r.IssuedAt.Valid:
		expiresAt := r.IssuedAt.Time.Add(time.Duration(r.ExpiresIn.Int64) * time.Second)
		return now.Before(expiresAt.Add(-SafetyMargin))
	case r.ExpiresAt.Valid:
		return now.Before(r.ExpiresAt.Time.Add(-SafetyMargin))
	}
	// No expiry information at all: assume valid. Lenient fallback for the
	// legacy record shape, not a general guarantee.
	return true
}

// Store reads and writes the singleton Token Record.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

// EnsureSchema creates the auth_tokens table if missing. The table is tiny
// and shared between the lookup service and the token issuer.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS auth_tokens (
			id           TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			expires_in   BIGINT,
			issued_at    TIMESTAMPTZ,
			expires_at   TIMESTAMPTZ,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure auth_tokens schema: %w", err)
	}
	return nil
}

// Get returns the singleton record and whether one exists.
func (s *Store) Get(ctx context.Context) (Record, bool, error) {
	var rec Record
	err := s.DB.QueryRowContext(ctx, `
		SELECT access_token, expires_in, issued_at, expires_at
		FROM auth_tokens
		WHERE id = $1
	`, SingletonKey).Scan(&rec.AccessToken, &rec.ExpiresIn, &rec.IssuedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read token record: %w", err)
	}
	return rec, true, nil
}

// Put upserts the singleton record. Concurrent refreshers race here on
// purpose; last writer wins.
func (s *Store) Put(ctx context.Context, rec Record) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO auth_tokens (id, access_token, expires_in, issued_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			expires_in   = EXCLUDED.expires_in,
			issued_at    = EXCLUDED.issued_at,
			expires_at   = EXCLUDED.expires_at,
			updated_at   = CURRENT_TIMESTAMP
	`, SingletonKey, rec.AccessToken, rec.ExpiresIn, rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert token record: %w", err)
	}
	log.Printf("[DB] Stored token record (key=%s)", SingletonKey)
	return nil
}

// Ping verifies store connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.DB.PingContext(ctx)
}
