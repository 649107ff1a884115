package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sereno-go/internal/database/migrations"
	"sereno-go/internal/field"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the LocalStore interface using SQLite. It holds
// the geocode cache, the incident-list cache, and the local submission
// history.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ field.LocalStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store and brings its schema up to
// date. path can be a file path or ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Geocode cache operations

// GetGeocode returns the cached address for a coordinate bucket. Expiry is
// lazy: a stale row is deleted on read and reported as a miss.
func (s *SQLiteStore) GetGeocode(key string, now time.Time) (string, bool, error) {
	var address string
	var cachedAt time.Time
	err := s.db.QueryRow("SELECT address, cached_at FROM geocode_cache WHERE key = ?", key).
		Scan(&address, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading geocode cache: %w", err)
	}

	if now.Sub(cachedAt) > field.GeocodeCacheTTL {
		if _, err := s.db.Exec("DELETE FROM geocode_cache WHERE key = ?", key); err != nil {
			return "", false, fmt.Errorf("evicting stale geocode entry: %w", err)
		}
		return "", false, nil
	}
	return address, true, nil
}

// PutGeocode stores or refreshes the address for a coordinate bucket.
func (s *SQLiteStore) PutGeocode(key, address string, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO geocode_cache (key, address, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET address = excluded.address, cached_at = excluded.cached_at`,
		key, address, now)
	if err != nil {
		return fmt.Errorf("writing geocode cache: %w", err)
	}
	return nil
}

// Submission history operations

func (s *SQLiteStore) CreateSubmission(sub *field.Submission) error {
	_, err := s.db.Exec(`
		INSERT INTO submissions (id, codigo, tipo_caso_id, sub_tipo_caso_id, direccion, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Codigo, sub.TipoCasoID, sub.SubTipoCasoID, sub.Direccion, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording submission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSubmissions(limit int) ([]*field.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, codigo, tipo_caso_id, sub_tipo_caso_id, direccion, created_at
		FROM submissions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var out []*field.Submission
	for rows.Next() {
		var sub field.Submission
		if err := rows.Scan(&sub.ID, &sub.Codigo, &sub.TipoCasoID, &sub.SubTipoCasoID, &sub.Direccion, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		out = append(out, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return out, nil
}

// List cache operations

func (s *SQLiteStore) GetListCache(key string, now time.Time, ttl time.Duration) ([]byte, bool, error) {
	var payload []byte
	var cachedAt time.Time
	err := s.db.QueryRow("SELECT payload, cached_at FROM list_cache WHERE key = ?", key).
		Scan(&payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading list cache: %w", err)
	}

	if now.Sub(cachedAt) > ttl {
		if _, err := s.db.Exec("DELETE FROM list_cache WHERE key = ?", key); err != nil {
			return nil, false, fmt.Errorf("evicting stale list entry: %w", err)
		}
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *SQLiteStore) PutListCache(key string, payload []byte, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO list_cache (key, payload, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		key, payload, now)
	if err != nil {
		return fmt.Errorf("writing list cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InvalidateListCache(prefix string) error {
	_, err := s.db.Exec("DELETE FROM list_cache WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		return fmt.Errorf("invalidating list cache: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory stores).
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
