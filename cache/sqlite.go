// SQLite-backed fetch cache.
//
// Information Hiding:
// - SQLite connection management hidden behind the Store interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/almanac/model"
)

// SqliteStore implements Store using a SQLite database file, giving the
// cache fetch-once-keep-forever semantics across runs.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite cache at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite cache: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS fetches (
			key TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			content TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			source_url TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_fetches_hash
		ON fetches(content_hash);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get returns the stored entry for a key, if present.
func (s *SqliteStore) Get(ctx context.Context, key string) (model.FetchResult, bool, error) {
	var result model.FetchResult
	var fetchedAt int64
	var status string

	err := s.db.QueryRowContext(ctx, `
		SELECT status, content, content_hash, source_url, fetched_at
		FROM fetches WHERE key = ?`,
		key).Scan(&status, &result.Content, &result.ContentHash, &result.SourceURL, &fetchedAt)

	if err == sql.ErrNoRows {
		return model.FetchResult{}, false, nil
	}
	if err != nil {
		return model.FetchResult{}, false, fmt.Errorf("failed to query cache entry: %w", err)
	}

	result.Status = model.FetchStatus(status)
	result.FetchedAt = time.Unix(fetchedAt, 0)
	return result, true, nil
}

// Put stores an entry under a key. INSERT OR REPLACE gives
// last-writer-wins for the rare duplicated fetch; content is immutable
// once cached so no update is ever lost.
func (s *SqliteStore) Put(ctx context.Context, key string, result model.FetchResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO fetches
		(key, status, content, content_hash, source_url, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key,
		string(result.Status),
		result.Content,
		result.ContentHash,
		result.SourceURL,
		result.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *SqliteStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fetches").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)
