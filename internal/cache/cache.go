// Package cache persists fingerprints between runs so re-scanning an
// unchanged tree skips decoding. The cache is opt-in: the engine works
// identically without it, just slower on repeat runs. Entries are keyed
// by path and validated against file size and modification time, so a
// touched or rewritten file is re-fingerprinted.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"photoclean/internal/models"
)

// Entry is one cached fingerprint with the decode metadata captured
// alongside it.
type Entry struct {
	Hash   uint64
	Width  int
	Height int
	Format string
}

// Cache is a SQLite-backed fingerprint store.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c := &Cache{db: db}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		path TEXT PRIMARY KEY,
		file_size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		hash INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		format TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON fingerprints(hash);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached entry for path if size and mtime still match.
func (c *Cache) Get(path string, fileSize int64, modTime time.Time) (*Entry, bool) {
	var (
		hashInt       int64
		width, height int
		format        string
	)
	err := c.db.QueryRow(`
		SELECT hash, width, height, format
		FROM fingerprints
		WHERE path = ? AND file_size = ? AND mod_time = ?
	`, path, fileSize, modTime.UnixNano()).Scan(&hashInt, &width, &height, &format)
	if err != nil {
		return nil, false
	}
	return &Entry{
		Hash:   uint64(hashInt),
		Width:  width,
		Height: height,
		Format: format,
	}, true
}

// Put upserts fingerprints for the given records in one transaction.
// Records without a fingerprint are ignored.
func (c *Cache) Put(records []*models.ImageRecord) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO fingerprints (path, file_size, mod_time, hash, width, height, format)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.Fingerprint == nil {
			continue
		}
		// uint64 stored as int64 for SQLite compatibility.
		if _, err := stmt.Exec(
			r.Path,
			r.FileSize,
			r.ModTime.UnixNano(),
			int64(*r.Fingerprint),
			r.Width,
			r.Height,
			r.Format,
		); err != nil {
			return fmt.Errorf("failed to upsert fingerprint for %s: %w", r.Path, err)
		}
	}

	return tx.Commit()
}

// Prune drops cache rows whose file no longer exists on disk.
func (c *Cache) Prune() (int64, error) {
	rows, err := c.db.Query(`SELECT path FROM fingerprints`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return 0, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			stale = append(stale, path)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var pruned int64
	for _, path := range stale {
		res, err := c.db.Exec(`DELETE FROM fingerprints WHERE path = ?`, path)
		if err != nil {
			return pruned, err
		}
		if n, err := res.RowsAffected(); err == nil {
			pruned += n
		}
	}
	return pruned, nil
}
