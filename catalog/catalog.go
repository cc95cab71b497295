// Package catalog is the SQLite-backed reference implementation of the
// catalog the matcher scans: one row per catalogued image, holding the
// stable image reference and the lazily backfilled fingerprint.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"imagededup/types"
)

// Catalog wraps the SQLite connection. It implements types.Catalog.
type Catalog struct {
	db *sql.DB
}

// Open initializes the catalog database, creating the schema if needed.
func Open(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY errors during concurrent ingestion.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_ref TEXT NOT NULL,
		fingerprint TEXT,
		added_at TEXT,
		UNIQUE(image_ref)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_fingerprint ON entries(fingerprint);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create catalog schema: %v", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Add inserts a new entry and returns its id. The fingerprint may be
// empty; the matcher backfills it on first need.
func (c *Catalog) Add(imageRef, fp string) (int64, error) {
	if imageRef == "" {
		return 0, fmt.Errorf("cannot add entry without image reference")
	}

	res, err := c.db.Exec(
		`INSERT INTO entries (image_ref, fingerprint, added_at) VALUES (?, ?, ?)`,
		imageRef, fp, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("cannot insert entry for %s: %v", imageRef, err)
	}
	return res.LastInsertId()
}

// Entries returns every entry with a usable image reference, excluding
// the given id (0 excludes nothing).
func (c *Catalog) Entries(excludeID int64) ([]types.CatalogEntry, error) {
	rows, err := c.db.Query(
		`SELECT id, image_ref, COALESCE(fingerprint, '') FROM entries
		 WHERE image_ref != '' AND (? = 0 OR id != ?)
		 ORDER BY id`,
		excludeID, excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog query error: %v", err)
	}
	defer rows.Close()

	var entries []types.CatalogEntry
	for rows.Next() {
		var e types.CatalogEntry
		if err := rows.Scan(&e.ID, &e.ImageRef, &e.Fingerprint); err != nil {
			return nil, fmt.Errorf("error scanning entry row: %v", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveFingerprint persists a computed fingerprint against an entry, the
// backfill half of fingerprint-on-read.
func (c *Catalog) SaveFingerprint(id int64, fp string) error {
	res, err := c.db.Exec(`UPDATE entries SET fingerprint = ? WHERE id = ?`, fp, id)
	if err != nil {
		return fmt.Errorf("cannot save fingerprint for entry %d: %v", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no entry with id %d", id)
	}
	return nil
}

// FindByRef looks up an entry id by its image reference.
func (c *Catalog) FindByRef(imageRef string) (int64, bool, error) {
	var id int64
	err := c.db.QueryRow(`SELECT id FROM entries WHERE image_ref = ?`, imageRef).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("catalog lookup error for %s: %v", imageRef, err)
	}
	return id, true, nil
}

// Remove deletes an entry and returns its image reference so the caller
// can invalidate cached descriptors for it.
func (c *Catalog) Remove(id int64) (string, error) {
	var ref string
	err := c.db.QueryRow(`SELECT image_ref FROM entries WHERE id = ?`, id).Scan(&ref)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no entry with id %d", id)
	}
	if err != nil {
		return "", fmt.Errorf("catalog lookup error for entry %d: %v", id, err)
	}

	if _, err := c.db.Exec(`DELETE FROM entries WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("cannot delete entry %d: %v", id, err)
	}
	return ref, nil
}

// Count returns the number of catalogued entries.
func (c *Catalog) Count() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cannot count entries: %v", err)
	}
	return n, nil
}
