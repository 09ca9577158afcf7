// Package store implements the durable key-value document store backing
// local persistence. Values are whole JSON documents; writes replace the
// entire document (last write wins).
package store

import (
	"database/sql"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/famworld/famagent/internal/file"
)

// Documents is the contract consumed by the chat and auth packages.
// Get reports absence through its second return value, never as an error.
type Documents interface {
	Put(key, value string) error
	Get(key string) (string, bool, error)
	Delete(key string) error
}

// Store implements a SQLite document store.
type Store struct {
	db *sql.DB
}

// New store.
func New(dbPath string) (*Store, error) {
	if err := file.EnsureDirectory(filepath.Dir(dbPath)); err != nil {
		return nil, errors.Wrap(err, "ensuring database directory")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	// Create documents table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			update_timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "creating documents table")
	}

	return &Store{
		db: db,
	}, nil
}

// Put writes a document to the store, replacing any previous value.
func (s *Store) Put(key, value string) error {
	// Use REPLACE INTO to handle both insert and update cases
	_, err := s.db.Exec(`
		REPLACE INTO documents (key, value, update_timestamp)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UnixMicro())
	if err != nil {
		return errors.Wrap(err, "writing document to database")
	}
	return nil
}

// Get a document. The second return value is false when the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`
		SELECT value
		FROM documents
		WHERE key = ?
	`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "querying document")
	}
	return value, true, nil
}

// Delete a document. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM documents WHERE key = ?`, key); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
