// Package session persists and re-establishes authenticated marketplace
// sessions. Cookies are the only credential ever stored, encrypted at rest.
package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mlopezr/crosslist/internal/browser"
)

// Store defines the interface for cookie persistence, keyed by marketplace.
type Store interface {
	// Get returns the stored cookies, or nil when no session is stored.
	Get(marketplace string) ([]browser.Cookie, error)
	Save(marketplace string, cookies []browser.Cookie) error
	Delete(marketplace string) error
	Close() error
}

// SQLiteStore implements Store using SQLite with encrypted cookie payloads.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

// NewSQLiteStore opens (or creates) the session database at dbPath.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// WAL mode and a busy timeout so concurrent readers don't trip over writes
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Tighten permissions; a missing file is fine, it gets created on first write
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to set database permissions: %w", err)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		marketplace TEXT PRIMARY KEY,
		encrypted_cookies TEXT NOT NULL,
		last_updated DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// Get retrieves the cookies stored for a marketplace.
// Returns nil, nil if no session is stored.
func (s *SQLiteStore) Get(marketplace string) ([]browser.Cookie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	err := s.db.QueryRow(
		"SELECT encrypted_cookies FROM sessions WHERE marketplace = ?",
		marketplace,
	).Scan(&encrypted)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	cookiesJSON, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cookies: %w", err)
	}

	var cookies []browser.Cookie
	if err := json.Unmarshal(cookiesJSON, &cookies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}

	return cookies, nil
}

// Save stores or updates the cookies for a marketplace.
func (s *SQLiteStore) Save(marketplace string, cookies []browser.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookiesJSON, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	encrypted, err := Encrypt(cookiesJSON, s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt cookies: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (marketplace, encrypted_cookies, last_updated)
		VALUES (?, ?, ?)
		ON CONFLICT(marketplace) DO UPDATE SET
			encrypted_cookies = excluded.encrypted_cookies,
			last_updated = excluded.last_updated
	`, marketplace, encrypted, time.Now())

	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Delete removes the stored session for a marketplace.
func (s *SQLiteStore) Delete(marketplace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM sessions WHERE marketplace = ?", marketplace)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
