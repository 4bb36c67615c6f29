// Package storage provides the local fallback cache for the coordinator.
// It keeps the last known zone list and the session credential in a small
// SQLite key/value table so the dashboard can come back up without the
// backend. It is never the system of record: the backend owns zones, and
// the cache is rewritten after every successful remote mutation.
//
// Values live under fixed keys (KeySavedZones, KeyToken, KeyUsername).
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/models"

	_ "modernc.org/sqlite"
)

// Fixed cache keys.
const (
	KeySavedZones = "savedZones"
	KeyToken      = "token"
	KeyUsername   = "username"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Storage is a thread-safe key/value cache backed by SQLite.
type Storage struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the cache at dbPath. ":memory:" gives a private
// in-memory cache. If dbPath is empty, an OS-appropriate temp path is used.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "zonewatch", "cache.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Storage) Get(key string) (value string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Storage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Storage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// SaveZones replaces the cached zone list.
func (s *Storage) SaveZones(zones []models.Zone) error {
	if zones == nil {
		zones = []models.Zone{}
	}
	data, err := json.Marshal(zones)
	if err != nil {
		return fmt.Errorf("failed to marshal zones: %w", err)
	}
	return s.Set(KeySavedZones, string(data))
}

// LoadZones returns the cached zone list, or an empty list if nothing is
// cached. Cached entries that no longer validate are skipped.
func (s *Storage) LoadZones() ([]models.Zone, error) {
	raw, ok, err := s.Get(KeySavedZones)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Zone{}, nil
	}

	var cached []models.Zone
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached zones: %w", err)
	}

	zones := make([]models.Zone, 0, len(cached))
	for i := range cached {
		if err := cached[i].Validate(); err != nil {
			logger.Warn("Skipping invalid cached zone %q: %v", cached[i].Name, err)
			continue
		}
		zones = append(zones, cached[i])
	}
	return zones, nil
}

// ClearZones removes the cached zone list.
func (s *Storage) ClearZones() error {
	return s.Delete(KeySavedZones)
}

// Token returns the cached credential, or "" if there is none.
func (s *Storage) Token() string {
	token, _, err := s.Get(KeyToken)
	if err != nil {
		logger.Warn("Failed to read cached credential: %v", err)
		return ""
	}
	return token
}

// Username returns the cached display name, or "".
func (s *Storage) Username() string {
	name, _, err := s.Get(KeyUsername)
	if err != nil {
		logger.Warn("Failed to read cached username: %v", err)
		return ""
	}
	return name
}

// SetCredential caches a login result. An empty username leaves any cached
// name untouched.
func (s *Storage) SetCredential(token, username string) error {
	if token == "" {
		return errors.New("token must not be empty")
	}
	if err := s.Set(KeyToken, token); err != nil {
		return err
	}
	if username != "" {
		return s.Set(KeyUsername, username)
	}
	return nil
}

// ClearCredential forgets the cached login.
func (s *Storage) ClearCredential() error {
	if err := s.Delete(KeyToken); err != nil {
		return err
	}
	return s.Delete(KeyUsername)
}
