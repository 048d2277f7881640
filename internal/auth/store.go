// Package auth implements API-key authentication backed by a JSON key file.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"llamad/internal/common/fsutil"
)

// Defaults used by Generate for missing arguments.
const (
	DefaultName        = "Default Name"
	DefaultDescription = "No description provided"
)

// Key is the metadata stored for one API key.
type Key struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity *time.Time `json:"lastActivity"`
}

// Store reads and updates the key file. The file is re-read on every lookup so
// keys added by `llamad keys new` take effect without a restart.
type Store struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewStore returns a Store for the key file at path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path is the key file location.
func (s *Store) Path() string { return s.path }

// Load returns all keys. A missing file yields an empty set.
func (s *Store) Load() (map[string]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (map[string]Key, error) {
	keys := map[string]Key{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return keys, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &keys); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return keys, nil
}

func (s *Store) saveLocked(keys map[string]Key) error {
	b, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, b, 0o600)
}

// Authenticate reports whether key is known and, if so, records the activity.
func (s *Store) Authenticate(key string) (Key, bool, error) {
	if key == "" {
		return Key{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.loadLocked()
	if err != nil {
		return Key{}, false, err
	}
	k, ok := keys[key]
	if !ok {
		return Key{}, false, nil
	}
	now := s.now().UTC()
	k.LastActivity = &now
	keys[key] = k
	if err := s.saveLocked(keys); err != nil {
		return k, true, fmt.Errorf("update last activity: %w", err)
	}
	return k, true, nil
}

// Generate creates a new random key, stores it and returns it.
func (s *Store) Generate(name, description string) (string, Key, error) {
	if name == "" {
		name = DefaultName
	}
	if description == "" {
		description = DefaultDescription
	}
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", Key{}, err
	}
	token := hex.EncodeToString(raw[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	keys, err := s.loadLocked()
	if err != nil {
		return "", Key{}, err
	}
	k := Key{Name: name, Description: description, CreatedAt: s.now().UTC()}
	keys[token] = k
	if err := s.saveLocked(keys); err != nil {
		return "", Key{}, err
	}
	return token, k, nil
}
