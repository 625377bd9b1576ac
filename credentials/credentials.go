// Package credentials keeps storage-backend access info in a Pebble database
// so that secrets never have to travel in job tokens.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"streamcast/logger"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned when no credentials are stored under a key.
var ErrNotFound = errors.New("credentials not found")

// Stored is the persisted form: the backend kind plus its access info.
type Stored struct {
	Backend    string            `json:"backend"`
	AccessInfo map[string]string `json:"access_info"`
}

type Store struct {
	db *pebble.DB
}

// Open opens the Pebble DB for credentials at the specified path
func Open(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		logger.Errorf("Failed to open credentials DB: %v", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the DB
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(key string) (Stored, error) {
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return Stored{}, ErrNotFound
	}
	if err != nil {
		return Stored{}, err
	}
	defer closer.Close()

	var creds Stored
	if err := json.Unmarshal(value, &creds); err != nil {
		return Stored{}, fmt.Errorf("decode credentials %s: %w", key, err)
	}
	return creds, nil
}

// Put stores the credentials under the given key
func (s *Store) Put(key string, creds Stored) error {
	if creds.Backend == "" {
		return fmt.Errorf("credentials need a backend kind")
	}
	encoded, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(key), encoded, pebble.Sync)
}

// Delete deletes the credentials for the given key
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}
