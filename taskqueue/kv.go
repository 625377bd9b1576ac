// Package taskqueue persists small keyed records in Pebble so that work
// started before a restart can be found again.
package taskqueue

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get for an absent key.
var ErrNotFound = errors.New("queue entry not found")

// kv is a Pebble DB whose keys all share one prefix, so several record kinds
// could share a file without colliding.
type kv struct {
	db     *pebble.DB
	prefix []byte
}

func openKV(dataFile, prefix string) (*kv, error) {
	db, err := pebble.Open(dataFile, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &kv{db: db, prefix: []byte(prefix)}, nil
}

func (s *kv) key(k string) []byte {
	return append(append([]byte(nil), s.prefix...), k...)
}

func (s *kv) put(k string, value []byte) error {
	return s.db.Set(s.key(k), value, pebble.Sync)
}

// get returns a copy; Pebble's slice is only valid until the closer runs.
func (s *kv) get(k string) ([]byte, error) {
	value, closer, err := s.db.Get(s.key(k))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

func (s *kv) delete(k string) error {
	return s.db.Delete(s.key(k), pebble.Sync)
}

// scan calls fn for every record under the prefix, in key order, with the
// prefix stripped. Slices are only valid during the call.
func (s *kv) scan(fn func(key string, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: s.prefix,
		UpperBound: prefixEnd(s.prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()[len(s.prefix):]), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *kv) close() error {
	return s.db.Close()
}

// prefixEnd returns the smallest key greater than every key starting with p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
