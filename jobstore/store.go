// Package jobstore is the authoritative record of job lifecycle state,
// persisted in Pebble. It merges the success and failure records into one
// JSON document per job.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"streamcast/models"

	pebble "github.com/cockroachdb/pebble"
)

var (
	// ErrNotFound is returned by Get for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrExists is returned by Create for a job id that is already recorded.
	ErrExists = errors.New("job already exists")
	// ErrInvalidTransition is returned when a state change would move a job
	// backwards or out of a terminal state.
	ErrInvalidTransition = models.ErrInvalidTransition
)

// JobRecord is the stored state of one job.
type JobRecord struct {
	ID          string                `json:"id"`
	State       models.JobState       `json:"state"`
	Source      string                `json:"source,omitempty"`
	URLs        *models.PublishedURLs `json:"urls,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// Store wraps a Pebble DB. Read-modify-write transitions are serialized by mu.
type Store struct {
	mu  sync.Mutex
	db  *pebble.DB
	now func() time.Time
}

// Open opens (or creates) the job store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the job store
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Name() string { return "pebble" }

// Create records a new job in the uploading state. It fails if the id is
// already known.
func (s *Store) Create(jobID, source string) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.get(jobID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrExists, jobID, existing.State)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now()
	rec := &JobRecord{ID: jobID, State: models.JobStateUploading, Source: source, CreatedAt: now, UpdatedAt: now}
	if err := s.put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetProcessing moves a job to processing.
func (s *Store) SetProcessing(_ context.Context, jobID string) error {
	return s.transition(jobID, models.JobStateProcessing, nil)
}

// SetReady records the published URLs and moves a job to ready.
func (s *Store) SetReady(_ context.Context, jobID string, urls models.PublishedURLs) error {
	return s.transition(jobID, models.JobStateReady, func(r *JobRecord) {
		r.URLs = &urls
		r.Error = ""
	})
}

// SetFailed records reason and moves a job to failed.
func (s *Store) SetFailed(_ context.Context, jobID string, reason string) error {
	return s.transition(jobID, models.JobStateFailed, func(r *JobRecord) {
		r.Error = reason
	})
}

func (s *Store) transition(jobID string, to models.JobState, mutate func(*JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, err := s.get(jobID)
	if errors.Is(err, ErrNotFound) {
		rec = &JobRecord{ID: jobID, CreatedAt: now}
	} else if err != nil {
		return err
	}

	if !models.CanTransition(rec.State, to) {
		return fmt.Errorf("%w: job %s %q -> %q", ErrInvalidTransition, jobID, rec.State, to)
	}
	rec.State = to
	rec.UpdatedAt = now
	if to.Terminal() {
		rec.CompletedAt = &now
	}
	if mutate != nil {
		mutate(rec)
	}
	return s.put(rec)
}

// Get retrieves a job record by id.
func (s *Store) Get(jobID string) (*JobRecord, error) {
	return s.get(jobID)
}

func (s *Store) get(jobID string) (*JobRecord, error) {
	data, closer, err := s.db.Get([]byte(jobID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	defer closer.Close()

	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
	}
	return &rec, nil
}

func (s *Store) put(rec *JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}
	return s.db.Set([]byte(rec.ID), data, pebble.Sync)
}

// Delete removes a job record.
func (s *Store) Delete(jobID string) error {
	return s.db.Delete([]byte(jobID), pebble.Sync)
}

// List returns all job records, newest first.
func (s *Store) List() ([]JobRecord, error) {
	return s.filter(func(*JobRecord) bool { return true })
}

// ListByState returns the records currently in state.
func (s *Store) ListByState(state models.JobState) ([]JobRecord, error) {
	return s.filter(func(r *JobRecord) bool { return r.State == state })
}

func (s *Store) filter(keep func(*JobRecord) bool) ([]JobRecord, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var records []JobRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec JobRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid records
		}
		if keep(&rec) {
			records = append(records, rec)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}

// CleanupOldRecords removes terminal records completed more than maxAge ago.
// Jobs still in flight are never removed.
func (s *Store) CleanupOldRecords(maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)
	old, err := s.filter(func(r *JobRecord) bool {
		return r.State.Terminal() && r.CompletedAt != nil && r.CompletedAt.Before(cutoff)
	})
	if err != nil {
		return 0, err
	}

	for _, rec := range old {
		if err := s.db.Delete([]byte(rec.ID), pebble.Sync); err != nil {
			return 0, fmt.Errorf("failed to delete old job record: %w", err)
		}
	}
	return len(old), nil
}

// CheckHealth performs a basic health check on the job database
func (s *Store) CheckHealth() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("job database not initialized")
	}

	// Try a simple operation to verify database is accessible
	_, closer, err := s.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}
