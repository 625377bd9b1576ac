package taskqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"streamcast/logger"
)

// Entry records a job that has been accepted but not yet finished.
type Entry struct {
	JobID       string    `json:"job_id"`
	Source      string    `json:"source"`
	WorkDir     string    `json:"work_dir"`
	CallbackURL string    `json:"callback_url,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// Ledger maps job id to Entry. An entry exists from submission until the
// job reaches a terminal state.
type Ledger struct {
	q *kv
}

// OpenLedger opens the ledger database at dataFile.
func OpenLedger(dataFile string) (*Ledger, error) {
	q, err := openKV(dataFile, "ledger/")
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", dataFile, err)
	}
	return &Ledger{q: q}, nil
}

// Record inserts or replaces the entry for e.JobID.
func (l *Ledger) Record(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return l.q.put(e.JobID, data)
}

// Get returns the entry for jobID or ErrNotFound.
func (l *Ledger) Get(jobID string) (Entry, error) {
	data, err := l.q.get(jobID)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode ledger entry %s: %w", jobID, err)
	}
	return e, nil
}

// Remove drops the entry for jobID.
func (l *Ledger) Remove(jobID string) error {
	return l.q.delete(jobID)
}

// List returns every entry. Undecodable entries are logged and skipped.
func (l *Ledger) List() ([]Entry, error) {
	var entries []Entry
	err := l.q.scan(func(key string, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			logger.Warnf("Skipping corrupt ledger entry %q: %v", key, err)
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.q.close()
}
