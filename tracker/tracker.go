// Package tracker propagates job lifecycle changes to the systems that care
// about them: the local job store, shared caches, the relational post table
// and per-job webhooks.
package tracker

import (
	"context"
	"errors"

	"streamcast/logger"
	"streamcast/models"
)

// Tracker receives the three lifecycle events of a job. SetFailed is called
// at most once per job.
type Tracker interface {
	SetProcessing(ctx context.Context, jobID string) error
	SetReady(ctx context.Context, jobID string, urls models.PublishedURLs) error
	SetFailed(ctx context.Context, jobID string, reason string) error
}

// Named is implemented by trackers that can identify themselves in logs.
type Named interface {
	Name() string
}

func nameOf(t Tracker) string {
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return "tracker"
}

// Multi fans events out. The primary's error is returned and secondary errors
// are logged; the primary holds the authoritative state.
type Multi struct {
	primary     Tracker
	secondaries []Tracker
}

// NewMulti builds a fan-out tracker. nil secondaries are ignored.
func NewMulti(primary Tracker, secondaries ...Tracker) *Multi {
	m := &Multi{primary: primary}
	for _, s := range secondaries {
		if s != nil {
			m.secondaries = append(m.secondaries, s)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) SetProcessing(ctx context.Context, jobID string) error {
	return m.each(jobID, "processing", func(t Tracker) error { return t.SetProcessing(ctx, jobID) })
}

func (m *Multi) SetReady(ctx context.Context, jobID string, urls models.PublishedURLs) error {
	return m.each(jobID, "ready", func(t Tracker) error { return t.SetReady(ctx, jobID, urls) })
}

func (m *Multi) SetFailed(ctx context.Context, jobID string, reason string) error {
	return m.each(jobID, "failed", func(t Tracker) error { return t.SetFailed(ctx, jobID, reason) })
}

// each calls the primary, then the secondaries. A transition the primary
// rejects as invalid is not mirrored, so secondaries never move a job the
// authoritative store holds elsewhere.
func (m *Multi) each(jobID, state string, call func(Tracker) error) error {
	err := call(m.primary)
	if errors.Is(err, models.ErrInvalidTransition) {
		logger.Warnf("Job %s: %s rejected by %s, not mirrored: %v", jobID, state, nameOf(m.primary), err)
		return err
	}
	for _, s := range m.secondaries {
		if serr := call(s); serr != nil {
			logger.Warnf("Tracker %s failed to record %s for job %s: %v", nameOf(s), state, jobID, serr)
		}
	}
	return err
}
