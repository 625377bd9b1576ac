package models

import (
	"errors"
	"time"
)

// ErrInvalidTransition is returned when a state change would move a job
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid job state transition")

// JobState is the externally visible lifecycle state of a processing job.
type JobState string

const (
	JobStateUploading  JobState = "uploading"
	JobStateProcessing JobState = "processing"
	JobStateReady      JobState = "ready"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s JobState) Terminal() bool {
	return s == JobStateReady || s == JobStateFailed
}

// CanTransition reports whether a job may move from one state to another.
// Transitions only move forward; a failed job is resubmitted under a new id.
func CanTransition(from, to JobState) bool {
	switch from {
	case "", JobStateUploading:
		return to == JobStateProcessing || to == JobStateFailed
	case JobStateProcessing:
		return to == JobStateReady || to == JobStateFailed
	default:
		return false
	}
}

// MediaAsset identifies the uploaded source file. LocalPath is filled in once
// the asset has been materialized inside the job's work directory.
type MediaAsset struct {
	SourceURL string `json:"source_url"`
	LocalPath string `json:"local_path,omitempty"`
}

// ProcessingJob is owned by the pipeline for its whole lifetime.
type ProcessingJob struct {
	ID          string     `json:"id"`
	Source      MediaAsset `json:"source"`
	WorkDir     string     `json:"work_dir"`
	State       JobState   `json:"state"`
	CallbackURL string     `json:"callback_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PublishedURLs are the delivery URLs recorded when a job becomes ready.
type PublishedURLs struct {
	ManifestURLA string `json:"dash_url"`
	ManifestURLB string `json:"hls_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// PublishResult is the terminal output of a successful pipeline run.
type PublishResult struct {
	PublishedURLs
	Metadata VideoMetadata `json:"metadata"`
}
