// Package routes is the job-controller HTTP surface: job submission,
// status, cancellation, credentials registration and health.
package routes

import (
	"encoding/json"
	"net/http"

	"streamcast/credentials"
	"streamcast/job"
	"streamcast/jobstore"
	"streamcast/logger"
	"streamcast/metrics"
	"streamcast/models"
)

// Submitter is the part of the supervisor the handlers drive.
type Submitter interface {
	Submit(req job.SubmitRequest) error
	State(jobID string) (models.JobState, bool)
	Cancel(jobID string) error
}

// JobReader reads the job registry.
type JobReader interface {
	Get(jobID string) (*jobstore.JobRecord, error)
	List() ([]jobstore.JobRecord, error)
	ListByState(state models.JobState) ([]jobstore.JobRecord, error)
	CheckHealth() error
}

// CredentialWriter stores storage-backend credentials.
type CredentialWriter interface {
	Put(key string, creds credentials.Stored) error
}

// API holds the handler dependencies.
type API struct {
	Jobs        Submitter
	Registry    JobReader
	Credentials CredentialWriter
	// JWTSecret verifies job tokens. Submissions are refused when empty.
	JWTSecret []byte
	// AdminToken guards credentials registration. Empty disables the route.
	AdminToken string
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/jobs", a.SubmitJobHandler)
	mux.HandleFunc("/jobs/list", a.JobListHandler)
	mux.HandleFunc("/status", a.JobStatusHandler)
	mux.HandleFunc("/cancel", a.CancelJobHandler)
	mux.HandleFunc("/credentials", a.RegisterCredentialsHandler)
	mux.HandleFunc("/health", a.HealthHandler)
	mux.HandleFunc("/version", VersionHandler)
	mux.Handle("/metrics", metrics.Handler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
