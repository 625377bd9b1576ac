package routes

import (
	"errors"
	"fmt"
	"net/http"

	"streamcast/jobstore"
	"streamcast/logger"
	"streamcast/models"
)

// JobStatusResponse represents the job status response
type JobStatusResponse struct {
	JobID string                `json:"job_id"`
	State models.JobState       `json:"state"`
	URLs  *models.PublishedURLs `json:"urls,omitempty"`
	Error string                `json:"error,omitempty"`
	// Active is true while this process is running or queueing the job.
	Active bool `json:"active"`
}

// JobStatusHandler returns the registry state of a job, overlaid with the
// supervisor's view for jobs it is still working on.
func (a *API) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Job status request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		http.Error(w, "Missing job parameter", http.StatusBadRequest)
		return
	}

	rec, err := a.Registry.Get(jobID)
	if errors.Is(err, jobstore.ErrNotFound) {
		http.Error(w, fmt.Sprintf("Job %s not found", jobID), http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("Failed to read job %s: %v", jobID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := JobStatusResponse{JobID: rec.ID, State: rec.State, URLs: rec.URLs, Error: rec.Error}
	if state, ok := a.Jobs.State(jobID); ok {
		resp.Active = true
		if !rec.State.Terminal() {
			resp.State = state
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
