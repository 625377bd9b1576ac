package routes

import (
	"errors"
	"net/http"

	"streamcast/job"
	"streamcast/logger"
)

// CancelJobHandler cancels a queued or running job. The job ends up failed.
func (a *API) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Cancel job request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		http.Error(w, "Missing job parameter", http.StatusBadRequest)
		return
	}

	if err := a.Jobs.Cancel(jobID); err != nil {
		if errors.Is(err, job.ErrUnknownJob) {
			http.Error(w, "Job is not running", http.StatusNotFound)
			return
		}
		logger.Errorf("Failed to cancel job %s: %v", jobID, err)
		http.Error(w, "Cannot cancel job", http.StatusConflict)
		return
	}

	logger.Infof("Job cancelled: %s", jobID)
	w.WriteHeader(http.StatusNoContent)
}
