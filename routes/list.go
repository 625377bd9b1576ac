package routes

import (
	"net/http"

	"streamcast/jobstore"
	"streamcast/logger"
	"streamcast/models"
)

// JobListHandler lists recorded jobs, newest first. An optional state
// parameter narrows the list, e.g. state=failed.
func (a *API) JobListHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		records []jobstore.JobRecord
		err     error
	)
	switch state := models.JobState(r.URL.Query().Get("state")); state {
	case "":
		records, err = a.Registry.List()
	case models.JobStateUploading, models.JobStateProcessing, models.JobStateReady, models.JobStateFailed:
		records, err = a.Registry.ListByState(state)
	default:
		http.Error(w, "unknown state", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Errorf("Failed to list jobs: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []jobstore.JobRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  records,
		"count": len(records),
	})
}
