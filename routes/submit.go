package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"streamcast/job"
	"streamcast/logger"
	"streamcast/models"
	"streamcast/utils"
)

// SubmitResponse is returned for an accepted job.
type SubmitResponse struct {
	JobID string          `json:"job_id"`
	State models.JobState `json:"state"`
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return token, nil
}

// SubmitJobHandler accepts a signed job token and hands the job to the
// supervisor. The source must already be in storage.
func (a *API) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := utils.VerifyJobToken(token, utils.VerifyConfig{Secret: a.JWTSecret})
	if err != nil {
		logger.Warnf("Rejected job token from %s: %v", r.RemoteAddr, err)
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	req := job.SubmitRequest{
		JobID:           claims.Job.JobID,
		SourceURL:       claims.Job.SourceURL,
		CallbackURL:     claims.Job.CallbackURL,
		CallbackHeaders: claims.Job.CallbackHeaders,
	}
	if err := a.Jobs.Submit(req); err != nil {
		switch {
		case errors.Is(err, job.ErrInvalidJobID):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, job.ErrDuplicateJob):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, job.ErrQueueFull), errors.Is(err, job.ErrNotRunning):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			logger.Errorf("Failed to submit job %s: %v", req.JobID, err)
			http.Error(w, "Failed to submit job", http.StatusInternalServerError)
		}
		return
	}

	logger.Infof("Accepted job %s (source %s)", req.JobID, req.SourceURL)
	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: req.JobID, State: models.JobStateUploading})
}
