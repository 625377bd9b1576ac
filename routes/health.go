package routes

import (
	"net/http"
	"runtime"
	"time"

	"streamcast/logger"
)

// Build-time variables (injected by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	Uptime    string    `json:"uptime"`
	StartTime string    `json:"start_time"`
	JobStore  string    `json:"job_store"`
}

var startTime = time.Now()

// HealthHandler reports liveness plus job store reachability. An unhealthy
// store turns the response into a 503.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Health check request: method=%s, remoteAddr=%s", r.Method, r.RemoteAddr)

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		StartTime: startTime.UTC().Format(time.RFC3339),
		JobStore:  "ok",
	}
	status := http.StatusOK
	if err := a.Registry.CheckHealth(); err != nil {
		logger.Errorf("Job store health check failed: %v", err)
		response.Status = "unhealthy"
		response.JobStore = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}
