// Package metrics holds the Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcast_jobs_started_total",
		Help: "Jobs that entered the processing state",
	})
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcast_jobs_finished_total",
		Help: "Jobs that reached a terminal state",
	}, []string{"state"})
	JobsFailedByStage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcast_jobs_failed_stage_total",
		Help: "Failed jobs by the stage that failed",
	}, []string{"stage"})
	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcast_active_jobs",
		Help: "Jobs currently running on this node",
	})
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamcast_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.5, 12),
	}, []string{"stage"})
	ArtifactsUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcast_artifacts_uploaded_total",
		Help: "Artifacts published to the object store",
	}, []string{"format"})
	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcast_uploaded_bytes_total",
		Help: "Bytes published to the object store",
	})
	UploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcast_upload_failures_total",
		Help: "Individual artifact uploads that failed",
	})
	OrphansSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcast_orphans_swept_total",
		Help: "Jobs failed by the orphan sweep after exceeding their deadline",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
