package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"streamcast/jobstore"
	"streamcast/logger"
	"streamcast/metrics"
	"streamcast/models"
	"streamcast/taskqueue"
	"streamcast/tracker"
)

var (
	ErrDuplicateJob = errors.New("job already submitted")
	ErrInvalidJobID = errors.New("invalid job id")
	ErrQueueFull    = errors.New("job queue is full")
	ErrNotRunning   = errors.New("supervisor is not running")
	ErrUnknownJob   = errors.New("job not known to this supervisor")
)

// Job ids become directory names and object key segments.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
)

// Runner executes a single job.
type Runner interface {
	RunPipeline(ctx context.Context, jobID, sourceLocation, workDir string) (models.PublishResult, error)
}

// Registry is the authoritative job record store.
type Registry interface {
	Create(jobID, source string) (*jobstore.JobRecord, error)
	Get(jobID string) (*jobstore.JobRecord, error)
	ListByState(state models.JobState) ([]jobstore.JobRecord, error)
}

// CallbackRegistrar receives per-job callback targets.
type CallbackRegistrar interface {
	Register(jobID, url string, headers map[string]string)
}

type SupervisorConfig struct {
	Runner    Runner
	Ledger    *taskqueue.Ledger
	Registry  Registry
	Tracker   tracker.Tracker
	Callbacks CallbackRegistrar
	WorkRoot  string
	// FallbackRoot is swept along with an orphan's work directory.
	FallbackRoot   string
	Workers        int
	QueueSize      int
	JobTimeout     time.Duration
	OrphanDeadline time.Duration
}

// SubmitRequest is a validated job submission.
type SubmitRequest struct {
	JobID           string
	SourceURL       string
	CallbackURL     string
	CallbackHeaders map[string]string
}

// Supervisor owns background job execution: a bounded worker pool, the
// on-disk ledger of accepted jobs and the orphan sweep.
type Supervisor struct {
	cfg SupervisorConfig

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan string
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	jobs    map[string]*tracked
}

type tracked struct {
	job    models.ProcessingJob
	cancel context.CancelFunc
}

func newTracked(jobID, source, workDir, callbackURL string, created time.Time) *tracked {
	return &tracked{job: models.ProcessingJob{
		ID:          jobID,
		Source:      models.MediaAsset{SourceURL: source},
		WorkDir:     workDir,
		State:       models.JobStateUploading,
		CallbackURL: callbackURL,
		CreatedAt:   created,
	}}
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan string, cfg.QueueSize),
		jobs:   make(map[string]*tracked),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	logger.Infof("Supervisor started with %d workers", s.cfg.Workers)
}

// Shutdown cancels running jobs and waits for workers to exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit accepts a job for background processing. The job is recorded in
// the ledger and registry before it is queued.
func (s *Supervisor) Submit(req SubmitRequest) error {
	if !jobIDPattern.MatchString(req.JobID) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, req.JobID)
	}
	if req.SourceURL == "" {
		return fmt.Errorf("job %s: source is required", req.JobID)
	}
	if s.ctx.Err() != nil {
		return ErrNotRunning
	}

	s.mu.Lock()
	if _, exists := s.jobs[req.JobID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateJob, req.JobID)
	}
	s.jobs[req.JobID] = newTracked(req.JobID, req.SourceURL, filepath.Join(s.cfg.WorkRoot, req.JobID), req.CallbackURL, time.Now().UTC())
	s.mu.Unlock()

	if err := s.accept(req); err != nil {
		s.forget(req.JobID)
		return err
	}

	select {
	case s.queue <- req.JobID:
		logger.Infof("Job %s queued", req.JobID)
		return nil
	default:
		s.rollback(req.JobID)
		return ErrQueueFull
	}
}

func (s *Supervisor) accept(req SubmitRequest) error {
	if _, err := s.cfg.Registry.Create(req.JobID, req.SourceURL); err != nil {
		if errors.Is(err, jobstore.ErrExists) {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, req.JobID)
		}
		return err
	}

	workDir := filepath.Join(s.cfg.WorkRoot, req.JobID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	now := time.Now().UTC()
	if err := WriteInstructions(workDir, JobInstructions{
		JobID:           req.JobID,
		Source:          req.SourceURL,
		WorkDir:         workDir,
		CallbackURL:     req.CallbackURL,
		CallbackHeaders: req.CallbackHeaders,
		SubmittedAt:     now,
	}); err != nil {
		os.RemoveAll(workDir)
		return err
	}
	if err := s.cfg.Ledger.Record(taskqueue.Entry{
		JobID:       req.JobID,
		Source:      req.SourceURL,
		WorkDir:     workDir,
		CallbackURL: req.CallbackURL,
		StartedAt:   now,
	}); err != nil {
		os.RemoveAll(workDir)
		return fmt.Errorf("record job in ledger: %w", err)
	}
	if s.cfg.Callbacks != nil {
		s.cfg.Callbacks.Register(req.JobID, req.CallbackURL, req.CallbackHeaders)
	}
	return nil
}

// rollback undoes a submission that could not be queued. The registry keeps
// the record, moved to failed, so the id cannot be silently reused.
func (s *Supervisor) rollback(jobID string) {
	if e, err := s.cfg.Ledger.Get(jobID); err == nil {
		os.RemoveAll(e.WorkDir)
	}
	s.cfg.Ledger.Remove(jobID)
	ctx, cancel := trackerContext(s.ctx)
	defer cancel()
	if err := s.cfg.Tracker.SetFailed(ctx, jobID, ErrQueueFull.Error()); err != nil {
		logger.Warnf("Failed to record rejection of job %s: %v", jobID, err)
	}
	s.forget(jobID)
}

func (s *Supervisor) forget(jobID string) {
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
}

// State returns the state of a job that is queued or running in this
// process. Finished jobs are only in the registry.
func (s *Supervisor) State(jobID string) (models.JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.jobs[jobID]
	if !ok {
		return "", false
	}
	return t.job.State, true
}

// Job returns a copy of a job queued or running in this process.
func (s *Supervisor) Job(jobID string) (models.ProcessingJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.jobs[jobID]
	if !ok {
		return models.ProcessingJob{}, false
	}
	return t.job, true
}

// Cancel aborts a queued or running job. The pipeline records the failure.
func (s *Supervisor) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.jobs[jobID]
	if !ok || t.job.State.Terminal() {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	if t.cancel == nil {
		// Still queued; the worker sees the cancelled flag when it picks it up.
		t.job.State = models.JobStateFailed
		return nil
	}
	t.cancel()
	return nil
}

func (s *Supervisor) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case id := <-s.queue:
			s.process(id)
		}
	}
}

// begin marks a queued job running. It returns false if the job was
// cancelled while it waited.
func (s *Supervisor) begin(jobID string) (context.Context, context.CancelFunc, bool) {
	var ctx context.Context
	var cancel context.CancelFunc
	if s.cfg.JobTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.jobs[jobID]
	if !ok || t.job.State != models.JobStateUploading {
		cancel()
		return nil, nil, false
	}
	t.job.State = models.JobStateProcessing
	t.cancel = cancel
	return ctx, cancel, true
}

// finish drops a job from the in-memory map; its final state lives in the
// registry.
func (s *Supervisor) finish(jobID string) {
	s.forget(jobID)
}

func (s *Supervisor) process(jobID string) {
	entry, err := s.cfg.Ledger.Get(jobID)
	if err != nil {
		logger.Errorf("Job %s missing from ledger: %v", jobID, err)
		s.forget(jobID)
		return
	}

	ctx, cancel, ok := s.begin(jobID)
	if !ok {
		logger.Infof("Job %s cancelled before it started", jobID)
		s.abandon(entry, "cancelled before processing started")
		return
	}
	defer cancel()

	if _, err := s.cfg.Runner.RunPipeline(ctx, entry.JobID, entry.Source, entry.WorkDir); err != nil {
		logger.Debugf("Job %s finished with error: %v", jobID, err)
	}
	s.finish(jobID)

	if err := s.cfg.Ledger.Remove(jobID); err != nil {
		logger.Warnf("Failed to remove job %s from ledger: %v", jobID, err)
	}
}

// abandon fails a job that never reached the pipeline and removes its traces.
func (s *Supervisor) abandon(entry taskqueue.Entry, reason string) {
	ctx, cancel := trackerContext(s.ctx)
	defer cancel()
	if err := s.cfg.Tracker.SetFailed(ctx, entry.JobID, reason); err != nil {
		logger.Warnf("Failed to record failure of job %s: %v", entry.JobID, err)
	}
	if err := Cleanup(entry.WorkDir, s.cfg.FallbackRoot); err != nil {
		logger.Warnf("Job %s: %v", entry.JobID, err)
	}
	if err := s.cfg.Ledger.Remove(entry.JobID); err != nil {
		logger.Warnf("Failed to remove job %s from ledger: %v", entry.JobID, err)
	}
	s.finish(entry.JobID)
}

// Resume re-queues ledger entries left by a previous process that never
// started processing. Entries that were mid-run cannot be resumed, since
// their partial output is gone with the old process, and are failed.
// Entries past the orphan deadline are left to SweepOrphans. It returns how
// many jobs were re-queued.
func (s *Supervisor) Resume(ctx context.Context) (int, error) {
	entries, err := s.cfg.Ledger.List()
	if err != nil {
		return 0, fmt.Errorf("list ledger: %w", err)
	}
	waiting, err := s.cfg.Registry.ListByState(models.JobStateUploading)
	if err != nil {
		return 0, fmt.Errorf("list %s jobs: %w", models.JobStateUploading, err)
	}
	notStarted := make(map[string]bool, len(waiting))
	for _, r := range waiting {
		notStarted[r.ID] = true
	}

	cutoff := time.Now().Add(-s.cfg.OrphanDeadline)
	resumed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return resumed, ctx.Err()
		}
		if s.isActive(e.JobID) {
			continue
		}
		if s.settled(e.JobID) {
			s.drop(e)
			continue
		}
		if e.StartedAt.Before(cutoff) {
			continue
		}
		if !notStarted[e.JobID] {
			logger.Warnf("Job %s was interrupted mid-run, marking failed", e.JobID)
			s.abandon(e, "interrupted by restart")
			continue
		}

		instr, err := ReadInstructions(e.WorkDir)
		if err != nil {
			logger.Warnf("Job %s cannot be resumed: %v", e.JobID, err)
			s.abandon(e, "work directory lost before processing started")
			continue
		}
		if s.cfg.Callbacks != nil {
			s.cfg.Callbacks.Register(e.JobID, instr.CallbackURL, instr.CallbackHeaders)
		}

		s.mu.Lock()
		s.jobs[e.JobID] = newTracked(e.JobID, e.Source, e.WorkDir, e.CallbackURL, e.StartedAt)
		s.mu.Unlock()
		select {
		case s.queue <- e.JobID:
			resumed++
			logger.Infof("Job %s resumed from ledger", e.JobID)
		default:
			// Queue is full; the entry stays in the ledger for a later sweep.
			s.forget(e.JobID)
		}
	}
	return resumed, nil
}

// settled reports whether the registry already holds a terminal state for
// jobID. Such ledger entries are left over from a process that stopped
// between recording the outcome and removing the entry.
func (s *Supervisor) settled(jobID string) bool {
	rec, err := s.cfg.Registry.Get(jobID)
	return err == nil && rec.State.Terminal()
}

// drop removes a settled job's leftovers without touching any tracker.
func (s *Supervisor) drop(entry taskqueue.Entry) {
	logger.Infof("Job %s already finished, dropping stale ledger entry", entry.JobID)
	if err := Cleanup(entry.WorkDir, s.cfg.FallbackRoot); err != nil {
		logger.Warnf("Job %s: %v", entry.JobID, err)
	}
	if err := s.cfg.Ledger.Remove(entry.JobID); err != nil {
		logger.Warnf("Failed to remove job %s from ledger: %v", entry.JobID, err)
	}
}

func (s *Supervisor) isActive(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.jobs[jobID]
	return ok && !t.job.State.Terminal()
}

// SweepOrphans fails jobs that this process is not running and that have
// been accepted or processing for longer than the orphan deadline. It covers
// both ledger entries and registry records, and returns how many jobs it
// failed.
func (s *Supervisor) SweepOrphans(ctx context.Context) (int, error) {
	deadline := s.cfg.OrphanDeadline
	cutoff := time.Now().Add(-deadline)
	swept := 0
	handled := make(map[string]bool)

	entries, err := s.cfg.Ledger.List()
	if err != nil {
		return 0, fmt.Errorf("list ledger: %w", err)
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}
		if s.isActive(e.JobID) {
			continue
		}
		if s.settled(e.JobID) {
			s.drop(e)
			handled[e.JobID] = true
			continue
		}
		if e.StartedAt.After(cutoff) {
			continue
		}
		logger.Warnf("Job %s orphaned (started %s), marking failed", e.JobID, e.StartedAt.Format(time.RFC3339))
		s.abandon(e, fmt.Sprintf("orphaned: no progress within %s", deadline))
		handled[e.JobID] = true
		swept++
		metrics.OrphansSwept.Inc()
	}

	for _, state := range []models.JobState{models.JobStateUploading, models.JobStateProcessing} {
		records, err := s.cfg.Registry.ListByState(state)
		if err != nil {
			return swept, fmt.Errorf("list %s jobs: %w", state, err)
		}
		for _, r := range records {
			if handled[r.ID] || s.isActive(r.ID) || r.UpdatedAt.After(cutoff) {
				continue
			}
			tctx, cancel := trackerContext(ctx)
			err := s.cfg.Tracker.SetFailed(tctx, r.ID, fmt.Sprintf("orphaned: stuck in %s beyond %s", r.State, deadline))
			cancel()
			if err != nil {
				logger.Warnf("Failed to fail orphaned job %s: %v", r.ID, err)
				continue
			}
			swept++
			metrics.OrphansSwept.Inc()
		}
	}

	if swept > 0 {
		logger.Infof("Orphan sweep failed %d jobs", swept)
	}
	return swept, nil
}
