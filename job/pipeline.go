package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streamcast/artifacts"
	"streamcast/encoder"
	"streamcast/logger"
	"streamcast/metrics"
	"streamcast/models"
	"streamcast/tracker"
	writerbackends "streamcast/writerBackends"
)

const trackerTimeout = 10 * time.Second

// Prober extracts stream metadata from a local file.
type Prober interface {
	Probe(ctx context.Context, localPath string) (models.VideoMetadata, error)
}

// Encoder runs the packaging passes and the thumbnail grab.
type Encoder interface {
	Encode(ctx context.Context, format models.Format, input, outputDir string, meta models.VideoMetadata, ladder models.BitrateLadder) (string, error)
	Thumbnail(ctx context.Context, input, outputDir string, meta models.VideoMetadata) (string, error)
}

// Publisher uploads a job's artifacts.
type Publisher interface {
	PublishAll(ctx context.Context, list []models.OutputArtifact) error
}

// Deps wires a Pipeline.
type Deps struct {
	Prober    Prober
	Encoder   Encoder
	Publisher Publisher
	Tracker   tracker.Tracker
	// Source fetches object-store sources; nil limits sources to local
	// paths and plain http(s).
	Source         writerbackends.Backend
	DeliveryDomain string
	// FallbackRoot is scanned for stray DASH output and swept on cleanup.
	FallbackRoot string
}

// Pipeline turns one uploaded source into published DASH and HLS packages.
type Pipeline struct {
	deps Deps
}

func NewPipeline(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// RunPipeline processes one job end to end. workDir is owned by this job and
// is removed before returning, whatever the outcome. Every failure is
// reported to the tracker exactly once and returned as a *StageError.
func (p *Pipeline) RunPipeline(ctx context.Context, jobID, sourceLocation, workDir string) (models.PublishResult, error) {
	log := logger.ForJob(jobID)
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(workDir) == "" {
		return models.PublishResult{}, &StageError{Stage: StageSetup, Err: errors.New("job id and work dir are required")}
	}

	start := time.Now()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	result, err := p.run(ctx, log, jobID, sourceLocation, workDir)
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			se = &StageError{Stage: StageSetup, Err: err}
			err = se
		}
		log.Errorf("Job failed at %s after %s: %v", se.Stage, time.Since(start).Round(time.Millisecond), se.Err)
		p.markFailed(ctx, log, jobID, se)
	} else {
		log.Infof("Job ready in %s", time.Since(start).Round(time.Millisecond))
		metrics.JobsFinished.WithLabelValues(string(models.JobStateReady)).Inc()
	}

	if cerr := Cleanup(workDir, p.deps.FallbackRoot); cerr != nil {
		log.Warnf("%v", &StageError{Stage: StageCleanup, Err: cerr})
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, log *logger.JobLogger, jobID, source, workDir string) (models.PublishResult, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return models.PublishResult{}, &StageError{Stage: StageSetup, Err: err}
	}

	if err := p.deps.Tracker.SetProcessing(ctx, jobID); err != nil {
		return models.PublishResult{}, &StageError{Stage: StageTrack, Err: err}
	}
	metrics.JobsStarted.Inc()
	log.Infof("Processing %s", source)

	input := filepath.Join(workDir, inputName(source))
	if err := p.stage(ctx, log, StageDownload, func(ctx context.Context) error {
		if sameFile(source, input) {
			return nil
		}
		n, err := writerbackends.Download(ctx, p.deps.Source, source, input)
		if err == nil {
			log.Infof("Fetched source (%d bytes)", n)
		}
		return err
	}); err != nil {
		return models.PublishResult{}, err
	}

	var meta models.VideoMetadata
	if err := p.stage(ctx, log, StageProbe, func(ctx context.Context) error {
		var err error
		meta, err = p.deps.Prober.Probe(ctx, input)
		return err
	}); err != nil {
		return models.PublishResult{}, err
	}
	ladder := encoder.Ladder(meta.Width, meta.Height)
	log.Infof("Source %dx%d @ %s fps, %.1fs, audio=%v, ladder %d/%d/%d kbps",
		meta.Width, meta.Height, meta.FrameRate, meta.DurationSeconds, meta.HasAudio, ladder.Low, ladder.Medium, ladder.High)

	// The passes run one after the other; all are CPU bound.
	if err := p.stage(ctx, log, StageEncode, func(ctx context.Context) error {
		for _, pass := range encoder.Formats() {
			if _, err := p.deps.Encoder.Encode(ctx, pass.Format, input, workDir, meta, ladder); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return models.PublishResult{}, err
	}

	if err := p.stage(ctx, log, StageThumbnail, func(ctx context.Context) error {
		_, err := p.deps.Encoder.Thumbnail(ctx, input, workDir, meta)
		return err
	}); err != nil {
		return models.PublishResult{}, err
	}

	var list []models.OutputArtifact
	if err := p.stage(ctx, log, StageDiscover, func(context.Context) error {
		var err error
		list, err = artifacts.Discover(jobID, workDir, p.deps.FallbackRoot, filepath.Base(input), InstructionsFile)
		if err != nil {
			return err
		}
		return requireOutputs(list)
	}); err != nil {
		return models.PublishResult{}, err
	}
	counts := artifacts.CountByFormat(list)
	log.Infof("Discovered %d artifacts (dash=%d hls=%d shared=%d)", len(list), counts[models.FormatDASH], counts[models.FormatHLS], counts[models.FormatShared])

	if err := p.stage(ctx, log, StageUpload, func(ctx context.Context) error {
		return p.deps.Publisher.PublishAll(ctx, list)
	}); err != nil {
		return models.PublishResult{}, err
	}

	result := models.PublishResult{
		PublishedURLs: PublishedURLs(p.deps.DeliveryDomain, jobID),
		Metadata:      meta,
	}

	tctx, cancel := trackerContext(ctx)
	defer cancel()
	if err := p.deps.Tracker.SetReady(tctx, jobID, result.PublishedURLs); err != nil {
		return models.PublishResult{}, &StageError{Stage: StageTrack, Err: err}
	}
	return result, nil
}

// stage runs fn, records its duration and wraps any error.
func (p *Pipeline) stage(ctx context.Context, log *logger.JobLogger, stage Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	log.Debugf("Stage %s started", stage)
	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	log.Debugf("Stage %s finished in %s", stage, time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, log *logger.JobLogger, jobID string, se *StageError) {
	metrics.JobsFinished.WithLabelValues(string(models.JobStateFailed)).Inc()
	metrics.JobsFailedByStage.WithLabelValues(string(se.Stage)).Inc()

	tctx, cancel := trackerContext(ctx)
	defer cancel()
	if err := p.deps.Tracker.SetFailed(tctx, jobID, se.Error()); err != nil {
		log.Errorf("Failed to record failure: %v", err)
	}
}

// trackerContext outlives a cancelled job context so terminal state is
// still recorded after a timeout.
func trackerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), trackerTimeout)
}

// PublishedURLs builds the delivery URLs for a job.
func PublishedURLs(domain, jobID string) models.PublishedURLs {
	return models.PublishedURLs{
		ManifestURLA: writerbackends.PublicURL(domain, artifacts.RemoteKey(jobID, encoder.DashManifest)),
		ManifestURLB: writerbackends.PublicURL(domain, artifacts.RemoteKey(jobID, encoder.HLSManifest)),
		ThumbnailURL: writerbackends.PublicURL(domain, artifacts.RemoteKey(jobID, encoder.ThumbnailName)),
	}
}

// requireOutputs checks that both manifests and the thumbnail were found.
func requireOutputs(list []models.OutputArtifact) error {
	have := make(map[string]bool, len(list))
	for _, a := range list {
		have[a.Filename] = true
	}
	var missing []string
	for _, name := range []string{encoder.DashManifest, encoder.HLSManifest, encoder.ThumbnailName} {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing outputs: %s", strings.Join(missing, ", "))
	}
	return nil
}

// inputName keeps the source extension so ffmpeg can sniff the container.
func inputName(source string) string {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(source, "?", 2)[0]))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, "/\\") {
		ext = ".mp4"
	}
	return "input" + ext
}

func sameFile(source, dest string) bool {
	if strings.Contains(source, "://") {
		return false
	}
	a, err1 := filepath.Abs(source)
	b, err2 := filepath.Abs(dest)
	return err1 == nil && err2 == nil && a == b
}
