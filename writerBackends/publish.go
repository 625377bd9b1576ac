package writerbackends

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"streamcast/logger"
	"streamcast/metrics"
	"streamcast/models"

	"golang.org/x/sync/errgroup"
)

// UploadError identifies the artifact whose upload failed.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Publisher fans artifact uploads out to a backend.
type Publisher struct {
	backend     Backend
	concurrency int
	timeout     time.Duration
}

// NewPublisher limits in-flight uploads to concurrency (unbounded when <= 0)
// and each upload to timeout (none when 0).
func NewPublisher(backend Backend, concurrency int, timeout time.Duration) *Publisher {
	return &Publisher{backend: backend, concurrency: concurrency, timeout: timeout}
}

// Backend returns the store uploads go to.
func (p *Publisher) Backend() Backend { return p.backend }

// PublishAll uploads every artifact and waits for all of them, even after a
// failure. The first failure is returned.
func (p *Publisher) PublishAll(ctx context.Context, list []models.OutputArtifact) error {
	var g errgroup.Group
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	for _, a := range list {
		g.Go(func() error {
			if err := p.publishOne(ctx, a); err != nil {
				metrics.UploadFailures.Inc()
				logger.Errorf("Upload of %s failed: %v", a.RemoteKey, err)
				return &UploadError{Key: a.RemoteKey, Err: err}
			}
			metrics.ArtifactsUploaded.WithLabelValues(string(a.Format)).Inc()
			metrics.UploadedBytes.Add(float64(a.Size))
			return nil
		})
	}
	return g.Wait()
}

func (p *Publisher) publishOne(ctx context.Context, a models.OutputArtifact) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	f, err := os.Open(a.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	size := a.Size
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return p.backend.Put(ctx, a.RemoteKey, ContentType(a.Filename), f, size)
}

// PublicURL joins the delivery domain and an object key.
func PublicURL(domain, key string) string {
	domain = strings.TrimSuffix(domain, "/")
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain + "/" + strings.TrimPrefix(key, "/")
}
