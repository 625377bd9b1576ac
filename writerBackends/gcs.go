package writerbackends

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"streamcast/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS publishes to a Google Cloud Storage bucket using a service account key.
type GCS struct {
	bucket string
	client *storage.Client
}

// NewGCS builds a GCS backend. credentialsJSON may be raw JSON or base64.
func NewGCS(ctx context.Context, accessInfo map[string]string) (*GCS, error) {
	bucket := accessInfo["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("gcs backend requires bucket")
	}

	var opts []option.ClientOption
	if raw := accessInfo["credentialsJSON"]; raw != "" {
		credentialsJSON, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			credentialsJSON = []byte(raw)
		}
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCS{bucket: bucket, client: client}, nil
}

func (b *GCS) Name() string { return KindGCS }

func (b *GCS) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	wc := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Debugf("Uploaded object '%s' (%d bytes) to bucket '%s'", key, size, b.bucket)
	return nil
}

func (b *GCS) Fetch(ctx context.Context, location string, w io.Writer) error {
	bucket, key := b.bucket, location
	if loc, err := ParseLocation(location); err == nil && loc.Scheme == SchemeGCS {
		bucket, key = loc.Bucket, loc.Key
	}

	rc, err := b.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (b *GCS) Close() error { return b.client.Close() }
