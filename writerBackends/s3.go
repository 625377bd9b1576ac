package writerbackends

import (
	"context"
	"fmt"
	"io"

	"streamcast/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 publishes to a single bucket. The uploader switches to multipart for
// large objects on its own.
type S3 struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3 builds an S3 backend. accessInfo needs bucket and region; accessKey,
// secretKey and endpoint are optional.
func NewS3(accessInfo map[string]string) (*S3, error) {
	bucket := accessInfo["bucket"]
	region := accessInfo["region"]
	if bucket == "" || region == "" {
		return nil, fmt.Errorf("s3 backend requires bucket and region")
	}

	opts := s3.Options{Region: region}
	if accessInfo["accessKey"] != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
	}
	if endpoint := accessInfo["endpoint"]; endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	client := s3.New(opts)

	return &S3{
		bucket:   bucket,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (b *S3) Name() string { return KindS3 }

func (b *S3) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, b.bucket, err)
	}
	logger.Debugf("Uploaded object '%s' (%d bytes) to bucket '%s'", key, size, b.bucket)
	return nil
}

func (b *S3) Fetch(ctx context.Context, location string, w io.Writer) error {
	bucket, key := b.bucket, location
	if loc, err := ParseLocation(location); err == nil && loc.Scheme == SchemeS3 {
		bucket, key = loc.Bucket, loc.Key
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object %s from bucket %s: %w", key, bucket, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	return nil
}
