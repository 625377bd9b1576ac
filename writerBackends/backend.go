package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownBackend is returned by New for an unsupported backend kind.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend kinds accepted by New.
const (
	KindDirectServe = "directServe"
	KindS3          = "s3"
	KindGCS         = "gcs"
	KindSFTP        = "sftp"
)

// Backend is an object store that artifacts are published to and source
// media can be fetched from.
type Backend interface {
	Name() string
	// Put stores r under key. size is a hint and may be -1.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	// Fetch streams the object at location into w. location may be a bare
	// key or a URL in the backend's own addressing scheme.
	Fetch(ctx context.Context, location string, w io.Writer) error
}

// New builds a backend from an access-info map, as stored by the
// credentials store or read from the environment.
func New(ctx context.Context, kind string, accessInfo map[string]string) (Backend, error) {
	switch kind {
	case KindDirectServe:
		return NewDirectServe(accessInfo)
	case KindS3:
		return NewS3(accessInfo)
	case KindGCS:
		return NewGCS(ctx, accessInfo)
	case KindSFTP:
		return NewSFTP(accessInfo)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, kind)
	}
}

// Close releases backend resources when the backend holds any.
func Close(b Backend) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
