package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"streamcast/logger"
)

// ErrEmptySource is returned when a fetched source has no content.
var ErrEmptySource = errors.New("source is empty")

// DownloadError reports a source that could not be materialized locally.
type DownloadError struct {
	Location string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Location, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// HTTPClient is used for plain http(s) sources.
var HTTPClient = &http.Client{}

// Download copies the source at location to destPath. Object-store
// locations are read through backend when it owns the scheme; anything else
// over http(s) is fetched with a GET.
func Download(ctx context.Context, backend Backend, location, destPath string) (int64, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return 0, &DownloadError{Location: location, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, &DownloadError{Location: location, Err: err}
	}
	f, err := os.Create(destPath)
	if err != nil {
		return 0, &DownloadError{Location: location, Err: err}
	}

	counter := &countingWriter{w: f}
	err = fetchInto(ctx, backend, loc, counter)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && counter.n == 0 {
		err = ErrEmptySource
	}
	if err != nil {
		os.Remove(destPath)
		return 0, &DownloadError{Location: location, Err: err}
	}

	logger.Debugf("Fetched %s (%d bytes) to %s", location, counter.n, destPath)
	return counter.n, nil
}

func fetchInto(ctx context.Context, backend Backend, loc Location, w io.Writer) error {
	switch loc.Scheme {
	case SchemeFile:
		src, err := os.Open(loc.Key)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err

	case SchemeS3, SchemeGCS, SchemeSFTP:
		if backend != nil && ownsScheme(backend, loc.Scheme) {
			return backend.Fetch(ctx, loc.URL, w)
		}
		if loc.Scheme == SchemeS3 && loc.URL != "" && isHTTPURL(loc.URL) {
			return httpGet(ctx, loc.URL, w)
		}
		return fmt.Errorf("no %s backend configured for source", loc.Scheme)

	case SchemeHTTP:
		return httpGet(ctx, loc.URL, w)
	}
	return fmt.Errorf("unsupported location scheme %q", loc.Scheme)
}

func ownsScheme(b Backend, scheme string) bool {
	switch scheme {
	case SchemeS3:
		return b.Name() == KindS3
	case SchemeGCS:
		return b.Name() == KindGCS
	case SchemeSFTP:
		return b.Name() == KindSFTP
	}
	return false
}

func isHTTPURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}

func httpGet(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
