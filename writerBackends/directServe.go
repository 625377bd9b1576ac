package writerbackends

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"streamcast/logger"
)

// DirectServe writes objects below a local directory that the HTTP server
// serves as-is.
type DirectServe struct {
	baseDir string
}

// NewDirectServe builds a local backend rooted at accessInfo["baseDir"].
func NewDirectServe(accessInfo map[string]string) (*DirectServe, error) {
	baseDir := accessInfo["baseDir"]
	if baseDir == "" {
		return nil, fmt.Errorf("directServe backend requires baseDir")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve baseDir %s: %w", baseDir, err)
	}
	return &DirectServe{baseDir: abs}, nil
}

func (b *DirectServe) Name() string { return KindDirectServe }

// BaseDir is the directory objects are written under.
func (b *DirectServe) BaseDir() string { return b.baseDir }

// resolve maps a key to a path that cannot escape baseDir.
func (b *DirectServe) resolve(key string) (string, error) {
	full := filepath.Join(b.baseDir, filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if full != b.baseDir && !strings.HasPrefix(full, b.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes serve directory", key)
	}
	return full, nil
}

func (b *DirectServe) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	fullPath, err := b.resolve(key)
	if err != nil {
		return err
	}

	// Ensure the target directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", fullPath, err)
	}

	logger.Debugf("Saved '%s' to '%s'", key, fullPath)
	return nil
}

func (b *DirectServe) Fetch(ctx context.Context, location string, w io.Writer) error {
	fullPath, err := b.resolve(location)
	if err != nil {
		return err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", fullPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", fullPath, err)
	}
	return nil
}
