package job

import (
	"errors"
	"os"
	"path/filepath"

	"streamcast/artifacts"
	"streamcast/logger"
)

// Cleanup removes the job's output directory and any DASH strays left in
// fallbackRoot. It keeps going after individual failures and reports them all
// in a *CleanupError. A missing directory is not an error.
func Cleanup(outputDir, fallbackRoot string) error {
	var failures []error

	if outputDir != "" {
		entries, err := os.ReadDir(outputDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			failures = append(failures, err)
		}
		for _, e := range entries {
			p := filepath.Join(outputDir, e.Name())
			if err := os.RemoveAll(p); err != nil {
				failures = append(failures, err)
			}
		}
		if err := os.Remove(outputDir); err != nil && !errors.Is(err, os.ErrNotExist) {
			failures = append(failures, err)
		}
	}

	if fallbackRoot != "" && filepath.Clean(fallbackRoot) != filepath.Clean(outputDir) {
		entries, err := os.ReadDir(fallbackRoot)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			failures = append(failures, err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || !artifacts.IsDashStray(e.Name()) {
				continue
			}
			if err := os.Remove(filepath.Join(fallbackRoot, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				failures = append(failures, err)
			}
		}
	}

	if len(failures) > 0 {
		return &CleanupError{Failures: failures}
	}
	return nil
}

// StrayRoot returns the directory a pipeline may claim stray DASH output
// from. Strays carry no job id, so with more than one worker a shared
// directory cannot be attributed and the scan is disabled.
func StrayRoot(dir string, workers int) string {
	if dir == "" {
		return ""
	}
	if workers > 1 {
		logger.Warnf("Stray directory %s ignored: %d workers cannot share it", dir, workers)
		return ""
	}
	return dir
}
