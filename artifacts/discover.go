package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"streamcast/logger"
	"streamcast/models"
)

// Discover collects publishable artifacts for a job. It scans outputDir, each
// of its immediate subdirectories, and fallbackRoot (DASH strays only). Files
// are keyed by filename; the first location found wins, so outputDir takes
// precedence. Names listed in skip, such as the source input, are ignored.
func Discover(jobID, outputDir, fallbackRoot string, skip ...string) ([]models.OutputArtifact, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Base(s)] = true
	}

	seen := make(map[string]bool)
	var found []models.OutputArtifact

	add := func(dir string, entry os.DirEntry, strayOnly bool) {
		name := entry.Name()
		if seen[name] || skipped[name] {
			return
		}
		if strayOnly && !IsDashStray(name) {
			return
		}
		format, role := Classify(name)
		if role == models.RoleUnrelated {
			return
		}
		info, err := entry.Info()
		if err != nil {
			logger.Warnf("Skipping %s: %v", filepath.Join(dir, name), err)
			return
		}
		seen[name] = true
		found = append(found, models.OutputArtifact{
			LocalPath: filepath.Join(dir, name),
			Filename:  name,
			Format:    format,
			Role:      role,
			RemoteKey: RemoteKey(jobID, name),
			Size:      info.Size(),
		})
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("read output dir %s: %w", outputDir, err)
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, filepath.Join(outputDir, e.Name()))
			continue
		}
		if e.Type().IsRegular() {
			add(outputDir, e, false)
		}
	}

	for _, dir := range subdirs {
		subEntries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warnf("Cannot scan subdirectory %s: %v", dir, err)
			continue
		}
		for _, e := range subEntries {
			if e.Type().IsRegular() {
				add(dir, e, false)
			}
		}
	}

	if fallbackRoot != "" && filepath.Clean(fallbackRoot) != filepath.Clean(outputDir) {
		rootEntries, err := os.ReadDir(fallbackRoot)
		if err != nil {
			logger.Warnf("Cannot scan fallback root %s: %v", fallbackRoot, err)
		}
		for _, e := range rootEntries {
			if e.Type().IsRegular() {
				add(fallbackRoot, e, true)
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Filename < found[j].Filename })
	return found, nil
}

// CountByFormat tallies artifacts per format.
func CountByFormat(list []models.OutputArtifact) map[models.Format]int {
	counts := make(map[models.Format]int)
	for _, a := range list {
		counts[a.Format]++
	}
	return counts
}
