// Package artifacts finds and labels the files an encode run leaves behind.
package artifacts

import (
	"path"
	"strings"

	"streamcast/models"
)

// RemotePrefix is the object key prefix shared by every published job.
const RemotePrefix = "streaming"

// Classify labels a file by name alone. Every name maps to at most one
// format, so an artifact is never uploaded twice.
func Classify(name string) (models.Format, models.Role) {
	lower := strings.ToLower(name)
	ext := path.Ext(lower)
	base := strings.TrimSuffix(lower, ext)
	isHLS := strings.HasPrefix(lower, "hls")

	switch {
	case base == "thumbnail" && (ext == ".jpg" || ext == ".jpeg" || ext == ".png"):
		return models.FormatShared, models.RoleThumbnail
	case ext == ".m3u8":
		return models.FormatHLS, models.RoleManifest
	case ext == ".mpd":
		return models.FormatDASH, models.RoleManifest
	case ext == ".ts":
		return models.FormatHLS, models.RoleMediaSegment
	case lower == "init.mp4":
		return models.FormatHLS, models.RoleInitSegment
	case ext == ".m4s" && isHLS:
		return models.FormatHLS, models.RoleMediaSegment
	case ext == ".mp4" && isHLS && strings.Contains(base, "init"):
		return models.FormatHLS, models.RoleInitSegment
	case ext == ".m4s" || ext == ".m4a":
		return models.FormatDASH, models.RoleMediaSegment
	case ext == ".mp4" && strings.HasPrefix(base, "init"):
		return models.FormatDASH, models.RoleInitSegment
	}
	return models.FormatNone, models.RoleUnrelated
}

// IsDashStray reports whether name matches the DASH segment or init naming
// that ffmpeg may write into its working directory instead of next to the
// manifest.
func IsDashStray(name string) bool {
	lower := strings.ToLower(name)
	ext := path.Ext(lower)
	return (strings.HasPrefix(lower, "segment_") && ext == ".m4s") ||
		(strings.HasPrefix(lower, "init_") && ext == ".mp4")
}

// RemoteKey returns the object key for a job artifact.
func RemoteKey(jobID, filename string) string {
	return path.Join(RemotePrefix, jobID, filename)
}
