package encoder

import (
	"context"
	"path/filepath"
	"strconv"

	"streamcast/models"
)

const (
	// ThumbnailName is the poster image filename.
	ThumbnailName = "thumbnail.jpg"
	thumbnailSize = "640x360"
)

// ThumbnailArgs grabs a single frame at 10% of the duration.
func ThumbnailArgs(input, output string, durationSeconds float64) []string {
	at := durationSeconds * 0.10
	if at < 0 {
		at = 0
	}
	return []string{
		"-hide_banner",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-s", thumbnailSize,
		"-y", output,
	}
}

// Thumbnail writes thumbnail.jpg into outputDir and returns its path.
func (e *Encoder) Thumbnail(ctx context.Context, input, outputDir string, meta models.VideoMetadata) (string, error) {
	out := filepath.Join(outputDir, ThumbnailName)
	if err := e.run(ctx, models.FormatShared, ThumbnailArgs(input, out, meta.DurationSeconds), outputDir, out); err != nil {
		return "", err
	}
	return out, nil
}
