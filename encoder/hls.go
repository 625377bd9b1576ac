package encoder

import (
	"path/filepath"

	"streamcast/models"
)

const (
	// HLSManifest is the playlist filename for format B.
	HLSManifest = "hls.m3u8"
	// HLSInitSegment is the single fMP4 init segment of the HLS pass.
	HLSInitSegment = "init.mp4"
)

// HLSArgs builds an HLS pass with fMP4 (CMAF) segments. Segment numbering
// starts at the wall-clock datetime so names never collide with DASH output.
func HLSArgs(input, outputDir string, meta models.VideoMetadata, ladder models.BitrateLadder) []string {
	args := []string{
		"-hide_banner", "-y",
		"-i", input,
		"-f", "hls",
		"-hls_time", "2",
		"-hls_list_size", "0",
		"-hls_flags", "independent_segments",
		"-hls_segment_type", "fmp4",
		"-hls_allow_cache", "0",
		"-hls_fmp4_init_filename", HLSInitSegment,
		"-hls_segment_filename", filepath.Join(outputDir, "hls%d.m4s"),
		"-hls_start_number_source", "datetime",
	}
	args = append(args, videoArgs(meta, ladder)...)
	args = append(args, audioArgs(meta)...)
	return append(args, filepath.Join(outputDir, HLSManifest))
}
