package encoder

import (
	"path/filepath"

	"streamcast/models"
)

// DashManifest is the manifest filename for format A.
const DashManifest = "dash.mpd"

// DashArgs builds a low-latency DASH pass with fMP4 (CMAF) segments of two
// seconds. Segments are written next to the manifest.
func DashArgs(input, outputDir string, meta models.VideoMetadata, ladder models.BitrateLadder) []string {
	args := []string{
		"-hide_banner", "-y",
		"-i", input,
		"-f", "dash",
		"-seg_duration", "2",
		"-frag_duration", "2",
		"-ldash", "1",
		"-streaming", "1",
		"-use_template", "1",
		"-use_timeline", "0",
		"-single_file", "0",
		"-dash_segment_type", "mp4",
		"-init_seg_name", "init_$RepresentationID$.mp4",
		"-media_seg_name", "segment_$RepresentationID$_$Number$.m4s",
	}
	args = append(args, videoArgs(meta, ladder)...)
	args = append(args, audioArgs(meta)...)
	return append(args, filepath.Join(outputDir, DashManifest))
}
