package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streamcast/config"
	"streamcast/logger"
	"streamcast/models"
	"streamcast/utils"
)

// ErrManifestMissing is returned when ffmpeg exits cleanly but the expected
// manifest or thumbnail was not written.
var ErrManifestMissing = errors.New("expected output file not produced")

const stderrTailBytes = 2048

// EncodeError describes a failed ffmpeg invocation.
type EncodeError struct {
	Format models.Format
	Err    error
	Stderr string
}

func (e *EncodeError) Error() string {
	name := string(e.Format)
	if name == "" || e.Format == models.FormatShared {
		name = "thumbnail"
	}
	if e.Stderr == "" {
		return fmt.Sprintf("%s encode failed: %v", name, e.Err)
	}
	return fmt.Sprintf("%s encode failed: %v: %s", name, e.Err, e.Stderr)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ArgsFunc builds the ffmpeg argument list for one pass.
type ArgsFunc func(input, outputDir string, meta models.VideoMetadata, ladder models.BitrateLadder) []string

// Pass describes one segmented packaging run.
type Pass struct {
	Format   models.Format
	Manifest string
	Args     ArgsFunc
}

// ManifestPath returns where the pass writes its manifest inside outputDir.
func (p Pass) ManifestPath(outputDir string) string {
	return filepath.Join(outputDir, p.Manifest)
}

// Registry maps format → pass definition
var Registry = map[models.Format]Pass{
	models.FormatDASH: {Format: models.FormatDASH, Manifest: DashManifest, Args: DashArgs},
	models.FormatHLS:  {Format: models.FormatHLS, Manifest: HLSManifest, Args: HLSArgs},
}

// Formats returns the passes in the order they run.
func Formats() []Pass {
	return []Pass{Registry[models.FormatDASH], Registry[models.FormatHLS]}
}

// Get looks up a pass by format.
func Get(format models.Format) (Pass, bool) {
	p, ok := Registry[format]
	return p, ok
}

// Encoder runs ffmpeg passes against a job's work directory.
type Encoder struct {
	ffmpeg  string
	runner  utils.CommandRunner
	timeout time.Duration
}

// New creates an encoder. A zero timeout disables the per-invocation limit.
func New(tools config.Tools, runner utils.CommandRunner, timeout time.Duration) *Encoder {
	if runner == nil {
		runner = utils.ExecRunner{}
	}
	bin := tools.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Encoder{ffmpeg: bin, runner: runner, timeout: timeout}
}

// Encode runs a registered pass and returns the manifest path.
func (e *Encoder) Encode(ctx context.Context, format models.Format, input, outputDir string, meta models.VideoMetadata, ladder models.BitrateLadder) (string, error) {
	pass, ok := Get(format)
	if !ok {
		return "", &EncodeError{Format: format, Err: fmt.Errorf("no pass registered for format %q", format)}
	}
	manifest := pass.ManifestPath(outputDir)
	args := pass.Args(input, outputDir, meta, ladder)
	if err := e.run(ctx, format, args, outputDir, manifest); err != nil {
		return "", err
	}
	return manifest, nil
}

// EncodeDASH produces dash.mpd and its CMAF segments in outputDir.
func (e *Encoder) EncodeDASH(ctx context.Context, input, outputDir string, meta models.VideoMetadata, ladder models.BitrateLadder) (string, error) {
	return e.Encode(ctx, models.FormatDASH, input, outputDir, meta, ladder)
}

// EncodeHLS produces hls.m3u8 and its CMAF segments in outputDir.
func (e *Encoder) EncodeHLS(ctx context.Context, input, outputDir string, meta models.VideoMetadata, ladder models.BitrateLadder) (string, error) {
	return e.Encode(ctx, models.FormatHLS, input, outputDir, meta, ladder)
}

// run executes ffmpeg with outputDir as the working directory and checks that
// expected exists afterwards.
func (e *Encoder) run(ctx context.Context, format models.Format, args []string, outputDir, expected string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	logger.Debugf("Running %s %s", e.ffmpeg, strings.Join(args, " "))
	start := time.Now()
	_, stderr, err := e.runner.Run(ctx, e.ffmpeg, args, outputDir)
	if err != nil {
		logger.Errorf("ffmpeg %s pass failed after %s: %v", format, time.Since(start).Round(time.Millisecond), err)
		return &EncodeError{Format: format, Err: err, Stderr: utils.Tail(stderr, stderrTailBytes)}
	}

	info, statErr := os.Stat(expected)
	if statErr != nil || info.IsDir() {
		return &EncodeError{
			Format: format,
			Err:    fmt.Errorf("%w: %s", ErrManifestMissing, filepath.Base(expected)),
			Stderr: utils.Tail(stderr, stderrTailBytes),
		}
	}
	logger.Debugf("ffmpeg %s pass finished in %s", format, time.Since(start).Round(time.Millisecond))
	return nil
}

func videoArgs(meta models.VideoMetadata, ladder models.BitrateLadder) []string {
	return []string{
		"-map", "0:v:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-maxrate", fmt.Sprintf("%dk", ladder.High),
		"-bufsize", fmt.Sprintf("%dk", ladder.High*2),
		"-vf", fmt.Sprintf("scale=%d:%d", meta.Width, meta.Height),
		"-g", "60",
		"-keyint_min", "60",
		"-sc_threshold", "0",
		"-strict", "experimental",
	}
}

// audioArgs is empty for silent sources so ffmpeg never maps a missing stream.
func audioArgs(meta models.VideoMetadata) []string {
	if !meta.HasAudio {
		return nil
	}
	return []string{
		"-map", "0:a:0",
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-ar", "48000",
	}
}
