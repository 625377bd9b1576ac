package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"streamcast/config"
	"streamcast/logger"
	"streamcast/models"
	"streamcast/utils"

	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

// ErrNoVideoStream is returned when the container has no decodable video
// stream. Such uploads are rejected instead of being published with guessed
// dimensions.
var ErrNoVideoStream = errors.New("no video stream found")

// ErrRemotePath is returned when Probe is handed a URL instead of a local file.
var ErrRemotePath = errors.New("probe requires a local file path")

var defaultFrameRate = models.Fraction{Num: 30, Den: 1}

// ProbeError is returned when both the library probe and the subprocess
// fallback fail.
type ProbeError struct {
	Path     string
	Primary  error
	Fallback error
}

func (e *ProbeError) Error() string {
	if e.Fallback == nil {
		return fmt.Sprintf("probe %s: %v", e.Path, e.Primary)
	}
	return fmt.Sprintf("probe %s: primary: %v; fallback: %v", e.Path, e.Primary, e.Fallback)
}

func (e *ProbeError) Unwrap() []error {
	var errs []error
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

// ProbeFunc extracts metadata from a local file.
type ProbeFunc func(ctx context.Context, path string) (models.VideoMetadata, error)

// Prober extracts VideoMetadata, first through the go-ffprobe integration and
// then, on any error, by running ffprobe directly and parsing its JSON.
type Prober struct {
	ffprobePath string
	runner      utils.CommandRunner
	primary     ProbeFunc
}

// Option customises a Prober.
type Option func(*Prober)

// WithPrimary replaces the library probe path.
func WithPrimary(fn ProbeFunc) Option {
	return func(p *Prober) { p.primary = fn }
}

// NewProber builds a prober bound to the resolved ffprobe binary.
func NewProber(tools config.Tools, runner utils.CommandRunner, opts ...Option) *Prober {
	if runner == nil {
		runner = utils.ExecRunner{}
	}
	p := &Prober{ffprobePath: tools.FFprobe, runner: runner}
	p.primary = p.probeLibrary
	if tools.FFprobe != "" {
		ffprobe.SetFFProbeBinPath(tools.FFprobe)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe returns metadata for the file at localPath.
func (p *Prober) Probe(ctx context.Context, localPath string) (models.VideoMetadata, error) {
	if strings.Contains(localPath, "://") {
		return models.VideoMetadata{}, &ProbeError{Path: localPath, Primary: ErrRemotePath}
	}

	meta, primaryErr := p.primary(ctx, localPath)
	if primaryErr == nil {
		return meta, nil
	}
	logger.Warnf("Primary probe failed for %s, falling back to %s: %v", localPath, p.ffprobePath, primaryErr)

	meta, fallbackErr := p.probeSubprocess(ctx, localPath)
	if fallbackErr != nil {
		return models.VideoMetadata{}, &ProbeError{Path: localPath, Primary: primaryErr, Fallback: fallbackErr}
	}
	logger.Debugf("Fallback probe succeeded for %s", localPath)
	return meta, nil
}

func (p *Prober) probeLibrary(ctx context.Context, path string) (models.VideoMetadata, error) {
	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return models.VideoMetadata{}, fmt.Errorf("go-ffprobe: %w", err)
	}
	return buildMetadata(fromProbeData(data))
}

// fromProbeData maps the library result onto the wire types the subprocess
// path decodes, so buildMetadata sees the same fields either way.
func fromProbeData(data *ffprobe.ProbeData) *ffprobeOutput {
	raw := &ffprobeOutput{}
	if data == nil {
		return raw
	}
	if data.Format != nil {
		raw.Format.Duration = strconv.FormatFloat(data.Format.DurationSeconds, 'f', -1, 64)
		raw.Format.BitRate = data.Format.BitRate
	}
	for _, s := range data.Streams {
		if s == nil {
			continue
		}
		raw.Streams = append(raw.Streams, ffprobeStream{
			CodecType:    s.CodecType,
			Width:        s.Width,
			Height:       s.Height,
			RFrameRate:   s.RFrameRate,
			AvgFrameRate: s.AvgFrameRate,
			Disposition:  map[string]int{"attached_pic": s.Disposition.AttachedPic},
		})
	}
	return raw
}

func (p *Prober) probeSubprocess(ctx context.Context, path string) (models.VideoMetadata, error) {
	bin := p.ffprobePath
	if bin == "" {
		bin = "ffprobe"
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	}
	stdout, stderr, err := p.runner.Run(ctx, bin, args, "")
	if err != nil {
		return models.VideoMetadata{}, fmt.Errorf("ffprobe %q: %w: %s", path, err, utils.Tail(stderr, 512))
	}
	return ParseJSON(stdout)
}

// ParseJSON converts raw ffprobe JSON output into VideoMetadata.
func ParseJSON(data []byte) (models.VideoMetadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.VideoMetadata{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildMetadata(&raw)
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	RFrameRate   string         `json:"r_frame_rate"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	Disposition  map[string]int `json:"disposition"`
}

// buildMetadata is shared by both probe paths so they always agree on shape.
func buildMetadata(raw *ffprobeOutput) (models.VideoMetadata, error) {
	var video, audio *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil && s.Disposition["attached_pic"] != 1 {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil || video.Width < 1 || video.Height < 1 {
		return models.VideoMetadata{}, ErrNoVideoStream
	}

	bitrate := parseInt64(raw.Format.BitRate)
	if bitrate <= 0 {
		bitrate = models.DefaultBitrateBps
	}

	return models.VideoMetadata{
		DurationSeconds: parseFloat(raw.Format.Duration),
		Width:           video.Width,
		Height:          video.Height,
		BitrateBps:      bitrate,
		HasAudio:        audio != nil,
		FrameRate:       frameRate(video),
	}, nil
}

func frameRate(s *ffprobeStream) models.Fraction {
	for _, candidate := range []string{s.RFrameRate, s.AvgFrameRate} {
		if f, err := ParseFraction(candidate); err == nil && f.Num > 0 {
			return f
		}
	}
	return defaultFrameRate
}

// ffprobe reports numbers as strings

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
