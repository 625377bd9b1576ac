package probe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"streamcast/config"
	"streamcast/models"

	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

const sampleJSON = `{
  "streams": [
    {"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001"},
    {"codec_type": "audio"}
  ],
  "format": {"duration": "12.500000", "bit_rate": "4200000"}
}`

type fakeRunner struct {
	calls  int
	name   string
	args   []string
	stdout []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, _ string) ([]byte, []byte, error) {
	f.calls++
	f.name = name
	f.args = args
	return f.stdout, []byte("ffprobe stderr"), f.err
}

func failingPrimary(context.Context, string) (models.VideoMetadata, error) {
	return models.VideoMetadata{}, errors.New("library unavailable")
}

func TestParseFraction(t *testing.T) {
	f, err := ParseFraction("30000/1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Num != 30000 || f.Den != 1001 {
		t.Errorf("got %v", f)
	}

	f, err = ParseFraction("25")
	if err != nil || f.Num != 25 || f.Den != 1 {
		t.Errorf("bare integer: got %v, %v", f, err)
	}

	for _, bad := range []string{"", "0/0", "30/0", "abc", "1+1/2", "30/-1", "os.exit(1)/1"} {
		if _, err := ParseFraction(bad); !errors.Is(err, ErrInvalidFraction) {
			t.Errorf("ParseFraction(%q) = %v, want ErrInvalidFraction", bad, err)
		}
	}
}

func TestParseJSON(t *testing.T) {
	meta, err := ParseJSON([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if meta.Width != 1920 || meta.Height != 1080 {
		t.Errorf("dimensions = %dx%d", meta.Width, meta.Height)
	}
	if meta.DurationSeconds != 12.5 {
		t.Errorf("duration = %v", meta.DurationSeconds)
	}
	if meta.BitrateBps != 4200000 {
		t.Errorf("bitrate = %d", meta.BitrateBps)
	}
	if !meta.HasAudio {
		t.Error("expected audio")
	}
	if meta.FrameRate != (models.Fraction{Num: 30000, Den: 1001}) {
		t.Errorf("frame rate = %v", meta.FrameRate)
	}
}

func TestParseJSONDefaults(t *testing.T) {
	raw := `{"streams":[{"codec_type":"video","width":640,"height":360,"r_frame_rate":"0/0","avg_frame_rate":"0/0"}],"format":{"duration":"3.0"}}`
	meta, err := ParseJSON([]byte(raw))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if meta.BitrateBps != models.DefaultBitrateBps {
		t.Errorf("bitrate = %d, want default", meta.BitrateBps)
	}
	if meta.HasAudio {
		t.Error("expected no audio")
	}
	if meta.FrameRate != (models.Fraction{Num: 30, Den: 1}) {
		t.Errorf("frame rate = %v, want 30/1", meta.FrameRate)
	}
}

func TestParseJSONNoVideo(t *testing.T) {
	raw := `{"streams":[{"codec_type":"audio"},{"codec_type":"video","width":300,"height":300,"disposition":{"attached_pic":1}}],"format":{"duration":"60"}}`
	if _, err := ParseJSON([]byte(raw)); !errors.Is(err, ErrNoVideoStream) {
		t.Fatalf("err = %v, want ErrNoVideoStream", err)
	}
}

func TestProbeFallsBackToSubprocess(t *testing.T) {
	runner := &fakeRunner{stdout: []byte(sampleJSON)}
	p := NewProber(config.Tools{FFprobe: "/opt/ffprobe"}, runner, WithPrimary(failingPrimary))

	meta, err := p.Probe(context.Background(), "/work/job1/input.mp4")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("fallback calls = %d, want 1", runner.calls)
	}
	if runner.name != "/opt/ffprobe" {
		t.Errorf("binary = %q", runner.name)
	}
	if last := runner.args[len(runner.args)-1]; last != "/work/job1/input.mp4" {
		t.Errorf("last arg = %q", last)
	}

	want, _ := ParseJSON([]byte(sampleJSON))
	if meta != want {
		t.Errorf("fallback metadata %+v differs from parsed shape %+v", meta, want)
	}
}

func TestProbePrimarySkipsFallback(t *testing.T) {
	runner := &fakeRunner{}
	want := models.VideoMetadata{Width: 1280, Height: 720, BitrateBps: 1, FrameRate: models.Fraction{Num: 24, Den: 1}}
	p := NewProber(config.Tools{}, runner, WithPrimary(func(context.Context, string) (models.VideoMetadata, error) {
		return want, nil
	}))

	got, err := p.Probe(context.Background(), "/tmp/in.mp4")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if got != want {
		t.Errorf("got %+v", got)
	}
	if runner.calls != 0 {
		t.Errorf("fallback should not run, calls = %d", runner.calls)
	}
}

func TestProbeBothFail(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	p := NewProber(config.Tools{}, runner, WithPrimary(failingPrimary))

	_, err := p.Probe(context.Background(), "/tmp/broken.mp4")
	var pe *ProbeError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProbeError", err)
	}
	if pe.Primary == nil || pe.Fallback == nil {
		t.Errorf("both causes should be recorded: %+v", pe)
	}
}

func TestProbeRejectsRemoteURL(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProber(config.Tools{}, runner, WithPrimary(failingPrimary))

	_, err := p.Probe(context.Background(), "https://bucket.s3.amazonaws.com/video.mp4")
	if !errors.Is(err, ErrRemotePath) {
		t.Fatalf("err = %v, want ErrRemotePath", err)
	}
	if runner.calls != 0 {
		t.Error("no process should run for a remote path")
	}
}

const coverArtOnlyJSON = `{
  "streams": [
    {"codec_type": "audio"},
    {"codec_type": "video", "width": 300, "height": 300, "r_frame_rate": "90000/1", "disposition": {"attached_pic": 1}}
  ],
  "format": {"duration": "60"}
}`

const coverArtFirstJSON = `{
  "streams": [
    {"codec_type": "video", "width": 300, "height": 300, "r_frame_rate": "90000/1", "disposition": {"attached_pic": 1}},
    {"codec_type": "video", "width": 1280, "height": 720, "r_frame_rate": "25/1", "disposition": {"attached_pic": 0}},
    {"codec_type": "audio"}
  ],
  "format": {"duration": "8.25", "bit_rate": "900000"}
}`

// Both probe paths decode the same ffprobe document; they must agree on
// metadata and on rejecting cover art as the only picture.
func TestProbePathsAgree(t *testing.T) {
	inputs := map[string]string{
		"plain":           sampleJSON,
		"cover art only":  coverArtOnlyJSON,
		"cover art first": coverArtFirstJSON,
	}
	for name, doc := range inputs {
		t.Run(name, func(t *testing.T) {
			var data ffprobe.ProbeData
			if err := json.Unmarshal([]byte(doc), &data); err != nil {
				t.Fatalf("decode library shape: %v", err)
			}
			libMeta, libErr := buildMetadata(fromProbeData(&data))
			subMeta, subErr := ParseJSON([]byte(doc))

			if libErr != nil && !errors.Is(libErr, ErrNoVideoStream) {
				t.Fatalf("library path: %v", libErr)
			}
			if errors.Is(libErr, ErrNoVideoStream) != errors.Is(subErr, ErrNoVideoStream) {
				t.Fatalf("paths disagree: library err=%v, subprocess err=%v", libErr, subErr)
			}
			if libMeta != subMeta {
				t.Errorf("library %+v != subprocess %+v", libMeta, subMeta)
			}
		})
	}

	var data ffprobe.ProbeData
	json.Unmarshal([]byte(coverArtFirstJSON), &data)
	meta, err := buildMetadata(fromProbeData(&data))
	if err != nil || meta.Width != 1280 || meta.FrameRate != (models.Fraction{Num: 25, Den: 1}) {
		t.Errorf("cover art first: meta=%+v err=%v", meta, err)
	}
}
