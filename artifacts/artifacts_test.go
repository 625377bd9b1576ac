package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"streamcast/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		format models.Format
		role   models.Role
	}{
		{"dash.mpd", models.FormatDASH, models.RoleManifest},
		{"init_0.mp4", models.FormatDASH, models.RoleInitSegment},
		{"init_1.mp4", models.FormatDASH, models.RoleInitSegment},
		{"segment_0_1.m4s", models.FormatDASH, models.RoleMediaSegment},
		{"chunk-stream1-00001.m4a", models.FormatDASH, models.RoleMediaSegment},
		{"hls.m3u8", models.FormatHLS, models.RoleManifest},
		{"init.mp4", models.FormatHLS, models.RoleInitSegment},
		{"hls20240101120000.m4s", models.FormatHLS, models.RoleMediaSegment},
		{"segment0.ts", models.FormatHLS, models.RoleMediaSegment},
		{"thumbnail.jpg", models.FormatShared, models.RoleThumbnail},
		{"input.mp4", models.FormatNone, models.RoleUnrelated},
		{"instructions.json", models.FormatNone, models.RoleUnrelated},
		{"notes.txt", models.FormatNone, models.RoleUnrelated},
	}
	for _, c := range cases {
		format, role := Classify(c.name)
		if format != c.format || role != c.role {
			t.Errorf("Classify(%q) = (%q, %q), want (%q, %q)", c.name, format, role, c.format, c.role)
		}
	}
}

// Every real encoder output lands in exactly one of the two formats.
func TestClassifyMutuallyExclusive(t *testing.T) {
	names := []string{
		"dash.mpd", "init_0.mp4", "init_1.mp4", "segment_0_1.m4s", "segment_1_1.m4s",
		"hls.m3u8", "init.mp4", "hls20240101120000.m4s", "hls20240101120002.m4s",
	}
	for _, n := range names {
		format, _ := Classify(n)
		isDash := format == models.FormatDASH
		isHLS := format == models.FormatHLS
		if isDash == isHLS {
			t.Errorf("%q: dash=%v hls=%v, want exactly one", n, isDash, isHLS)
		}
	}
}

func touch(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	out := t.TempDir()
	root := t.TempDir()

	touch(t, filepath.Join(out, "input.mp4"), "source")
	touch(t, filepath.Join(out, "dash.mpd"), "mpd")
	touch(t, filepath.Join(out, "hls.m3u8"), "m3u8")
	touch(t, filepath.Join(out, "init.mp4"), "init")
	touch(t, filepath.Join(out, "thumbnail.jpg"), "jpg")
	touch(t, filepath.Join(out, "init_0.mp4"), "dash init in output")
	touch(t, filepath.Join(out, "nested", "segment_0_2.m4s"), "nested")
	touch(t, filepath.Join(out, "nested", "deeper", "segment_0_9.m4s"), "too deep")
	touch(t, filepath.Join(root, "segment_0_1.m4s"), "stray")
	touch(t, filepath.Join(root, "init_0.mp4"), "stray duplicate")
	touch(t, filepath.Join(root, "hls.m3u8"), "not a dash stray")
	touch(t, filepath.Join(root, "go.mod"), "module x")

	list, err := Discover("job42", out, root, "input.mp4")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	byName := make(map[string]models.OutputArtifact)
	for _, a := range list {
		if _, dup := byName[a.Filename]; dup {
			t.Fatalf("duplicate artifact %q", a.Filename)
		}
		byName[a.Filename] = a
	}

	want := []string{"dash.mpd", "hls.m3u8", "init.mp4", "init_0.mp4", "segment_0_1.m4s", "segment_0_2.m4s", "thumbnail.jpg"}
	if len(list) != len(want) {
		t.Fatalf("got %d artifacts %v, want %v", len(list), list, want)
	}
	for i, name := range want {
		if list[i].Filename != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Filename, name)
		}
	}

	if got := byName["init_0.mp4"].LocalPath; got != filepath.Join(out, "init_0.mp4") {
		t.Errorf("output dir copy should win, got %s", got)
	}
	if got := byName["segment_0_1.m4s"].LocalPath; got != filepath.Join(root, "segment_0_1.m4s") {
		t.Errorf("stray not picked up from root: %s", got)
	}
	if got := byName["segment_0_2.m4s"].RemoteKey; got != "streaming/job42/segment_0_2.m4s" {
		t.Errorf("remote key = %s", got)
	}
	if byName["dash.mpd"].Size != 3 {
		t.Errorf("size = %d", byName["dash.mpd"].Size)
	}

	counts := CountByFormat(list)
	if counts[models.FormatDASH] != 4 || counts[models.FormatHLS] != 2 || counts[models.FormatShared] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	if _, err := Discover("j", filepath.Join(t.TempDir(), "gone"), ""); err == nil {
		t.Fatal("expected error for missing output dir")
	}
}
