package jobstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"streamcast/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLifecycleToReady(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Create("j1", "s3://media/a.mp4"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create("j1", "s3://media/a.mp4"); err == nil {
		t.Fatal("duplicate Create should fail")
	}
	if err := s.SetProcessing(ctx, "j1"); err != nil {
		t.Fatalf("SetProcessing: %v", err)
	}
	urls := models.PublishedURLs{ManifestURLA: "https://cdn/streaming/j1/dash.mpd", ManifestURLB: "https://cdn/streaming/j1/hls.m3u8", ThumbnailURL: "https://cdn/streaming/j1/thumbnail.jpg"}
	if err := s.SetReady(ctx, "j1", urls); err != nil {
		t.Fatalf("SetReady: %v", err)
	}

	rec, err := s.Get("j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.State != models.JobStateReady || rec.URLs == nil || *rec.URLs != urls {
		t.Errorf("record = %+v", rec)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	if err := s.SetFailed(ctx, "j1", "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ready -> failed: err = %v, want ErrInvalidTransition", err)
	}
}

func TestFailedWithoutPriorRecord(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetFailed(context.Background(), "ghost", "probe: no video stream found"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	rec, err := s.Get("ghost")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.State != models.JobStateFailed || rec.Error == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestProcessingCannotRepeat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SetProcessing(ctx, "j2"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProcessing(ctx, "j2"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAndCleanup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base.Add(-48 * time.Hour) }
	s.SetProcessing(ctx, "old")
	s.SetFailed(ctx, "old", "boom")

	s.now = func() time.Time { return base }
	s.SetProcessing(ctx, "running")
	s.SetProcessing(ctx, "done")
	s.SetReady(ctx, "done", models.PublishedURLs{})

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d records", len(all))
	}

	processing, _ := s.ListByState(models.JobStateProcessing)
	if len(processing) != 1 || processing[0].ID != "running" {
		t.Errorf("processing = %+v", processing)
	}

	removed, err := s.CleanupOldRecords(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldRecords: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d, want 1", removed)
	}
	if _, err := s.Get("old"); !errors.Is(err, ErrNotFound) {
		t.Error("old record should be gone")
	}
	if _, err := s.Get("running"); err != nil {
		t.Error("in-flight record must survive cleanup")
	}

	if err := s.CheckHealth(); err != nil {
		t.Errorf("CheckHealth: %v", err)
	}
}
