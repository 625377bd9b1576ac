package credentials

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "creds.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	in := Stored{Backend: "s3", AccessInfo: map[string]string{"bucket": "media", "region": "eu-west-1"}}
	if err := s.Put("k1", in); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := s.Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Backend != "s3" || out.AccessInfo["bucket"] != "media" {
		t.Errorf("got %+v", out)
	}

	if err := s.Delete("k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get("k1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutRequiresBackend(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "creds.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put("k", Stored{}); err == nil {
		t.Fatal("expected error without backend kind")
	}
}
