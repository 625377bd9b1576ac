package taskqueue

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLedger(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	defer l.Close()

	started := time.Now().UTC().Truncate(time.Second)
	for _, id := range []string{"b", "a"} {
		if err := l.Record(Entry{JobID: id, Source: "s3://m/" + id, WorkDir: "/w/" + id, StartedAt: started}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	e, err := l.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.WorkDir != "/w/a" || !e.StartedAt.Equal(started) {
		t.Errorf("entry = %+v", e)
	}

	entries, err := l.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].JobID != "a" || entries[1].JobID != "b" {
		t.Errorf("entries = %+v", entries)
	}

	if err := l.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := l.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPrefixEnd(t *testing.T) {
	if got := string(prefixEnd([]byte("ledger/"))); got != "ledger0" {
		t.Errorf("prefixEnd = %q", got)
	}
	if got := prefixEnd([]byte{0xff}); got != nil {
		t.Errorf("prefixEnd(0xff) = %v, want nil", got)
	}
}
