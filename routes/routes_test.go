package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"streamcast/credentials"
	"streamcast/job"
	"streamcast/jobstore"
	"streamcast/models"
	"streamcast/utils"
)

var testSecret = []byte("routes-test-secret-that-is-32-bytes-or-more")

type fakeSupervisor struct {
	mu        sync.Mutex
	submitted []job.SubmitRequest
	submitErr error
	active    map[string]models.JobState
	cancelErr error
}

func (f *fakeSupervisor) Submit(req job.SubmitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return nil
}

func (f *fakeSupervisor) State(jobID string) (models.JobState, bool) {
	s, ok := f.active[jobID]
	return s, ok
}

func (f *fakeSupervisor) Cancel(string) error { return f.cancelErr }

type fixture struct {
	api   *API
	sup   *fakeSupervisor
	store *jobstore.Store
	creds *credentials.Store
	mux   *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := jobstore.Open(filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	creds, err := credentials.Open(filepath.Join(dir, "creds.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		store.Close()
		creds.Close()
	})

	sup := &fakeSupervisor{active: map[string]models.JobState{}}
	api := &API{Jobs: sup, Registry: store, Credentials: creds, JWTSecret: testSecret, AdminToken: "admin"}
	mux := http.NewServeMux()
	api.Register(mux)
	return &fixture{api: api, sup: sup, store: store, creds: creds, mux: mux}
}

func (f *fixture) do(method, target, auth string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func signedJob(t *testing.T, jobID string) string {
	t.Helper()
	now := time.Now().Unix()
	tok, err := utils.CreateJobToken(&models.JobToken{
		IssuedAt:  now,
		ExpiresAt: now + 60,
		Job: models.JobRequest{
			JobID:       jobID,
			SourceURL:   "s3://media/raw/" + jobID + ".mp4",
			CallbackURL: "https://app.example.com/hooks/video",
		},
	}, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestSubmitJob(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/jobs", signedJob(t, "vid-1"), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp SubmitResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.JobID != "vid-1" || resp.State != models.JobStateUploading {
		t.Errorf("resp = %+v", resp)
	}
	if len(f.sup.submitted) != 1 || f.sup.submitted[0].CallbackURL != "https://app.example.com/hooks/video" {
		t.Errorf("submitted = %+v", f.sup.submitted)
	}
}

func TestSubmitJobErrors(t *testing.T) {
	tests := []struct {
		name      string
		auth      string
		submitErr error
		want      int
	}{
		{"no token", "", nil, http.StatusUnauthorized},
		{"bad token", "garbage", nil, http.StatusUnauthorized},
		{"duplicate", "", job.ErrDuplicateJob, http.StatusConflict},
		{"invalid id", "", job.ErrInvalidJobID, http.StatusBadRequest},
		{"queue full", "", job.ErrQueueFull, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.sup.submitErr = tt.submitErr
			auth := tt.auth
			if tt.submitErr != nil {
				auth = signedJob(t, "vid-2")
			}
			if rec := f.do(http.MethodPost, "/jobs", auth, nil); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/jobs", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /jobs = %d", rec.Code)
	}
}

func TestJobStatus(t *testing.T) {
	f := newFixture(t)
	f.store.Create("vid-3", "s3://media/raw/vid-3.mp4")
	f.sup.active["vid-3"] = models.JobStateProcessing

	rec := f.do(http.MethodGet, "/status?job=vid-3", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp JobStatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != models.JobStateProcessing || !resp.Active {
		t.Errorf("resp = %+v", resp)
	}

	if rec := f.do(http.MethodGet, "/status?job=missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing job = %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/status", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("no job param = %d", rec.Code)
	}
}

func TestJobList(t *testing.T) {
	f := newFixture(t)
	f.store.Create("a", "src")
	f.store.Create("b", "src")
	f.store.SetFailed(context.Background(), "b", "boom")

	rec := f.do(http.MethodGet, "/jobs/list?state=failed", "", nil)
	var body struct {
		Jobs  []jobstore.JobRecord `json:"jobs"`
		Count int                  `json:"count"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Count != 1 || body.Jobs[0].ID != "b" || body.Jobs[0].Error != "boom" {
		t.Errorf("body = %+v", body)
	}
	if rec := f.do(http.MethodGet, "/jobs/list?state=bogus", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus state = %d", rec.Code)
	}
}

func TestCancelJob(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodDelete, "/cancel?job=vid-4", "", nil); rec.Code != http.StatusNoContent {
		t.Errorf("cancel = %d", rec.Code)
	}
	f.sup.cancelErr = job.ErrUnknownJob
	if rec := f.do(http.MethodDelete, "/cancel?job=vid-4", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("cancel unknown = %d", rec.Code)
	}
}

func TestRegisterCredentials(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"backend":"s3","access_info":{"bucket":"media","region":"eu-west-1"}}`)

	if rec := f.do(http.MethodPost, "/credentials", "wrong", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong admin token = %d", rec.Code)
	}

	rec := f.do(http.MethodPost, "/credentials", "admin", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	stored, err := f.creds.Get(resp["access_key"])
	if err != nil {
		t.Fatalf("stored credentials: %v", err)
	}
	if stored.Backend != "s3" || stored.AccessInfo["bucket"] != "media" {
		t.Errorf("stored = %+v", stored)
	}

	bad := []byte(`{"backend":"ftp"}`)
	if rec := f.do(http.MethodPost, "/credentials", "admin", bad); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown backend = %d", rec.Code)
	}
}

func TestHealthVersionMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
	if rec := f.do(http.MethodGet, "/version", "", nil); rec.Code != http.StatusOK {
		t.Errorf("version = %d", rec.Code)
	}
	rec = f.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "streamcast_") {
		t.Errorf("metrics = %d", rec.Code)
	}
}
