package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"streamcast/models"
)

var testSecret = []byte("test-secret-key-for-jwt-signing-at-least-32-bytes-long")

func sampleToken(mutate func(*models.JobToken)) *models.JobToken {
	now := time.Now().Unix()
	c := &models.JobToken{
		Issuer:    "uploader",
		Subject:   "post-42",
		IssuedAt:  now,
		ExpiresAt: now + 300,
		Job: models.JobRequest{
			JobID:     "post-42",
			SourceURL: "s3://media/raw/post-42.mp4",
		},
	}
	if mutate != nil {
		mutate(c)
	}
	return c
}

func TestJobTokenRoundTrip(t *testing.T) {
	tok, err := CreateJobToken(sampleToken(nil), testSecret)
	if err != nil {
		t.Fatalf("CreateJobToken: %v", err)
	}
	claims, err := VerifyJobToken(tok, VerifyConfig{Secret: testSecret, ExpectedIssuer: "uploader"})
	if err != nil {
		t.Fatalf("VerifyJobToken: %v", err)
	}
	if claims.Job.JobID != "post-42" || claims.Job.SourceURL != "s3://media/raw/post-42.mp4" {
		t.Errorf("claims = %+v", claims.Job)
	}
}

func TestVerifyJobTokenRejects(t *testing.T) {
	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		claims *models.JobToken
		secret []byte
		cfg    VerifyConfig
		want   error
	}{
		{"expired", sampleToken(func(c *models.JobToken) { c.ExpiresAt = past }), testSecret, VerifyConfig{Secret: testSecret}, ErrTokenExpired},
		{"issued in future", sampleToken(func(c *models.JobToken) { c.IssuedAt = future }), testSecret, VerifyConfig{Secret: testSecret}, ErrTokenNotYetValid},
		{"wrong issuer", sampleToken(nil), testSecret, VerifyConfig{Secret: testSecret, ExpectedIssuer: "other"}, ErrInvalidIssuer},
		{"wrong secret", sampleToken(nil), []byte("another-secret-key-that-is-also-32-bytes-long!"), VerifyConfig{Secret: testSecret}, ErrInvalidSignature},
		{"missing job", sampleToken(func(c *models.JobToken) { c.Job = models.JobRequest{} }), testSecret, VerifyConfig{Secret: testSecret}, ErrMissingJob},
		{"no secret", sampleToken(nil), testSecret, VerifyConfig{}, ErrNoSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := CreateJobToken(tt.claims, tt.secret)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := VerifyJobToken(tok, tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := VerifyJobToken("not.a.jwt", VerifyConfig{Secret: testSecret}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token: err = %v", err)
	}
}

func TestGenerateRandomHex(t *testing.T) {
	a, err := GenerateRandomHex(16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateRandomHex(16)
	if len(a) != 32 || a == b {
		t.Errorf("got %q and %q", a, b)
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	stdout, stderr, err := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "echo out; echo err >&2; exit 3"}, t.TempDir())
	if err == nil {
		t.Fatal("expected non-zero exit error")
	}
	if strings.TrimSpace(string(stdout)) != "out" || strings.TrimSpace(string(stderr)) != "err" {
		t.Errorf("stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestTail(t *testing.T) {
	if got := Tail([]byte("abcdef"), 3); got != "...def" {
		t.Errorf("Tail = %q", got)
	}
	if got := Tail([]byte("ab"), 3); got != "ab" {
		t.Errorf("Tail = %q", got)
	}
}
