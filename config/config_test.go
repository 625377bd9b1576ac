package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv(envDataDir, "")
	t.Setenv(envListenAddr, "")
	t.Setenv(envJobTimeout, "")
	t.Setenv(envWorkers, "")

	if got := GetDataDir(); got != "./data" {
		t.Errorf("Expected ./data, got %s", got)
	}
	if got := GetJobsDBPath(); got != filepath.Join("./data", "jobs.db") {
		t.Errorf("Unexpected jobs db path: %s", got)
	}
	if got := GetListenAddr(); got != defaultListenAddr {
		t.Errorf("Expected %s, got %s", defaultListenAddr, got)
	}
	if got := GetJobTimeout(); got != defaultJobTimeout {
		t.Errorf("Expected %v, got %v", defaultJobTimeout, got)
	}
	if got := GetWorkers(); got != defaultWorkers {
		t.Errorf("Expected %d workers, got %d", defaultWorkers, got)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(envDataDir, "/var/lib/streamcast")
	t.Setenv(envEncodeTimeout, "10m")
	t.Setenv(envUploadWorkers, "4")
	t.Setenv(envDeliveryDomain, "https://cdn.example.com/")

	if got := GetCredentialsDBPath(); got != "/var/lib/streamcast/credentials.db" {
		t.Errorf("Unexpected credentials path: %s", got)
	}
	if got := GetEncodeTimeout(); got != 10*time.Minute {
		t.Errorf("Expected 10m, got %v", got)
	}
	if got := GetUploadConcurrency(); got != 4 {
		t.Errorf("Expected 4, got %d", got)
	}
	if got := GetDeliveryDomain(); got != "cdn.example.com" {
		t.Errorf("Expected bare host, got %s", got)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv(envUploadTimeout, "soon")
	t.Setenv(envWorkers, "-3")

	if got := GetUploadTimeout(); got != defaultUploadTimeout {
		t.Errorf("Expected default upload timeout, got %v", got)
	}
	if got := GetWorkers(); got != defaultWorkers {
		t.Errorf("Expected default workers, got %d", got)
	}
}

func TestStorageCredentialsFromEnvDropsEmpty(t *testing.T) {
	t.Setenv(envBucket, "media")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	creds := StorageCredentialsFromEnv()
	if creds["bucket"] != "media" {
		t.Errorf("Expected bucket media, got %q", creds["bucket"])
	}
	if _, ok := creds["accessKey"]; ok {
		t.Error("Empty access key should not be present")
	}
}

func TestResolveToolsExplicitPath(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	ffprobe := filepath.Join(dir, "ffprobe")
	for _, p := range []string{ffmpeg, ffprobe} {
		if err := os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
			t.Fatalf("Failed to write fake tool: %v", err)
		}
	}
	t.Setenv("STREAMCAST_FFMPEG_PATH", ffmpeg)
	t.Setenv("STREAMCAST_FFPROBE_PATH", ffprobe)

	tools, err := ResolveTools()
	if err != nil {
		t.Fatalf("Failed to resolve tools: %v", err)
	}
	if tools.FFmpeg != ffmpeg || tools.FFprobe != ffprobe {
		t.Errorf("Unexpected tools: %+v", tools)
	}
}

func TestResolveToolsTypedError(t *testing.T) {
	t.Setenv("STREAMCAST_FFMPEG_PATH", filepath.Join(t.TempDir(), "missing-ffmpeg"))

	_, err := ResolveTools()
	if err == nil {
		t.Fatal("Expected error for missing binary")
	}
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("Expected *ToolError, got %T", err)
	}
	if toolErr.Tool != "ffmpeg" {
		t.Errorf("Expected ffmpeg tool error, got %s", toolErr.Tool)
	}
	if !errors.Is(err, ErrToolNotFound) {
		t.Error("Expected errors.Is(err, ErrToolNotFound)")
	}
}
