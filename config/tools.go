package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrToolNotFound is wrapped by every ToolError.
var ErrToolNotFound = errors.New("external tool not found")

// ToolError reports which binary could not be resolved to an executable path.
type ToolError struct {
	Tool      string
	Candidate string
	Err       error
}

func (e *ToolError) Error() string {
	if e.Candidate != "" {
		return fmt.Sprintf("resolve %s (%q): %v", e.Tool, e.Candidate, e.Err)
	}
	return fmt.Sprintf("resolve %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return ErrToolNotFound }

// Tools holds the resolved locations of the encoder and prober binaries.
// It is resolved once at startup and handed to constructors.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// ResolveTools resolves ffmpeg and ffprobe from STREAMCAST_FFMPEG_PATH /
// STREAMCAST_FFPROBE_PATH, falling back to PATH lookup.
func ResolveTools() (Tools, error) {
	ffmpeg, err := resolveTool("ffmpeg", os.Getenv("STREAMCAST_FFMPEG_PATH"))
	if err != nil {
		return Tools{}, err
	}
	ffprobe, err := resolveTool("ffprobe", os.Getenv("STREAMCAST_FFPROBE_PATH"))
	if err != nil {
		return Tools{}, err
	}
	return Tools{FFmpeg: ffmpeg, FFprobe: ffprobe}, nil
}

func resolveTool(name, explicit string) (string, error) {
	candidate := strings.TrimSpace(explicit)
	if candidate == "" {
		candidate = name
	}
	path, err := exec.LookPath(candidate)
	if err != nil {
		return "", &ToolError{Tool: name, Candidate: candidate, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", &ToolError{Tool: name, Candidate: path, Err: err}
	}
	if info.IsDir() {
		return "", &ToolError{Tool: name, Candidate: path, Err: errors.New("is a directory")}
	}
	return path, nil
}
