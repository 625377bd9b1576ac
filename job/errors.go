package job

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageSetup     Stage = "setup"
	StageDownload  Stage = "download"
	StageProbe     Stage = "probe"
	StageEncode    Stage = "encode"
	StageThumbnail Stage = "thumbnail"
	StageDiscover  Stage = "discover"
	StageUpload    Stage = "upload"
	StageTrack     Stage = "track"
	StageCleanup   Stage = "cleanup"
)

// StageError is returned by RunPipeline for every failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsStage reports whether err is a StageError from stage.
func IsStage(err error, stage Stage) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}

// CleanupError collects every path that could not be removed. It is logged
// and never changes a job's outcome.
type CleanupError struct {
	Failures []error
}

func (e *CleanupError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, err := range e.Failures {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("cleanup: %d failures: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *CleanupError) Unwrap() []error { return e.Failures }
