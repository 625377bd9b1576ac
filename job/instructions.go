package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// InstructionsFile is written into every work directory. It names the owning
// job and carries the callback headers, which the ledger does not store.
const InstructionsFile = "instructions.json"

// JobInstructions describes the job a work directory belongs to.
type JobInstructions struct {
	JobID           string            `json:"job_id"`
	Source          string            `json:"source"`
	WorkDir         string            `json:"work_dir"`
	CallbackURL     string            `json:"callback_url,omitempty"`
	CallbackHeaders map[string]string `json:"callback_headers,omitempty"`
	SubmittedAt     time.Time         `json:"submitted_at"`
}

// WriteInstructions writes instr to dir/instructions.json. The file is
// written under a temporary name and renamed into place.
func WriteInstructions(dir string, instr JobInstructions) error {
	data, err := json.MarshalIndent(instr, "", "  ")
	if err != nil {
		return fmt.Errorf("encode instructions: %w", err)
	}
	tmp := filepath.Join(dir, "."+InstructionsFile+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write instructions: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, InstructionsFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write instructions: %w", err)
	}
	return nil
}

// ReadInstructions loads dir/instructions.json.
func ReadInstructions(dir string) (JobInstructions, error) {
	data, err := os.ReadFile(filepath.Join(dir, InstructionsFile))
	if err != nil {
		return JobInstructions{}, fmt.Errorf("read instructions: %w", err)
	}
	var instr JobInstructions
	if err := json.Unmarshal(data, &instr); err != nil {
		return JobInstructions{}, fmt.Errorf("decode instructions in %s: %w", dir, err)
	}
	return instr, nil
}
