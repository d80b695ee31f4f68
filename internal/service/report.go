package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteReport persists the run result as a JSON report under dir, named by
// run ID. The write is atomic so a crash mid-write never leaves a torn
// report behind.
func WriteReport(dir string, result *RunResult) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, result.RunID+".json")
	if err := renameio.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
