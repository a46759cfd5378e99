// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf-harvest/pkg/types"
)

// WriteSummary writes the run summary as YAML, replacing any previous file.
func WriteSummary(path string, sum types.RunSummary) error {
	data, err := yaml.Marshal(&sum)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming summary: %w", err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (types.RunSummary, error) {
	var sum types.RunSummary
	data, err := os.ReadFile(path)
	if err != nil {
		return sum, fmt.Errorf("reading summary %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &sum); err != nil {
		return sum, fmt.Errorf("parsing summary %s: %w", path, err)
	}
	return sum, nil
}
