package formatter

import (
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/stackr/internal/shared"
)

// StackExportResult is the outcome of exporting one stack.
type StackExportResult struct {
	StackID   string
	StackName string
	Success   bool
	Files     []string
	Error     error
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	TotalStacks       int
	SuccessfulExports int
	FailedExports     int
	Results           []StackExportResult
	OutputDirectory   string
	ManifestPath      string
}

type manifest struct {
	Format            string          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	TotalStacks       int             `json:"total_stacks"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Stacks            []manifestEntry `json:"stacks"`
}

type manifestEntry struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Files  []string `json:"files,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// WriteBulkExportManifest writes a JSON summary of a bulk export to path.
func WriteBulkExportManifest(result *BulkExportResult, format, path string) error {
	m := manifest{
		Format:            format,
		ExportedAt:        time.Now().UTC(),
		TotalStacks:       result.TotalStacks,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
		Stacks:            make([]manifestEntry, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		entry := manifestEntry{ID: r.StackID, Name: r.StackName, Status: "success", Files: r.Files}
		if !r.Success {
			entry.Status = "failed"
			if r.Error != nil {
				entry.Error = r.Error.Error()
			}
		}
		m.Stacks = append(m.Stacks, entry)
	}

	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
