package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/stackr/internal/formatter"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
)

// BulkExportOpts contains configuration for bulk stack exports.
type BulkExportOpts struct {
	Format     string // Export format: json, csv, markdown, txt
	OutputDir  string // Base output directory (default: stackr_export_{epoch})
	NumWorkers int    // Concurrent workers (default: 4, max: 10)
}

type stackExportJob struct {
	stack *models.Stack
}

// BulkExport writes the given stacks (all history when ids is empty) concurrently and generates a manifest.
//
// Unknown ids and write failures are recorded per stack and do not stop the run.
func (e *StackEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*formatter.BulkExportResult, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: exposure store not initialized", shared.ErrServiceUnavailable)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("stackr_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if len(ids) == 0 {
		history, err := e.store.StackHistory(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read stack history: %w", err)
		}
		for _, s := range history {
			ids = append(ids, s.ID)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &formatter.BulkExportResult{
		TotalStacks:     len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.StackExportResult, 0, len(ids)),
	}

	jobs := make(chan stackExportJob, len(ids))
	results := make(chan formatter.StackExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i, id := range ids {
			if ctx.Err() != nil {
				return
			}

			stack, err := e.store.Stack(ctx, id)
			if err != nil {
				results <- formatter.StackExportResult{
					StackID:   id,
					StackName: fmt.Sprintf("Unknown (%s)", id),
					Error:     fmt.Errorf("failed to load stack: %w", err),
				}
				continue
			}

			jobs <- stackExportJob{stack: stack}
			sendProgress(prog, exportingUpdate(i+1, len(ids), stack.Name))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.StackName, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.StackName, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("bulk export finished",
		"dir", opts.OutputDir,
		"format", opts.Format,
		"ok", result.SuccessfulExports,
		"failed", result.FailedExports)
	return result, nil
}

// exportWorker is a worker goroutine that exports stacks from the jobs channel.
func (e *StackEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan stackExportJob,
	results chan<- formatter.StackExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		res := formatter.StackExportResult{StackID: job.stack.ID, StackName: job.stack.Name}
		files, err := formatter.WriteExport(job.stack, opts.Format, opts.OutputDir)
		if err != nil {
			res.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		} else {
			res.Files = files
			res.Success = true
		}
		results <- res
	}
}
