package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/stackr/internal/formatter"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// StacksList prints stack history, newest first.
func (r *Runner) StacksList(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(false)
	if err != nil {
		return err
	}

	history, err := engine.History(ctx)
	if err != nil {
		return err
	}

	if handled, err := r.maybeJSON(cmd, history); handled {
		return err
	}

	if len(history) == 0 {
		return r.writePlain("No stacks yet. Run 'stackr build --artist \"...\"' to create one.\n")
	}

	r.writePlainHeader(fmt.Sprintf("%d %s", len(history), shared.Pluralize(len(history), "stack")))
	for _, s := range history {
		n := len(s.Tracks)
		r.writePlain("%s  %s  %s (%d %s)\n", s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Name, n, shared.Pluralize(n, "track"))
	}
	return nil
}

// StacksShow renders one stack in the requested format.
func (r *Runner) StacksShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: stack id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	engine, err := r.Engine(false)
	if err != nil {
		return err
	}

	stack, err := engine.Stack(ctx, id)
	if err != nil {
		return err
	}

	out, err := formatter.Render(stack, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// StacksDelete removes a stack and reclaims the tracks no other stack holds.
func (r *Runner) StacksDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: stack id", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(false)
	if err != nil {
		return err
	}

	removed, err := engine.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", shared.ErrStackNotFound, id)
	}

	r.logger.Info("stack deleted", "stack", id)
	return r.writePlain("✓ Deleted %s\n", id)
}

// StacksExport writes stacks to disk through the bulk exporter.
func (r *Runner) StacksExport(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(false)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("  %s\n", update.Message)
		}
	}()

	result, err := engine.BulkExport(ctx, progressCh, cmd.Args().Slice(), tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
	})
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete")
	r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalStacks)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlain("\nFailed %d:\n", result.FailedExports)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.StackID, res.Error)
			}
		}
	}
	return nil
}

// ExposureStats prints exposure counts.
func (r *Runner) ExposureStats(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.Engine(false)
	if err != nil {
		return err
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}

	if handled, err := r.maybeJSON(cmd, stats); handled {
		return err
	}

	r.writePlainHeader("Exposure")
	r.writePlain("Seen episodes/sets: %d\n", stats.SeenContainers)
	r.writePlain("Referenced tracks:  %d\n", stats.ReferencedTracks)
	r.writePlain("Stacks:             %d\n", stats.Stacks)
	return nil
}

// ExposureClear resets all exposure state. Requires --yes.
func (r *Runner) ExposureClear(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: --yes is required to clear exposure state", shared.ErrMissingArgument)
	}

	engine, err := r.Engine(false)
	if err != nil {
		return err
	}

	if err := engine.Clear(ctx); err != nil {
		return err
	}

	r.logger.Info("exposure cleared")
	return r.writePlain("✓ Exposure state cleared\n")
}
