package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/stackr/internal/formatter"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ParseTrackSeed parses "Artist - Title". A value without a separator is an artist-only seed.
func ParseTrackSeed(s string) (models.Seed, error) {
	artist, title, found := strings.Cut(s, " - ")
	if !found {
		artist, title = s, ""
	}
	seed := models.NewTrackSeed(artist, title)
	if err := seed.Validate(); err != nil {
		return models.Seed{}, fmt.Errorf("%w: --track %q: %v", shared.ErrInvalidFlag, s, err)
	}
	return seed, nil
}

// ParseGenreSeed parses "id" or "id:Display Name".
func ParseGenreSeed(s string) (models.Seed, error) {
	id, name, _ := strings.Cut(s, ":")
	seed := models.NewGenreSeed(id, name)
	if err := seed.Validate(); err != nil {
		return models.Seed{}, fmt.Errorf("%w: --genre %q: %v", shared.ErrInvalidFlag, s, err)
	}
	return seed, nil
}

// seedsFromFlags collects seeds in flag order: tracks, then artists, then genres.
func seedsFromFlags(cmd *cli.Command) ([]models.Seed, error) {
	var seeds []models.Seed

	for _, v := range cmd.StringSlice("track") {
		seed, err := ParseTrackSeed(v)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	for _, v := range cmd.StringSlice("artist") {
		seed := models.NewTrackSeed(v, "")
		if err := seed.Validate(); err != nil {
			return nil, fmt.Errorf("%w: --artist %q: %v", shared.ErrInvalidFlag, v, err)
		}
		seeds = append(seeds, seed)
	}
	for _, v := range cmd.StringSlice("genre") {
		seed, err := ParseGenreSeed(v)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: pass at least one --track, --artist or --genre", shared.ErrInvalidSeeds)
	}
	return seeds, nil
}

// Build runs the stack pipeline for the seeds given on the command line.
func (r *Runner) Build(ctx context.Context, cmd *cli.Command) error {
	seeds, err := seedsFromFlags(cmd)
	if err != nil {
		return err
	}

	engine, err := r.Engine(cmd.Bool("ephemeral"))
	if err != nil {
		return err
	}

	maxPerSeed := cmd.Int("max-per-seed")
	if maxPerSeed <= 0 {
		maxPerSeed = r.config.Build.MaxPerSeed
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = shared.Duration(r.config.Build.Timeout, 2*time.Minute)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := tasks.BuildRequest{
		Seeds:      seeds,
		MaxPerSeed: maxPerSeed,
		DryRun:     cmd.Bool("dry-run"),
	}

	asJSON := cmd.Bool("json")
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if asJSON {
				continue
			}
			r.printProgress(update)
		}
	}()

	r.logger.Info("building stack", "seeds", len(seeds), "max_per_seed", maxPerSeed, "dry_run", req.DryRun)
	result, err := engine.Build(ctx, req, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if handled, err := r.maybeJSON(cmd, result.Stack); handled {
		return err
	}

	r.printResult(result)

	if dir := cmd.String("export"); dir != "" {
		format, err := formatter.ParseFormat(cmd.String("format"))
		if err != nil {
			return err
		}
		files, err := formatter.WriteExport(result.Stack, format, dir)
		if err != nil {
			return fmt.Errorf("failed to export stack: %w", err)
		}
		for _, f := range files {
			r.writePlain("📄 %s\n", f)
		}
	}
	return nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Snapshot, tasks.Assemble:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.Resolve:
		r.writePlain("🔍 %s\n", update.Message)
	case tasks.Collect:
		r.writePlain("📻 %s\n", update.Message)
	case tasks.Enrich:
		if update.Step == 0 || update.Step == update.Total {
			r.writePlain("🎧 %s\n", update.Message)
		}
	case tasks.Commit:
		r.writePlain("📝 %s\n", update.Message)
	}
}

func (r *Runner) printResult(result *tasks.BuildResult) {
	stack := result.Stack

	r.writePlain("\n")
	r.writePlainHeader(stack.Name)
	r.writePlain("%s\n\n", stack.Summary)

	for i, t := range stack.Tracks {
		line := fmt.Sprintf("%3d. %s - %s", i+1, t.Artist, t.Title)
		if t.PlaybackURL != "" {
			line += "  " + t.PlaybackURL
		}
		r.writePlain("%s\n", line)
	}

	r.writePlain("\nMatched: %d/%d\n", result.Matched, len(stack.Tracks))
	if result.Committed {
		r.writePlain("Saved as %s\n", stack.ID)
	} else {
		r.writePlain("Dry run: exposure unchanged\n")
	}
}
