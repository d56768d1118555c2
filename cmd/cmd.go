// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func ephemeralFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "ephemeral",
		Usage: "Keep exposure state in memory for this run only",
	}
}

// buildCommand assembles a new stack from seeds
func buildCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Build a stack of unseen tracks from artist, track and genre seeds",
		UsageText: `stackr build --track "Bonobo - Kerala" --genre ambient:Ambient`,
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:    "track",
				Aliases: []string{"t"},
				Usage:   `Track seed as "Artist - Title" (repeatable)`,
			},
			&cli.StringSliceFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Artist seed (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:    "genre",
				Aliases: []string{"g"},
				Usage:   "Genre seed as id or id:Name (repeatable)",
			},
			&cli.IntFlag{
				Name:  "max-per-seed",
				Usage: "Maximum episodes or sets drawn per seed (0 uses config)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Build and print the stack without recording exposure",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall build deadline (0 uses config)",
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o"},
				Usage:   "Also write the stack to this directory",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Export format: json, csv, markdown, txt",
				Value: "markdown",
			},
			ephemeralFlag(),
		}, jsonFlags()...),
		Action: r.Build,
	}
}

// stacksCommand handles stack history operations
func stacksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "stacks",
		Aliases: []string{"history"},
		Usage:   "Browse, delete and export past stacks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stacks, newest first",
				Flags:  jsonFlags(),
				Action: r.StacksList,
			},
			{
				Name:  "show",
				Usage: "Print one stack",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown, txt",
						Value:   "txt",
					},
				},
				Action: r.StacksShow,
			},
			{
				Name:  "delete",
				Usage: "Delete a stack so its tracks can surface again",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.StacksDelete,
			},
			{
				Name:      "export",
				Usage:     "Export stacks to files (all history when no ids are given)",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: stackr_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers (max 10)",
						Value: 4,
					},
				},
				Action: r.StacksExport,
			},
		},
	}
}

// exposureCommand handles the seen/referenced state
func exposureCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "exposure",
		Usage: "Inspect or reset what has already been surfaced",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show counts of seen episodes, referenced tracks and stacks",
				Flags:  jsonFlags(),
				Action: r.ExposureStats,
			},
			{
				Name:  "clear",
				Usage: "Forget every seen episode, referenced track and stack",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Confirm the reset",
					},
				},
				Action: r.ExposureClear,
			},
		},
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// serveCommand starts the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the stack API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default from config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default from config)",
			},
			ephemeralFlag(),
		},
		Action: r.Serve,
	}
}

// cacheCommand handles the enrichment lookup cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the enrichment lookup cache",
		Commands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "Delete cached lookups older than a cutoff",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age cutoff (default: enrichment.miss_ttl)",
					},
				},
				Action: r.CachePurge,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing stack history.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse and delete stacks interactively",
		Action:  r.TUI,
	}
}
