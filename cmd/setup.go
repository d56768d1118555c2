package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/stackr/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file if needed, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	applied, err := shared.AppliedVersions(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (%d %s applied)\n", r.config.Database.Path, len(applied), shared.Pluralize(len(applied), "migration"))
	if !r.config.SpotifyConfigured() {
		r.writePlainln("Spotify credentials are not set; stacks will be built without canonical ids.")
		r.writePlain("Set credentials.spotify in %s or STACKR_SPOTIFY_CLIENT_ID / STACKR_SPOTIFY_CLIENT_SECRET.\n", configPath)
	}
	return nil
}
