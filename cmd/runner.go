package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/repositories"
	"github.com/desertthunder/stackr/internal/services"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	sources    []services.SourceAdapter
	enricher   services.Enricher
	store      models.ExposureStore
	cache      *repositories.EnrichmentCacheRepository
	db         *sql.DB
	engine     *tasks.StackEngine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Sources, Enricher and Store are built from Config on first use when left nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Sources    []services.SourceAdapter
	Enricher   services.Enricher
	Store      models.ExposureStore
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		sources:    opts.Sources,
		enricher:   opts.Enricher,
		store:      opts.Store,
	}
	return r
}

// Before loads --config when the file exists and applies the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		}
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		buildCommand, stacksCommand, exposureCommand, setupCommand, serveCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) defaultSources() []services.SourceAdapter {
	var sources []services.SourceAdapter
	timeout := shared.Duration(r.config.Build.SourceTimeout, 0)

	if radio := r.config.Sources.Radio; radio.Enabled {
		client := services.NewClient(services.ClientOpts{
			BaseURL:   radio.BaseURL,
			UserAgent: radio.UserAgent,
			Timeout:   timeout,
		})
		sources = append(sources, services.NewRadioService(client, radio.PageSize))
	}
	if djset := r.config.Sources.DJSet; djset.Enabled {
		client := services.NewClient(services.ClientOpts{
			BaseURL:   djset.BaseURL,
			UserAgent: djset.UserAgent,
			Timeout:   timeout,
			RateLimit: djset.RateLimit,
		})
		sources = append(sources, services.NewDJSetService(client))
	}
	return sources
}

func (r *Runner) defaultEnricher() services.Enricher {
	if !r.config.Enrichment.Enabled || !r.config.SpotifyConfigured() {
		return nil
	}

	spotify := r.config.Credentials.Spotify
	enricher, err := services.NewSpotifyEnricher(services.SpotifyOpts{
		ClientID:     spotify.ClientID,
		ClientSecret: spotify.ClientSecret,
		TokenURL:     spotify.TokenURL,
		BaseURL:      spotify.BaseURL,
		RateLimit:    spotify.RateLimit,
	})
	if err != nil {
		r.logger.Warn("spotify enrichment disabled", "error", err)
		return nil
	}
	return enricher
}

// openDatabase opens the configured database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	return db, nil
}

// lockPath returns the advisory lock file guarding exposure writes across processes.
func (r *Runner) lockPath() string {
	if p := r.config.Database.LockPath; p != "" {
		return p
	}
	if r.config.Database.Path == ":memory:" {
		return ""
	}
	return filepath.Clean(r.config.Database.Path) + ".lock"
}

// Engine returns the stack engine, opening storage on first use.
//
// With ephemeral set the exposure state lives in memory for this process only.
func (r *Runner) Engine(ephemeral bool) (*tasks.StackEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	if r.sources == nil {
		r.sources = r.defaultSources()
	}
	if r.enricher == nil {
		r.enricher = r.defaultEnricher()
	}

	if r.store == nil {
		if ephemeral {
			r.store = repositories.NewMemoryExposureStore()
		} else {
			db, err := r.openDatabase()
			if err != nil {
				return nil, err
			}
			r.store = repositories.NewExposureRepository(db, r.lockPath(), r.logger)
			r.cache = repositories.NewEnrichmentCacheRepository(db)
		}
	}

	enricher := r.enricher
	if enricher != nil && r.cache != nil && r.config.Enrichment.Cache {
		enricher = services.NewCachedEnricher(enricher, r.cache, shared.Duration(r.config.Enrichment.MissTTL, 0), r.logger)
	}

	build := r.config.Build
	r.engine = tasks.NewStackEngine(tasks.EngineOpts{
		Sources:              r.sources,
		Enricher:             enricher,
		Store:                r.store,
		Logger:               r.logger,
		SeedConcurrency:      build.SeedConcurrency,
		ContainerConcurrency: build.ContainerConcurrency,
		EnrichConcurrency:    build.EnrichConcurrency,
		SourceTimeout:        shared.Duration(build.SourceTimeout, 0),
		EnrichTimeout:        shared.Duration(build.EnrichTimeout, 0),
	})
	return r.engine, nil
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// maybeJSON writes data as JSON and reports true when --json is set.
func (r *Runner) maybeJSON(cmd *cli.Command, data any) (bool, error) {
	if !cmd.Bool("json") {
		return false, nil
	}
	return true, r.writeJSON(data, cmd.Bool("pretty"))
}
