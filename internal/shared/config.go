package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Sources     SourcesConfig     `toml:"sources"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Build       BuildConfig       `toml:"build"`
	Enrichment  EnrichmentConfig  `toml:"enrichment"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify client-credentials settings used for track enrichment.
type SpotifyConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	TokenURL     string  `toml:"token_url"`
	BaseURL      string  `toml:"base_url"`
	RateLimit    float64 `toml:"rate_limit"`
}

// SourcesConfig groups the content source endpoints.
type SourcesConfig struct {
	Radio RadioConfig `toml:"radio"`
	DJSet DJSetConfig `toml:"djset"`
}

// RadioConfig configures the radio-episode catalog.
type RadioConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	PageSize  int    `toml:"page_size"`
	UserAgent string `toml:"user_agent"`
}

// DJSetConfig configures the DJ-set tracklist site.
type DJSetConfig struct {
	Enabled   bool    `toml:"enabled"`
	BaseURL   string  `toml:"base_url"`
	UserAgent string  `toml:"user_agent"`
	RateLimit float64 `toml:"rate_limit"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	LockPath     string `toml:"lock_path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// BuildConfig tunes stack building fan-out and timeouts.
type BuildConfig struct {
	MaxPerSeed           int    `toml:"max_per_seed"`
	SeedConcurrency      int    `toml:"seed_concurrency"`
	ContainerConcurrency int    `toml:"container_concurrency"`
	EnrichConcurrency    int    `toml:"enrich_concurrency"`
	SourceTimeout        string `toml:"source_timeout"`
	EnrichTimeout        string `toml:"enrich_timeout"`
	Timeout              string `toml:"timeout"`
}

// EnrichmentConfig controls the canonical-identifier lookup cache.
type EnrichmentConfig struct {
	Enabled bool   `toml:"enabled"`
	Cache   bool   `toml:"cache"`
	MissTTL string `toml:"miss_ttl"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults, and STACKR_* environment variables override secrets.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks numeric bounds and duration strings.
func (c *Config) Validate() error {
	if c.Build.MaxPerSeed <= 0 {
		return fmt.Errorf("%w: build.max_per_seed must be positive", ErrInvalidConfig)
	}

	durations := map[string]string{
		"build.source_timeout": c.Build.SourceTimeout,
		"build.enrich_timeout": c.Build.EnrichTimeout,
		"build.timeout":        c.Build.Timeout,
		"enrichment.miss_ttl":  c.Enrichment.MissTTL,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}

	return nil
}

// SpotifyConfigured reports whether client credentials are present.
func (c *Config) SpotifyConfigured() bool {
	return c.Credentials.Spotify.ClientID != "" && c.Credentials.Spotify.ClientSecret != ""
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STACKR_SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("STACKR_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv("STACKR_DB_PATH"); v != "" {
		c.Database.Path = v
	}
}

// Duration parses s, returning fallback when s is empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
