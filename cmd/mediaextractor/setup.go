package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/media-extractor/internal/config"
	"github.com/jonathan/media-extractor/internal/db"
	"github.com/jonathan/media-extractor/internal/fetch"
	"github.com/jonathan/media-extractor/internal/logging"
	"github.com/jonathan/media-extractor/internal/preview"
)

// loadConfig merges, in priority order, explicitly set flags, the --config
// file, DATABASE_URL and the built-in defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = databaseURL
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if flags.Lookup("browser") != nil && flags.Changed("browser") {
		cfg.UseBrowser, _ = flags.GetBool("browser")
	}
	if flags.Lookup("concurrency") != nil && flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Lookup("no-cache") != nil && flags.Changed("no-cache") {
		cfg.SkipCache, _ = flags.GetBool("no-cache")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg.MergeWithDefaults(config.Defaults()), nil
}

func newLogger(cfg config.Config, component string) *zerolog.Logger {
	return logging.New(logging.Options{Component: component, Verbose: cfg.Verbose})
}

// newService builds a preview service, connecting the page cache when a
// database is configured. The returned cleanup closes the connection.
func newService(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*preview.Service, func(), error) {
	svcCfg := preview.Config{
		FetchOptions: &fetch.Options{
			Timeout:      cfg.Timeout(),
			UserAgent:    cfg.UserAgent,
			MaxBodyBytes: cfg.MaxBodyBytes,
		},
		CacheTTL:       cfg.CacheTTL(),
		SkipCache:      cfg.SkipCache,
		UseBrowser:     cfg.UseBrowser,
		BrowserTimeout: cfg.BrowserTimeout(),
		Logger:         logger,
	}

	cleanup := func() {}
	if cfg.DatabaseURL != "" && !cfg.SkipCache {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		svcCfg.Store = database
		cleanup = database.Close
		logger.Debug().Msg("page cache enabled")
	}

	return preview.NewService(svcCfg), cleanup, nil
}

// writeJSON writes v as indented JSON to path, or to stdout when path is empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
