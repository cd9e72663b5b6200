package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/media-extractor/internal/config"
	"github.com/jonathan/media-extractor/internal/logging"
	"github.com/jonathan/media-extractor/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes REST endpoints for image resolution.

Bearer-token authentication is enabled when JWT_SECRET is set. Rate limits are read from RATE_LIMIT_* variables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	jwtCfg, err := config.OptionalJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	logger := logging.New(logging.Options{Component: "server", Verbose: cfg.Verbose, JSON: true})
	if jwtCfg == nil {
		logger.Warn().Msg("JWT_SECRET not set; API is unauthenticated")
	}

	srv, err := server.New(server.Config{
		Port:        cfg.Port,
		DatabaseURL: cfg.DatabaseURL,
		App:         cfg,
		JWT:         jwtCfg,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
