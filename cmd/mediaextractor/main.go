// Package main provides the mediaextractor command-line tool and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mediaextractor",
	Short: "Main image resolver for web pages",
	Long: `mediaextractor finds the main image of a web page from its OpenGraph and Twitter card metadata.

Configuration can be loaded from a JSON file using --config. Command-line flags override config file values.`,
	SilenceUsage: true,
}

var (
	configPath  string
	verbose     bool
	databaseURL string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "PostgreSQL connection URL for the page cache (optional, defaults to DATABASE_URL env var)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
