package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/media-extractor/internal/observability"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Find the main images of the pages a feed links to",
	Long:  "Read an RSS, Atom or JSON feed and resolve the main image of each item's page.",
	RunE:  runFeed,
}

var (
	feedURL         string
	feedLimit       int
	feedOut         string
	feedConcurrency int
	feedBrowser     bool
)

func init() {
	feedCmd.Flags().StringVarP(&feedURL, "url", "u", "", "Feed URL (required)")
	feedCmd.Flags().IntVarP(&feedLimit, "limit", "l", 0, "Resolve at most this many items (default: all)")
	feedCmd.Flags().StringVarP(&feedOut, "out", "o", "", "Output JSON file (default: stdout)")
	feedCmd.Flags().IntVarP(&feedConcurrency, "concurrency", "c", 0, "Pages resolved in parallel")
	feedCmd.Flags().BoolVar(&feedBrowser, "browser", false, "Render pages in headless Chrome when their HTML has no image metadata")

	_ = feedCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, _ []string) error {
	if feedLimit < 0 {
		return fmt.Errorf("--limit must be non-negative")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "feed")

	ctx := context.Background()
	svc, cleanup, err := newService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.FromFeed(ctx, feedURL, feedLimit, cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to resolve feed: %w", err)
	}

	if cfg.Verbose {
		observability.NewPrinter(os.Stderr).PrintBatchSummary(result.BatchItems())
	}

	return writeJSON(feedOut, result)
}
