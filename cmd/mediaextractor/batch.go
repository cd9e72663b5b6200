package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/media-extractor/internal/observability"
	"github.com/jonathan/media-extractor/internal/preview"
	"github.com/jonathan/media-extractor/internal/schemas"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Find the main images of many pages",
	Long: `Resolve every URL of a batch input file in parallel and write the results as JSON.

The input file must match schemas/batch_input.schema.json:
  {"urls": ["https://..."], "concurrency": 8, "use_browser": false}`,
	RunE: runBatch,
}

var (
	batchIn          string
	batchOut         string
	batchConcurrency int
	batchBrowser     bool
	batchNoCache     bool
)

// batchInput is a batch input document.
type batchInput struct {
	URLs        []string `json:"urls"`
	Concurrency int      `json:"concurrency,omitempty"`
	UseBrowser  bool     `json:"use_browser,omitempty"`
}

// batchOutput is a batch output document.
type batchOutput struct {
	Items   []preview.BatchItem  `json:"items"`
	Summary preview.BatchSummary `json:"summary"`
}

func init() {
	batchCmd.Flags().StringVarP(&batchIn, "in", "i", "", `Batch input JSON file, or "-" for stdin (required)`)
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "Output JSON file (default: stdout)")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "Pages resolved in parallel (overrides the input file)")
	batchCmd.Flags().BoolVar(&batchBrowser, "browser", false, "Render pages in headless Chrome when their HTML has no image metadata")
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "Always fetch and never store pages")

	_ = batchCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(batchCmd)
}

// loadBatchInput reads and schema-validates a batch input document.
func loadBatchInput(path string) (*batchInput, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	if err := schemas.ValidateBatchInput(data); err != nil {
		return nil, fmt.Errorf("invalid batch input: %w", err)
	}

	var in batchInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse batch input: %w", err)
	}
	return &in, nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	in, err := loadBatchInput(batchIn)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if in.UseBrowser && !cmd.Flags().Changed("browser") {
		cfg.UseBrowser = true
	}
	concurrency := cfg.Concurrency
	if in.Concurrency > 0 && !cmd.Flags().Changed("concurrency") {
		concurrency = in.Concurrency
	}

	logger := newLogger(cfg, "batch")
	ctx := context.Background()
	svc, cleanup, err := newService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info().Int("urls", len(in.URLs)).Int("concurrency", concurrency).Msg("starting batch")

	items, err := svc.FromURLsWithProgress(ctx, in.URLs, concurrency, func(index int, item preview.BatchItem) {
		logger.Debug().Int("index", index).Str("url", item.URL).Str("error", item.Error).Msg("page done")
	})
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}

	if cfg.Verbose {
		observability.NewPrinter(os.Stderr).PrintBatchSummary(items)
	}

	return writeJSON(batchOut, batchOutput{Items: items, Summary: preview.Summarize(items)})
}
