package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/media-extractor/internal/observability"
	"github.com/jonathan/media-extractor/internal/preview"
	"github.com/jonathan/media-extractor/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Find the main image of one page",
	Long: `Resolve the main image of a page. With --html the page is read from a file (or stdin with "-")
and --url only serves as the base for relative image references; otherwise the page is fetched.`,
	RunE: runResolve,
}

var (
	resolveURL     string
	resolveHTML    string
	resolveBrowser bool
	resolveNoCache bool
	resolveJSON    bool
)

var errNoImage = errors.New("no main image found")

func init() {
	resolveCmd.Flags().StringVarP(&resolveURL, "url", "u", "", "Page URL (required)")
	resolveCmd.Flags().StringVar(&resolveHTML, "html", "", `Read page HTML from this file, or "-" for stdin, instead of fetching`)
	resolveCmd.Flags().BoolVar(&resolveBrowser, "browser", false, "Render the page in headless Chrome when the HTML has no image metadata")
	resolveCmd.Flags().BoolVar(&resolveNoCache, "no-cache", false, "Always fetch and never store pages")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the full preview as JSON")

	_ = resolveCmd.MarkFlagRequired("url")
	// Supplied HTML is never fetched, rendered or cached
	resolveCmd.MarkFlagsMutuallyExclusive("html", "browser")
	resolveCmd.MarkFlagsMutuallyExclusive("html", "no-cache")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "resolve")
	printer := observability.NewPrinter(os.Stderr)

	var p *preview.Preview
	if resolveHTML != "" {
		html, err := readInput(resolveHTML)
		if err != nil {
			return err
		}
		if cfg.Verbose {
			printer.PrintResolution(resolver.Resolve(resolveURL, string(html)))
		}
		p = preview.NewService(preview.Config{Logger: logger}).FromHTML(resolveURL, string(html))
	} else {
		ctx := context.Background()
		svc, cleanup, err := newService(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		p, err = svc.FromURL(ctx, resolveURL)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", resolveURL, err)
		}
		if cfg.Verbose {
			printer.PrintPreview(p)
		}
	}

	if resolveJSON {
		return writeJSON("", p)
	}
	if !p.Found {
		return errNoImage
	}
	fmt.Fprintln(os.Stdout, p.ImageURL)
	return nil
}
