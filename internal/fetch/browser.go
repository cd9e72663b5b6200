// Package fetch - browser.go provides headless browser rendering for pages
// whose metadata is injected by JavaScript.
package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/jonathan/media-extractor/internal/logging"
)

// DefaultBrowserTimeout bounds a single headless render.
const DefaultBrowserTimeout = 30 * time.Second

// renderSettle is how long scripts get to populate the head after load.
const renderSettle = 2 * time.Second

// WithBrowser renders a page in a headless browser and returns the rendered HTML.
// Requires Chrome/Chromium to be installed on the system.
func WithBrowser(ctx context.Context, url string, timeout time.Duration, logger *zerolog.Logger) (string, error) {
	logger = logging.OrNop(logger)
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	logger.Debug().Str("url", url).Msg("starting headless browser")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(renderSettle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{
			URL:       url,
			Message:   "browser rendering failed",
			Cause:     err,
			Retryable: true,
		}
	}

	logger.Debug().Str("url", url).Int("bytes", len(html)).Msg("rendered HTML")
	return html, nil
}

// Renderer renders a page to HTML. WithBrowser is the production implementation.
type Renderer func(ctx context.Context, url string, timeout time.Duration, logger *zerolog.Logger) (string, error)

// ensure WithBrowser keeps the Renderer shape
var _ Renderer = WithBrowser
