// Package preview turns page URLs into link previews: fetch, resolve the main
// image, optionally re-render in a headless browser, and remember the outcome.
package preview

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/media-extractor/internal/db"
	"github.com/jonathan/media-extractor/internal/fetch"
	"github.com/jonathan/media-extractor/internal/logging"
	"github.com/jonathan/media-extractor/internal/metrics"
	"github.com/jonathan/media-extractor/internal/resolver"
)

// Store is the persistence the service needs. *db.DB satisfies it.
type Store interface {
	fetch.PageStore
	SaveImage(ctx context.Context, pageURL string, img db.ImageRecord) error
}

// Preview is the resolved main image of one page.
type Preview struct {
	PageURL    string               `json:"page_url"`
	FinalURL   string               `json:"final_url,omitempty"`
	ImageURL   string               `json:"image_url,omitempty"`
	Found      bool                 `json:"found"`
	Source     string               `json:"source,omitempty"` // facebook or twitter
	Candidates []resolver.Candidate `json:"candidates,omitempty"`
	FromCache  bool                 `json:"from_cache"`
	Rendered   bool                 `json:"rendered"` // image came from browser-rendered HTML
}

// Config holds Service dependencies and switches.
type Config struct {
	Store          Store // nil disables caching
	FetchOptions   *fetch.Options
	CacheTTL       time.Duration
	SkipCache      bool
	UseBrowser     bool
	BrowserTimeout time.Duration
	Renderer       fetch.Renderer // defaults to fetch.WithBrowser
	Logger         *zerolog.Logger
}

// Service builds previews.
type Service struct {
	fetcher        *fetch.CachedFetcher
	resolver       *resolver.OpenGraphResolver
	store          Store
	render         fetch.Renderer
	logger         *zerolog.Logger
	userAgent      string
	useBrowser     bool
	browserTimeout time.Duration
}

// NewService creates a Service from cfg.
func NewService(cfg Config) *Service {
	logger := logging.OrNop(cfg.Logger)

	render := cfg.Renderer
	if render == nil {
		render = fetch.WithBrowser
	}
	browserTimeout := cfg.BrowserTimeout
	if browserTimeout <= 0 {
		browserTimeout = fetch.DefaultBrowserTimeout
	}

	userAgent := fetch.DefaultUserAgent
	if cfg.FetchOptions != nil && cfg.FetchOptions.UserAgent != "" {
		userAgent = cfg.FetchOptions.UserAgent
	}

	return &Service{
		fetcher: fetch.NewCachedFetcher(cfg.Store, &fetch.CachedFetcherConfig{
			CacheTTL:  cfg.CacheTTL,
			SkipCache: cfg.SkipCache,
			Options:   cfg.FetchOptions,
			Logger:    logger,
		}),
		resolver:       resolver.New(),
		store:          cfg.Store,
		render:         render,
		logger:         logger,
		userAgent:      userAgent,
		useBrowser:     cfg.UseBrowser,
		browserTimeout: browserTimeout,
	}
}

// FromHTML resolves a page the caller already has. No network or storage
// is touched.
func (s *Service) FromHTML(pageURL, html string) *Preview {
	p := fromResolution(pageURL, s.resolver.Resolve(pageURL, html))
	recordPreview(p)
	return p
}

// FromURL fetches pageURL and resolves its main image. Relative image
// sources resolve against the URL the fetch ended on after redirects.
func (s *Service) FromURL(ctx context.Context, pageURL string) (*Preview, error) {
	if err := checkPageURL(pageURL); err != nil {
		return nil, err
	}

	result, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		metrics.RecordResolution(metrics.OutcomeError, "", 0)
		return nil, err
	}

	if result.FromCache && result.Page != nil && result.Page.IsResolved() {
		if p := fromStoredPage(result.Page); p.Found || !s.useBrowser {
			s.logger.Debug().Str("url", pageURL).Bool("found", p.Found).Msg("image served from cache")
			metrics.RecordResolution(metrics.OutcomeCached, p.Source, 0)
			return p, nil
		}
	}

	base := result.FinalURL
	if base == "" {
		base = pageURL
	}

	res := s.resolver.Resolve(base, result.HTML)
	rendered := false
	if !res.Found && s.useBrowser {
		if r, ok := s.resolveRendered(ctx, base); ok {
			res = r
			rendered = true
		}
	}

	p := fromResolution(pageURL, res)
	p.FinalURL = base
	p.FromCache = result.FromCache
	p.Rendered = rendered

	s.logger.Debug().
		Str("url", pageURL).
		Int("candidates", len(res.Candidates)).
		Bool("found", p.Found).
		Bool("rendered", rendered).
		Msg("resolved main image")
	recordPreview(p)

	s.saveImage(ctx, pageURL, p)
	return p, nil
}

// resolveRendered re-runs resolution on browser-rendered HTML.
// A render failure is logged and treated as "nothing better found".
func (s *Service) resolveRendered(ctx context.Context, base string) (*resolver.Resolution, bool) {
	html, err := s.render(ctx, base, s.browserTimeout, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", base).Msg("browser render failed")
		metrics.RecordBrowserRender(metrics.OutcomeError)
		return nil, false
	}
	res := s.resolver.Resolve(base, html)
	if !res.Found {
		metrics.RecordBrowserRender(metrics.OutcomeNone)
		return nil, false
	}
	metrics.RecordBrowserRender(metrics.OutcomeFound)
	return res, true
}

func (s *Service) saveImage(ctx context.Context, pageURL string, p *Preview) {
	if s.store == nil {
		return
	}
	record := db.ImageRecord{
		ImageURL:       p.ImageURL,
		ImageSource:    p.Source,
		CandidateCount: len(p.Candidates),
	}
	if err := s.store.SaveImage(ctx, pageURL, record); err != nil {
		s.logger.Warn().Err(err).Str("url", pageURL).Msg("failed to save image")
	}
}

func recordPreview(p *Preview) {
	outcome := metrics.OutcomeNone
	if p.Found {
		outcome = metrics.OutcomeFound
	}
	metrics.RecordResolution(outcome, p.Source, len(p.Candidates))
}

func checkPageURL(pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return &InvalidURLError{URL: pageURL, Message: "unparseable", Cause: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidURLError{URL: pageURL, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &InvalidURLError{URL: pageURL, Message: "missing host"}
	}
	return nil
}

func fromResolution(pageURL string, res *resolver.Resolution) *Preview {
	p := &Preview{
		PageURL:    pageURL,
		ImageURL:   res.ImageURL,
		Found:      res.Found,
		Candidates: res.Candidates,
	}
	if res.Found {
		if c := res.ChosenCandidate(); c != nil {
			p.Source = c.SourceType
		}
	}
	return p
}

func fromStoredPage(page *db.Page) *Preview {
	p := &Preview{
		PageURL:   page.URL,
		FromCache: true,
	}
	if page.FinalURL != nil {
		p.FinalURL = *page.FinalURL
	}
	if page.ImageURL != nil && *page.ImageURL != "" {
		p.ImageURL = *page.ImageURL
		p.Found = true
	}
	if page.ImageSource != nil {
		p.Source = *page.ImageSource
	}
	return p
}
