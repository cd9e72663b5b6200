// Package fetch provides generic URL fetching with optional caching.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/media-extractor/internal/db"
	"github.com/jonathan/media-extractor/internal/logging"
)

// PageStore is the subset of *db.DB the cached fetcher needs.
type PageStore interface {
	ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error)
	GetFreshPage(ctx context.Context, pageURL string, maxAge time.Duration) (*db.Page, error)
	UpsertPage(ctx context.Context, page *db.Page) error
	RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string) error
}

// CachedFetcher wraps URL fetching with database-backed caching.
type CachedFetcher struct {
	store     PageStore
	options   *Options
	cacheTTL  time.Duration
	skipCache bool // For testing or forcing fresh fetches
	logger    *zerolog.Logger
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL  time.Duration
	SkipCache bool
	Options   *Options
	Logger    *zerolog.Logger
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL:  db.DefaultPageCacheTTL,
		SkipCache: false,
		Options:   DefaultOptions(),
	}
}

// NewCachedFetcher creates a new cached fetcher. A nil store disables caching.
func NewCachedFetcher(store PageStore, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = db.DefaultPageCacheTTL
	}
	return &CachedFetcher{
		store:     store,
		options:   config.Options,
		cacheTTL:  config.CacheTTL,
		skipCache: config.SkipCache,
		logger:    logging.OrNop(config.Logger),
	}
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool      // Whether this result came from cache
	PageID    uuid.UUID // Database ID of the cached page
	// Page is the stored row, including any earlier resolution, when served from cache.
	Page *db.Page
}

func (f *CachedFetcher) caching() bool {
	return !f.skipCache && f.store != nil
}

// Fetch retrieves a URL, using cache if available and fresh.
// Returns cached content if within TTL, otherwise fetches fresh content and caches it.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	// Step 1: Check if URL should be skipped (permanent failure or backoff)
	if f.caching() {
		shouldSkip, reason, err := f.store.ShouldSkipURL(ctx, urlStr)
		if err != nil {
			return nil, fmt.Errorf("failed to check skip status: %w", err)
		}
		if shouldSkip {
			f.logger.Debug().Str("url", urlStr).Str("reason", reason).Msg("skipping URL")
			return nil, &Error{
				URL:       urlStr,
				Message:   fmt.Sprintf("URL skipped: %s", reason),
				Retryable: false,
			}
		}
	}

	// Step 2: Try to get fresh cached page
	if f.caching() {
		cached, err := f.store.GetFreshPage(ctx, urlStr, f.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check cache: %w", err)
		}
		if cached != nil {
			f.logger.Debug().Str("url", urlStr).Msg("page served from cache")
			finalURL := derefString(cached.FinalURL)
			if finalURL == "" {
				finalURL = cached.URL
			}
			return &CachedResult{
				Result: &Result{
					URL:        cached.URL,
					FinalURL:   finalURL,
					HTML:       derefString(cached.RawHTML),
					StatusCode: derefInt(cached.HTTPStatus),
				},
				FromCache: true,
				PageID:    cached.ID,
				Page:      cached,
			}, nil
		}
	}

	// Step 3: Fetch fresh content
	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		if f.caching() {
			statusCode := 0
			if result != nil {
				statusCode = result.StatusCode
			}
			if recErr := f.store.RecordFailedFetch(ctx, urlStr, statusCode, err.Error()); recErr != nil {
				f.logger.Warn().Err(recErr).Str("url", urlStr).Msg("failed to record failed fetch")
			}
		}
		return nil, err
	}
	f.logger.Debug().Str("url", urlStr).Int("bytes", len(result.HTML)).Msg("fetched page")

	// Step 4: Store in cache
	if f.caching() {
		page := &db.Page{
			URL:         urlStr,
			FinalURL:    &result.FinalURL,
			RawHTML:     &result.HTML,
			HTTPStatus:  &result.StatusCode,
			FetchStatus: db.FetchStatusSuccess,
		}
		if err := f.store.UpsertPage(ctx, page); err != nil {
			// Log but don't fail - the fetch succeeded
			f.logger.Warn().Err(err).Str("url", urlStr).Msg("failed to cache page")
		} else {
			return &CachedResult{
				Result:    result,
				FromCache: false,
				PageID:    page.ID,
			}, nil
		}
	}

	return &CachedResult{
		Result:    result,
		FromCache: false,
	}, nil
}

// Helper functions

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
