package db

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Page represents a cached web page and, once resolved, its main image
type Page struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	FinalURL    *string   `json:"final_url,omitempty"` // URL after redirects
	RawHTML     *string   `json:"-"`                   // Don't serialize (large)
	ContentHash *string   `json:"content_hash,omitempty"`
	HTTPStatus  *int      `json:"http_status,omitempty"`
	// Error tracking
	FetchStatus        string     `json:"fetch_status"` // 'success', 'error', 'not_found', 'timeout', 'blocked'
	ErrorMessage       *string    `json:"error_message,omitempty"`
	IsPermanentFailure bool       `json:"is_permanent_failure"`
	RetryCount         int        `json:"retry_count"`
	RetryAfter         *time.Time `json:"retry_after,omitempty"`
	// Resolution
	ImageURL       *string    `json:"image_url,omitempty"`
	ImageSource    *string    `json:"image_source,omitempty"` // 'facebook' or 'twitter'
	CandidateCount int        `json:"candidate_count"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	// Timestamps
	FetchedAt      time.Time  `json:"fetched_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ImageRecord is the outcome of resolving a page's main image.
// An empty ImageURL records that the page has no image.
type ImageRecord struct {
	ImageURL       string
	ImageSource    string
	CandidateCount int
}

// ResolvedImage is a lightweight view of a resolved page for listing
type ResolvedImage struct {
	PageURL        string    `json:"page_url"`
	ImageURL       string    `json:"image_url,omitempty"`
	ImageSource    string    `json:"image_source,omitempty"`
	CandidateCount int       `json:"candidate_count"`
	ResolvedAt     time.Time `json:"resolved_at"`
}

// FetchStatus constants for pages
const (
	FetchStatusSuccess  = "success"   // Page fetched successfully
	FetchStatusError    = "error"     // Generic error (may retry)
	FetchStatusNotFound = "not_found" // 404/410/451 - permanent failure
	FetchStatusTimeout  = "timeout"   // Request timed out (may retry)
	FetchStatusBlocked  = "blocked"   // 403/429 - blocked by server
)

// DefaultPageCacheTTL is the default time-to-live for cached pages (1 day)
const DefaultPageCacheTTL = 24 * time.Hour

// DefaultRecentLimit caps ListRecentImages when no limit is given
const DefaultRecentLimit = 50

// Retry backoff constants for transient failures
// Schedule: 1 min → 5 min → 25 min → 2 hours (capped)
const (
	RetryInitialBackoff = 1 * time.Minute
	RetryBackoffFactor  = 5
	RetryMaxBackoff     = 2 * time.Hour
)

// IsPermanentHTTPStatus returns true for status codes that indicate permanent failure
func IsPermanentHTTPStatus(status int) bool {
	switch status {
	case 404, 410, 451: // Not Found, Gone, Unavailable for Legal Reasons
		return true
	default:
		return false
	}
}

// FetchStatusFromHTTP determines fetch status from HTTP status code
func FetchStatusFromHTTP(status int) string {
	switch {
	case status >= 200 && status < 300:
		return FetchStatusSuccess
	case IsPermanentHTTPStatus(status):
		return FetchStatusNotFound
	case status == 403 || status == 429:
		return FetchStatusBlocked
	case status == 0:
		return FetchStatusTimeout
	default:
		return FetchStatusError
	}
}

// RetryBackoff returns the wait before the next attempt after retryCount failures.
// Mirrors the SQL in RecordFailedFetch.
func RetryBackoff(retryCount int) time.Duration {
	backoff := RetryInitialBackoff
	for i := 0; i < min(retryCount, 3); i++ {
		backoff *= RetryBackoffFactor
	}
	return min(backoff, RetryMaxBackoff)
}

// HashContent computes SHA-256 hash of content for change detection
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// IsExpired returns true if the page cache has expired
func (p *Page) IsExpired() bool {
	if p.ExpiresAt == nil {
		return false // No expiry set, never expires
	}
	return !time.Now().Before(*p.ExpiresAt)
}

// IsFresh returns true if the page was fetched within maxAge
func (p *Page) IsFresh(maxAge time.Duration) bool {
	return time.Since(p.FetchedAt) < maxAge
}

// IsResolved returns true once an image lookup has been recorded for the page,
// whether or not an image was found.
func (p *Page) IsResolved() bool {
	return p.ResolvedAt != nil
}
