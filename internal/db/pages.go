package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const pageColumns = `id, url, final_url, raw_html, content_hash, http_status, fetch_status, error_message,
	is_permanent_failure, retry_count, retry_after, image_url, image_source, candidate_count, resolved_at,
	fetched_at, expires_at, last_accessed_at, created_at, updated_at`

func scanPage(row pgx.Row) (*Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.URL, &p.FinalURL, &p.RawHTML, &p.ContentHash, &p.HTTPStatus, &p.FetchStatus,
		&p.ErrorMessage, &p.IsPermanentFailure, &p.RetryCount, &p.RetryAfter, &p.ImageURL, &p.ImageSource,
		&p.CandidateCount, &p.ResolvedAt, &p.FetchedAt, &p.ExpiresAt, &p.LastAccessedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPageByURL retrieves a cached page by URL
func (db *DB) GetPageByURL(ctx context.Context, pageURL string) (*Page, error) {
	p, err := scanPage(db.pool.QueryRow(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE url = $1`,
		pageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return p, nil
}

// GetFreshPage retrieves a page only if it's not stale, was successful and still has its HTML
func (db *DB) GetFreshPage(ctx context.Context, pageURL string, maxAge time.Duration) (*Page, error) {
	page, err := db.GetPageByURL(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	if !page.IsFresh(maxAge) || page.IsExpired() {
		return nil, nil // Stale, should re-fetch
	}
	if page.FetchStatus != FetchStatusSuccess || page.RawHTML == nil {
		return nil, nil
	}

	_ = db.TouchPage(ctx, page.ID)

	return page, nil
}

// ShouldSkipURL checks if a URL should be skipped due to previous permanent failure or backoff
func (db *DB) ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error) {
	page, err := db.GetPageByURL(ctx, pageURL)
	if err != nil {
		return false, "", err
	}
	if page == nil {
		return false, "", nil // Never tried, don't skip
	}

	if page.IsPermanentFailure {
		reason := "permanent failure"
		if page.ErrorMessage != nil {
			reason = *page.ErrorMessage
		}
		return true, reason, nil
	}

	if page.RetryAfter != nil && time.Now().Before(*page.RetryAfter) {
		return true, "retry backoff", nil
	}

	return false, "", nil
}

// UpsertPage inserts or updates a page after a successful fetch.
// Any previous resolution is cleared when the content hash changes.
func (db *DB) UpsertPage(ctx context.Context, page *Page) error {
	var contentHash *string
	if page.RawHTML != nil {
		hash := HashContent(*page.RawHTML)
		contentHash = &hash
		page.ContentHash = contentHash
	}

	expiresAt := page.ExpiresAt
	if expiresAt == nil {
		t := time.Now().Add(DefaultPageCacheTTL)
		expiresAt = &t
	}

	fetchStatus := page.FetchStatus
	if fetchStatus == "" {
		fetchStatus = FetchStatusSuccess
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO pages (url, final_url, raw_html, content_hash, http_status, fetch_status,
		                    error_message, is_permanent_failure, retry_count, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, NOW(), $9)
		 ON CONFLICT (url) DO UPDATE SET
		     final_url = $2,
		     raw_html = $3,
		     content_hash = $4,
		     http_status = $5,
		     fetch_status = $6,
		     error_message = $7,
		     is_permanent_failure = $8,
		     retry_count = 0,
		     retry_after = NULL,
		     image_url = CASE WHEN pages.content_hash IS DISTINCT FROM $4 THEN NULL ELSE pages.image_url END,
		     image_source = CASE WHEN pages.content_hash IS DISTINCT FROM $4 THEN NULL ELSE pages.image_source END,
		     candidate_count = CASE WHEN pages.content_hash IS DISTINCT FROM $4 THEN 0 ELSE pages.candidate_count END,
		     resolved_at = CASE WHEN pages.content_hash IS DISTINCT FROM $4 THEN NULL ELSE pages.resolved_at END,
		     fetched_at = NOW(),
		     expires_at = $9,
		     updated_at = NOW()
		 RETURNING id, fetched_at, created_at, updated_at`,
		page.URL, page.FinalURL, page.RawHTML, contentHash, page.HTTPStatus, fetchStatus,
		page.ErrorMessage, page.IsPermanentFailure, expiresAt,
	).Scan(&page.ID, &page.FetchedAt, &page.CreatedAt, &page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}
	page.FetchStatus = fetchStatus
	page.ExpiresAt = expiresAt
	return nil
}

// RecordFailedFetch records a failed fetch attempt with exponential backoff
func (db *DB) RecordFailedFetch(ctx context.Context, pageURL string, httpStatus int, errorMsg string) error {
	fetchStatus := FetchStatusFromHTTP(httpStatus)
	isPermanent := IsPermanentHTTPStatus(httpStatus)

	// Backoff: 1 min * 5^retry_count, capped at 2 hours (see RetryBackoff).
	// Permanent failures never get a retry_after.
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pages (url, http_status, fetch_status, error_message, is_permanent_failure, retry_count, retry_after, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, 1,
		         CASE WHEN $5 THEN NULL ELSE NOW() + INTERVAL '1 minute' END,
		         NOW())
		 ON CONFLICT (url) DO UPDATE SET
		     http_status = $2,
		     fetch_status = $3,
		     error_message = $4,
		     is_permanent_failure = $5 OR pages.is_permanent_failure,
		     retry_count = pages.retry_count + 1,
		     retry_after = CASE
		         WHEN $5 OR pages.is_permanent_failure THEN NULL
		         ELSE NOW() + LEAST(
		             INTERVAL '1 minute' * POWER(5, LEAST(pages.retry_count, 3)),
		             INTERVAL '2 hours'
		         )
		     END,
		     fetched_at = NOW(),
		     updated_at = NOW()`,
		pageURL, httpStatus, fetchStatus, errorMsg, isPermanent,
	)
	if err != nil {
		return fmt.Errorf("failed to record failed fetch: %w", err)
	}
	return nil
}

// SaveImage stores the resolution outcome for a page, creating the row if needed
func (db *DB) SaveImage(ctx context.Context, pageURL string, img ImageRecord) error {
	var imageURL, imageSource *string
	if img.ImageURL != "" {
		imageURL = &img.ImageURL
	}
	if img.ImageSource != "" {
		imageSource = &img.ImageSource
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO pages (url, image_url, image_source, candidate_count, resolved_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (url) DO UPDATE SET
		     image_url = $2,
		     image_source = $3,
		     candidate_count = $4,
		     resolved_at = NOW(),
		     updated_at = NOW()`,
		pageURL, imageURL, imageSource, img.CandidateCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save image for %s: %w", pageURL, err)
	}
	return nil
}

// TouchPage updates the last_accessed_at timestamp
func (db *DB) TouchPage(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE pages SET last_accessed_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch page: %w", err)
	}
	return nil
}

// ListRecentImages retrieves the most recently resolved pages, newest first
func (db *DB) ListRecentImages(ctx context.Context, limit int) ([]ResolvedImage, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := db.pool.Query(ctx,
		`SELECT url, COALESCE(image_url, ''), COALESCE(image_source, ''), candidate_count, resolved_at
		 FROM pages WHERE resolved_at IS NOT NULL
		 ORDER BY resolved_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent images: %w", err)
	}
	defer rows.Close()

	var images []ResolvedImage
	for rows.Next() {
		var img ResolvedImage
		if err := rows.Scan(&img.PageURL, &img.ImageURL, &img.ImageSource, &img.CandidateCount, &img.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolved image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recent images: %w", err)
	}
	return images, nil
}
