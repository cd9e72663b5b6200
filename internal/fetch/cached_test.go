package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/media-extractor/internal/db"
)

type fakeStore struct {
	pages      map[string]*db.Page
	skip       map[string]string
	failures   map[string]int
	upsertErr  error
	upserts    int
	lookupErrs error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pages:    map[string]*db.Page{},
		skip:     map[string]string{},
		failures: map[string]int{},
	}
}

func (s *fakeStore) ShouldSkipURL(_ context.Context, pageURL string) (bool, string, error) {
	if s.lookupErrs != nil {
		return false, "", s.lookupErrs
	}
	reason, ok := s.skip[pageURL]
	return ok, reason, nil
}

func (s *fakeStore) GetFreshPage(_ context.Context, pageURL string, _ time.Duration) (*db.Page, error) {
	return s.pages[pageURL], nil
}

func (s *fakeStore) UpsertPage(_ context.Context, page *db.Page) error {
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	page.ID = uuid.New()
	s.pages[page.URL] = page
	return nil
}

func (s *fakeStore) RecordFailedFetch(_ context.Context, pageURL string, httpStatus int, _ string) error {
	s.failures[pageURL] = httpStatus
	return nil
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestCachedFetcher_FetchesAndStores(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>page</p>")
	store := newFakeStore()
	f := NewCachedFetcher(store, nil)

	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.NotEqual(t, uuid.Nil, result.PageID)
	assert.Equal(t, "<p>page</p>", result.HTML)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	stored := store.pages[server.URL]
	require.NotNil(t, stored)
	assert.Equal(t, "<p>page</p>", *stored.RawHTML)
	assert.Equal(t, server.URL, *stored.FinalURL)
}

func TestCachedFetcher_ServesFreshPageFromCache(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>live</p>")
	store := newFakeStore()
	html := "<p>cached</p>"
	status := 200
	id := uuid.New()
	store.pages[server.URL] = &db.Page{ID: id, URL: server.URL, RawHTML: &html, HTTPStatus: &status}

	f := NewCachedFetcher(store, nil)
	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, id, result.PageID)
	assert.Equal(t, "<p>cached</p>", result.HTML)
	assert.Equal(t, server.URL, result.FinalURL)
	assert.Equal(t, 200, result.StatusCode)
	assert.NotNil(t, result.Page)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestCachedFetcher_SkipCacheAlwaysFetches(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>live</p>")
	store := newFakeStore()
	html := "<p>cached</p>"
	store.pages[server.URL] = &db.Page{URL: server.URL, RawHTML: &html}

	f := NewCachedFetcher(store, &CachedFetcherConfig{SkipCache: true})
	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, "<p>live</p>", result.HTML)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, 0, store.upserts)
}

func TestCachedFetcher_SkippedURL(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>live</p>")
	store := newFakeStore()
	store.skip[server.URL] = "retry backoff"

	f := NewCachedFetcher(store, nil)
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Message, "retry backoff")
	assert.False(t, fetchErr.Retryable)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestCachedFetcher_RecordsFailures(t *testing.T) {
	server, _ := countingServer(t, http.StatusGone, "")
	store := newFakeStore()

	f := NewCachedFetcher(store, nil)
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusGone, store.failures[server.URL])
}

func TestCachedFetcher_StoreErrors(t *testing.T) {
	server, _ := countingServer(t, http.StatusOK, "<p>live</p>")

	t.Run("lookup failure aborts", func(t *testing.T) {
		store := newFakeStore()
		store.lookupErrs = errors.New("db down")

		_, err := NewCachedFetcher(store, nil).Fetch(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to check skip status")
	})

	t.Run("upsert failure still returns the page", func(t *testing.T) {
		store := newFakeStore()
		store.upsertErr = errors.New("disk full")

		result, err := NewCachedFetcher(store, nil).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<p>live</p>", result.HTML)
		assert.Equal(t, uuid.Nil, result.PageID)
	})
}

func TestCachedFetcher_NilStore(t *testing.T) {
	server, hits := countingServer(t, http.StatusOK, "<p>live</p>")

	f := NewCachedFetcher(nil, nil)
	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestDefaultCachedFetcherConfig(t *testing.T) {
	config := DefaultCachedFetcherConfig()
	require.NotNil(t, config)
	assert.Equal(t, db.DefaultPageCacheTTL, config.CacheTTL)
	assert.False(t, config.SkipCache)
	assert.NotNil(t, config.Options)
}

func TestDerefHelpers(t *testing.T) {
	s := "hello"
	n := 200
	assert.Equal(t, "", derefString(nil))
	assert.Equal(t, "hello", derefString(&s))
	assert.Equal(t, 0, derefInt(nil))
	assert.Equal(t, 200, derefInt(&n))
}
