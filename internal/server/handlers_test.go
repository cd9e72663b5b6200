package server

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/media-extractor/internal/db"
	"github.com/jonathan/media-extractor/internal/preview"
)

// siteServer serves a small site: a page with image metadata, one without,
// a removed page and an RSS feed linking to all three.
func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/article", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
<meta property="og:image" content="/img/cover.jpg">
<meta name="twitter:image" content="/img/cover-large.jpg">
</head></html>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>plain</title></head></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Site</title>
<item><title>Article</title><link>%[1]s/article</link></item>
<item><title>Plain</title><link>%[1]s/plain</link></item>
<item><title>Gone</title><link>%[1]s/gone</link></item>
</channel></rss>`, server.URL)
	})
	return server
}

func TestHandleImage(t *testing.T) {
	site := siteServer(t)
	store := newFakeStore()
	s := newTestServer(t, store)

	w := serve(s, http.MethodGet, "/image?url="+url.QueryEscape(site.URL+"/article"), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p := decode[preview.Preview](t, w)
	assert.True(t, p.Found)
	assert.Equal(t, site.URL+"/img/cover.jpg", p.ImageURL)
	assert.Equal(t, "facebook", p.Source)
	assert.False(t, p.FromCache)
	assert.Contains(t, store.images, site.URL+"/article")

	// Second request is answered from the cache
	w = serve(s, http.MethodGet, "/image?url="+url.QueryEscape(site.URL+"/article"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[preview.Preview](t, w).FromCache)
}

func TestHandleImage_Errors(t *testing.T) {
	site := siteServer(t)
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "missing url", target: "/image", status: http.StatusBadRequest},
		{name: "relative url", target: "/image?url=/article", status: http.StatusBadRequest},
		{name: "ftp url", target: "/image?url=" + url.QueryEscape("ftp://example.com/x"), status: http.StatusBadRequest},
		{name: "upstream gone", target: "/image?url=" + url.QueryEscape(site.URL+"/gone"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestHandleResolve(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("resolves supplied html", func(t *testing.T) {
		body := `{"url":"https://news.example.com/a/b.html","html":"<meta name=\"twitter:image\" content=\"../img/x.png\">"}`
		w := serve(s, http.MethodPost, "/resolve", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		p := decode[preview.Preview](t, w)
		assert.True(t, p.Found)
		assert.Equal(t, "https://news.example.com/img/x.png", p.ImageURL)
		assert.Equal(t, "twitter", p.Source)
	})

	t.Run("no image", func(t *testing.T) {
		w := serve(s, http.MethodPost, "/resolve", `{"url":"https://example.com/","html":"<p>hi</p>"}`)
		require.Equal(t, http.StatusOK, w.Code)

		p := decode[preview.Preview](t, w)
		assert.False(t, p.Found)
		assert.Empty(t, p.ImageURL)
	})

	invalid := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{"url":`, want: "body"},
		{name: "missing html", body: `{"url":"https://example.com/"}`, want: "HTML"},
		{name: "missing url", body: `{"html":"<p>"}`, want: "URL"},
		{name: "bad url", body: `{"url":"not a url","html":"<p>"}`, want: "URL"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, http.MethodPost, "/resolve", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[map[string]string](t, w)["error"], tt.want)
		})
	}
}

func TestHandleBatch(t *testing.T) {
	site := siteServer(t)
	s := newTestServer(t, nil)

	body := fmt.Sprintf(`{"urls":["%[1]s/article","%[1]s/plain","%[1]s/gone"],"concurrency":2}`, site.URL)
	w := serve(s, http.MethodPost, "/resolve/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[BatchResponse](t, w)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, site.URL+"/article", resp.Items[0].URL)
	require.NotNil(t, resp.Items[0].Preview)
	assert.Equal(t, site.URL+"/img/cover.jpg", resp.Items[0].Preview.ImageURL)
	require.NotNil(t, resp.Items[1].Preview)
	assert.False(t, resp.Items[1].Preview.Found)
	assert.Contains(t, resp.Items[2].Error, "410")
	assert.Equal(t, preview.BatchSummary{Total: 3, Found: 1, Failed: 1}, resp.Summary)
}

func TestHandleBatch_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	many := make([]string, 51)
	for i := range many {
		many[i] = fmt.Sprintf(`"https://example.com/%d"`, i)
	}

	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: `{"urls":[]}`},
		{name: "missing", body: `{}`},
		{name: "too many", body: `{"urls":[` + strings.Join(many, ",") + `]}`},
		{name: "not http", body: `{"urls":["mailto:someone@example.com"]}`},
		{name: "concurrency too high", body: `{"urls":["https://example.com/"],"concurrency":100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, http.MethodPost, "/resolve/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestHandleBatchStream(t *testing.T) {
	site := siteServer(t)
	s := newTestServer(t, nil)

	body := fmt.Sprintf(`{"urls":["%[1]s/article","%[1]s/gone"]}`, site.URL)
	w := serve(s, http.MethodPost, "/resolve/batch/stream", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var events []string
	var summary string
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	var current string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
			events = append(events, current)
		case strings.HasPrefix(line, "data: ") && current == "summary":
			summary = strings.TrimPrefix(line, "data: ")
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, []string{"item", "item", "summary"}, events)
	assert.JSONEq(t, `{"total":2,"found":1,"failed":1}`, summary)
	assert.Contains(t, w.Body.String(), `"index":0`)
	assert.Contains(t, w.Body.String(), `"index":1`)
}

func TestHandleBatchStream_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, http.MethodPost, "/resolve/batch/stream", `{"urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestHandleFeed(t *testing.T) {
	site := siteServer(t)
	s := newTestServer(t, nil)

	w := serve(s, http.MethodPost, "/resolve/feed", fmt.Sprintf(`{"feed_url":"%s/rss"}`, site.URL))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[FeedResponse](t, w)
	require.NotNil(t, resp.FeedResult)
	assert.Equal(t, "Site", resp.Title)
	require.Len(t, resp.Items, 3)
	require.NotNil(t, resp.Items[0].Preview)
	assert.Equal(t, site.URL+"/img/cover.jpg", resp.Items[0].Preview.ImageURL)
	assert.Equal(t, preview.BatchSummary{Total: 3, Found: 1, Failed: 1}, resp.Summary)

	t.Run("limit", func(t *testing.T) {
		w := serve(s, http.MethodPost, "/resolve/feed", fmt.Sprintf(`{"feed_url":"%s/rss","limit":1}`, site.URL))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[FeedResponse](t, w).Items, 1)
	})

	t.Run("not a feed", func(t *testing.T) {
		w := serve(s, http.MethodPost, "/resolve/feed", fmt.Sprintf(`{"feed_url":"%s/plain"}`, site.URL))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("invalid request", func(t *testing.T) {
		w := serve(s, http.MethodPost, "/resolve/feed", `{"feed_url":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleRecentImages(t *testing.T) {
	t.Run("no cache", func(t *testing.T) {
		s := newTestServer(t, nil)
		w := serve(s, http.MethodGet, "/images/recent", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("lists images", func(t *testing.T) {
		store := newFakeStore()
		resolvedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		store.recent = []db.ResolvedImage{
			{PageURL: "https://example.com/a", ImageURL: "https://example.com/a.png", ImageSource: "facebook", CandidateCount: 2, ResolvedAt: resolvedAt},
		}
		s := newTestServer(t, store)

		w := serve(s, http.MethodGet, "/images/recent?limit=10", "")
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[RecentImagesResponse](t, w)
		require.Len(t, resp.Images, 1)
		assert.Equal(t, "https://example.com/a.png", resp.Images[0].ImageURL)
		assert.True(t, resolvedAt.Equal(resp.Images[0].ResolvedAt))
		assert.Equal(t, []int{10}, store.limits)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		s := newTestServer(t, newFakeStore())
		w := serve(s, http.MethodGet, "/images/recent", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"images":[]}`, w.Body.String())
	})

	t.Run("bad limits", func(t *testing.T) {
		s := newTestServer(t, newFakeStore())
		assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/images/recent?limit=abc", "").Code)
		assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/images/recent?limit=501", "").Code)
		assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/images/recent?limit=-1", "").Code)
	})

	t.Run("store error", func(t *testing.T) {
		store := newFakeStore()
		store.listErr = errors.New("boom")
		s := newTestServer(t, store)
		assert.Equal(t, http.StatusInternalServerError, serve(s, http.MethodGet, "/images/recent", "").Code)
	})
}

func TestSSEWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, sse.WriteEvent("item", map[string]int{"index": 0}))
	sse.WriteSummary(preview.BatchSummary{Total: 1, Found: 1})

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t,
		"id: 1\nevent: item\ndata: {\"index\":0}\n\n"+
			"id: 2\nevent: summary\ndata: {\"total\":1,\"found\":1,\"failed\":0}\n\n",
		w.Body.String())
	assert.True(t, w.Flushed)
}
