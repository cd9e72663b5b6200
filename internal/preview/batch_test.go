package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromURLs_OrderAndErrors(t *testing.T) {
	server := htmlServer(t, map[string]string{
		"/a": `<meta property="og:image" content="/a.png">`,
		"/b": bareHTML,
		"/c": `<link rel="image_src" href="https://cdn.example.com/c.png">`,
	})

	urls := []string{
		server.URL + "/a",
		"mailto:someone@example.com",
		server.URL + "/b",
		server.URL + "/c",
	}

	s := NewService(Config{})
	items, err := s.FromURLs(context.Background(), urls, 2)
	require.NoError(t, err)
	require.Len(t, items, 4)

	for i, u := range urls {
		assert.Equal(t, u, items[i].URL)
	}

	require.NotNil(t, items[0].Preview)
	assert.Equal(t, server.URL+"/a.png", items[0].Preview.ImageURL)

	assert.Nil(t, items[1].Preview)
	assert.Contains(t, items[1].Error, "scheme")

	require.NotNil(t, items[2].Preview)
	assert.False(t, items[2].Preview.Found)

	require.NotNil(t, items[3].Preview)
	assert.Equal(t, "https://cdn.example.com/c.png", items[3].Preview.ImageURL)

	summary := Summarize(items)
	assert.Equal(t, BatchSummary{Total: 4, Found: 2, Failed: 1}, summary)
}

func TestFromURLs_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = w.Write([]byte(bareHTML))
	}))
	defer server.Close()

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = server.URL + "/"
	}

	s := NewService(Config{})
	items, err := s.FromURLs(context.Background(), urls, 3)
	require.NoError(t, err)
	assert.Len(t, items, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestFromURLs_Empty(t *testing.T) {
	s := NewService(Config{})
	items, err := s.FromURLs(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFromURLs_CanceledContext(t *testing.T) {
	server := htmlServer(t, map[string]string{"/": bareHTML})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewService(Config{})
	items, err := s.FromURLs(ctx, []string{server.URL + "/", server.URL + "/"}, 1)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.NotEmpty(t, item.Error)
	}
}

func TestFromURLsWithProgress(t *testing.T) {
	server := htmlServer(t, map[string]string{
		"/a": `<meta property="og:image" content="/a.png">`,
		"/b": bareHTML,
	})
	urls := []string{server.URL + "/a", server.URL + "/b", "bad://x"}

	seen := make(map[int]BatchItem)
	s := NewService(Config{})
	items, err := s.FromURLsWithProgress(context.Background(), urls, 3, func(index int, item BatchItem) {
		seen[index] = item
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)
	for i := range urls {
		assert.Equal(t, items[i], seen[i])
	}
	assert.NotEmpty(t, seen[2].Error)
}
