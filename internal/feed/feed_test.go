package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>Example News</title>
  <link>https://news.example.com</link>
  <item>
    <title>First</title>
    <link>https://news.example.com/first</link>
    <media:thumbnail url="https://cdn.example.com/first.jpg"/>
  </item>
  <item>
    <title>Second</title>
    <link>https://news.example.com/second</link>
    <enclosure url="https://cdn.example.com/second.png" type="image/png" length="1"/>
  </item>
  <item>
    <title>Duplicate</title>
    <link>https://news.example.com/first</link>
  </item>
  <item>
    <title>No link</title>
  </item>
  <item>
    <title>Third</title>
    <link>https://news.example.com/third</link>
  </item>
</channel>
</rss>`

func TestParse(t *testing.T) {
	f, err := Parse("https://news.example.com/rss", rss, 0)
	require.NoError(t, err)

	assert.Equal(t, "Example News", f.Title)
	assert.Equal(t, []string{
		"https://news.example.com/first",
		"https://news.example.com/second",
		"https://news.example.com/third",
	}, f.Links())

	assert.Equal(t, "https://cdn.example.com/first.jpg", f.Items[0].FeedImage)
	assert.Equal(t, "https://cdn.example.com/second.png", f.Items[1].FeedImage)
	assert.Empty(t, f.Items[2].FeedImage)
}

func TestParse_Limit(t *testing.T) {
	f, err := Parse("https://news.example.com/rss", rss, 2)
	require.NoError(t, err)
	assert.Len(t, f.Items, 2)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("https://news.example.com/rss", "not a feed", 0)
	require.Error(t, err)

	var feedErr *Error
	assert.ErrorAs(t, err, &feedErr)
}

func TestFetch(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer server.Close()

	f, err := Fetch(context.Background(), server.URL, &Options{UserAgent: "FeedTest/1.0", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "FeedTest/1.0", gotUA)
	assert.Equal(t, server.URL, f.URL)
	assert.Len(t, f.Items, 1)
}

func TestFetch_Errors(t *testing.T) {
	_, err := Fetch(context.Background(), "file:///etc/passwd", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http or https")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err = Fetch(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing feed")
}

func TestItemImage(t *testing.T) {
	tests := []struct {
		name     string
		item     *gofeed.Item
		expected string
	}{
		{
			name:     "item image wins",
			item:     &gofeed.Item{Image: &gofeed.Image{URL: "https://cdn.example.com/a.jpg"}},
			expected: "https://cdn.example.com/a.jpg",
		},
		{
			name: "media content with image medium",
			item: &gofeed.Item{Extensions: ext.Extensions{"media": {"content": {
				{Attrs: map[string]string{"url": "https://cdn.example.com/v.mp4", "medium": "video"}},
				{Attrs: map[string]string{"url": "https://cdn.example.com/c.jpg", "medium": "image"}},
			}}}},
			expected: "https://cdn.example.com/c.jpg",
		},
		{
			name:     "non-image enclosure ignored",
			item:     &gofeed.Item{Enclosures: []*gofeed.Enclosure{{URL: "https://cdn.example.com/a.mp3", Type: "audio/mpeg"}}},
			expected: "",
		},
		{
			name:     "non-http image ignored",
			item:     &gofeed.Item{Image: &gofeed.Image{URL: "data:image/png;base64,AAAA"}},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ItemImage(tt.item))
		})
	}
}
