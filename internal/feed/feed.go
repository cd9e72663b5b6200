// Package feed reads RSS, Atom and JSON feeds so their item pages can be
// resolved in bulk.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultTimeout bounds a feed download.
const DefaultTimeout = 20 * time.Second

// Item is one feed entry with a page worth resolving.
type Item struct {
	Title string `json:"title,omitempty"`
	Link  string `json:"link"`
	// FeedImage is an image the feed itself declares for the item, if any.
	FeedImage string     `json:"feed_image,omitempty"`
	Published *time.Time `json:"published,omitempty"`
}

// Feed is a parsed feed reduced to its resolvable items.
type Feed struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Items []Item `json:"items"`
}

// Links returns the item links in feed order.
func (f *Feed) Links() []string {
	links := make([]string, len(f.Items))
	for i, item := range f.Items {
		links[i] = item.Link
	}
	return links
}

// Options configures feed fetching.
type Options struct {
	Client    *http.Client
	UserAgent string
	Limit     int // 0 keeps every item
}

// Error describes a feed that could not be read.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("feed error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("feed error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fetch downloads and parses the feed at feedURL.
func Fetch(ctx context.Context, feedURL string, opts *Options) (*Feed, error) {
	if opts == nil {
		opts = &Options{}
	}

	u, err := url.Parse(feedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &Error{URL: feedURL, Message: "feed URL must be http or https", Cause: err}
	}

	fp := gofeed.NewParser()
	fp.Client = opts.Client
	if fp.Client == nil {
		fp.Client = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.UserAgent != "" {
		fp.UserAgent = opts.UserAgent
	}

	parsed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &Error{URL: feedURL, Message: "error parsing feed", Cause: err}
	}

	return fromParsed(feedURL, parsed, opts.Limit), nil
}

// Parse reads a feed document already in memory.
func Parse(feedURL, content string, limit int) (*Feed, error) {
	parsed, err := gofeed.NewParser().ParseString(content)
	if err != nil {
		return nil, &Error{URL: feedURL, Message: "error parsing feed", Cause: err}
	}
	return fromParsed(feedURL, parsed, limit), nil
}

func fromParsed(feedURL string, parsed *gofeed.Feed, limit int) *Feed {
	f := &Feed{Title: parsed.Title, URL: feedURL}
	seen := make(map[string]bool)

	for _, item := range parsed.Items {
		if limit > 0 && len(f.Items) >= limit {
			break
		}
		link := strings.TrimSpace(item.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		f.Items = append(f.Items, Item{
			Title:     item.Title,
			Link:      link,
			FeedImage: ItemImage(item),
			Published: item.PublishedParsed,
		})
	}
	return f
}

// ItemImage returns the image a feed declares for an item.
// Priority: Item.Image > media:thumbnail > media:content (medium=image) > Enclosure (image/*).
// Only http/https URLs are accepted.
func ItemImage(item *gofeed.Item) string {
	if item.Image != nil && isHTTPURL(item.Image.URL) {
		return item.Image.URL
	}

	if mediaExt, ok := item.Extensions["media"]; ok {
		for _, thumb := range mediaExt["thumbnail"] {
			if u := thumb.Attrs["url"]; isHTTPURL(u) {
				return u
			}
		}
		for _, content := range mediaExt["content"] {
			if content.Attrs["medium"] == "image" {
				if u := content.Attrs["url"]; isHTTPURL(u) {
					return u
				}
			}
		}
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && isHTTPURL(enc.URL) {
			return enc.URL
		}
	}

	return ""
}

func isHTTPURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
