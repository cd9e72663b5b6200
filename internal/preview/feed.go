package preview

import (
	"context"

	"github.com/jonathan/media-extractor/internal/feed"
)

// FeedItem pairs a feed entry with the preview of its page.
type FeedItem struct {
	feed.Item
	Preview *Preview `json:"preview,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// FeedResult is the outcome of resolving every item of a feed.
type FeedResult struct {
	FeedURL string     `json:"feed_url"`
	Title   string     `json:"title"`
	Items   []FeedItem `json:"items"`
}

// BatchItems returns the item outcomes in batch form.
func (r *FeedResult) BatchItems() []BatchItem {
	items := make([]BatchItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = BatchItem{URL: item.Link, Preview: item.Preview, Error: item.Error}
	}
	return items
}

// FromFeed reads the feed at feedURL and resolves the main image of up to
// limit item pages (0 for all).
func (s *Service) FromFeed(ctx context.Context, feedURL string, limit, concurrency int) (*FeedResult, error) {
	f, err := feed.Fetch(ctx, feedURL, &feed.Options{UserAgent: s.userAgent, Limit: limit})
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("feed", feedURL).Int("items", len(f.Items)).Msg("feed parsed")

	batch, err := s.FromURLs(ctx, f.Links(), concurrency)
	if err != nil {
		return nil, err
	}

	result := &FeedResult{FeedURL: feedURL, Title: f.Title, Items: make([]FeedItem, len(f.Items))}
	for i, item := range f.Items {
		result.Items[i] = FeedItem{Item: item, Preview: batch[i].Preview, Error: batch[i].Error}
	}
	return result, nil
}
