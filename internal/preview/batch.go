package preview

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/media-extractor/internal/metrics"
)

// DefaultConcurrency is used when FromURLs is given a non-positive limit.
const DefaultConcurrency = 4

// BatchItem is the outcome for one URL of a batch.
type BatchItem struct {
	URL     string   `json:"url"`
	Preview *Preview `json:"preview,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Total  int `json:"total"`
	Found  int `json:"found"`
	Failed int `json:"failed"`
}

// ProgressCallback receives each batch item as it completes. Calls are
// serialized; index is the item's position in the input.
type ProgressCallback func(index int, item BatchItem)

// FromURLs runs FromURL for every URL with at most concurrency in flight.
// Items come back in input order. A failing URL records its error in its
// item and does not stop the others; the returned error is only set when
// ctx ends before the batch completes.
func (s *Service) FromURLs(ctx context.Context, urls []string, concurrency int) ([]BatchItem, error) {
	return s.FromURLsWithProgress(ctx, urls, concurrency, nil)
}

// FromURLsWithProgress is FromURLs with a per-item callback.
func (s *Service) FromURLsWithProgress(ctx context.Context, urls []string, concurrency int, onItem ProgressCallback) ([]BatchItem, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	metrics.RecordBatch(len(urls))

	items := make([]BatchItem, len(urls))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, u := range urls {
		items[i].URL = u
		g.Go(func() error {
			p, err := s.FromURL(ctx, u)
			if err != nil {
				s.logger.Debug().Err(err).Str("url", u).Msg("batch item failed")
				items[i].Error = err.Error()
			} else {
				items[i].Preview = p
			}

			if onItem != nil {
				mu.Lock()
				onItem(i, items[i])
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return items, ctx.Err()
}

// Summarize counts found and failed items.
func Summarize(items []BatchItem) BatchSummary {
	summary := BatchSummary{Total: len(items)}
	for _, item := range items {
		switch {
		case item.Error != "":
			summary.Failed++
		case item.Preview != nil && item.Preview.Found:
			summary.Found++
		}
	}
	return summary
}
