package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/media-extractor/internal/db"
	"github.com/jonathan/media-extractor/internal/preview"
	"github.com/jonathan/media-extractor/internal/types"
)

// HealthResponse represents the response for /health
type HealthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"` // disabled, ok or unavailable
}

// BatchResponse represents the response for /resolve/batch
type BatchResponse struct {
	Items   []preview.BatchItem  `json:"items"`
	Summary preview.BatchSummary `json:"summary"`
}

// FeedResponse represents the response for /resolve/feed
type FeedResponse struct {
	*preview.FeedResult
	Summary preview.BatchSummary `json:"summary"`
}

// RecentImagesResponse represents the response for /images/recent
type RecentImagesResponse struct {
	Images []db.ResolvedImage `json:"images"`
}

// streamItem is the payload of an "item" event on /resolve/batch/stream.
type streamItem struct {
	Index int `json:"index"`
	preview.BatchItem
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.jsonResponse(w, http.StatusOK, HealthResponse{Status: "ok", Cache: "disabled"})
		return
	}

	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health check: database ping failed")
		s.jsonResponse(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Cache: "unavailable"})
		return
	}
	s.jsonResponse(w, http.StatusOK, HealthResponse{Status: "ok", Cache: "ok"})
}

// handleImage fetches the page named by ?url= and returns its preview
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		s.writeError(w, &ErrValidation{Field: "url", Message: "query parameter is required"})
		return
	}

	p, err := s.previews.FromURL(r.Context(), pageURL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

// handleResolve resolves HTML supplied in the request body
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req types.ResolveRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	s.jsonResponse(w, http.StatusOK, s.previews.FromHTML(req.URL, req.HTML))
}

// handleBatch fetches and resolves several pages
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBatch(w, r)
	if !ok {
		return
	}

	items, err := s.previews.FromURLs(r.Context(), req.URLs, s.batchConcurrency(req.Concurrency))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, BatchResponse{Items: items, Summary: preview.Summarize(items)})
}

// handleBatchStream resolves several pages and streams each item via SSE
// as it completes, followed by a summary event
func (s *Server) handleBatchStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBatch(w, r)
	if !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Debug().Int("urls", len(req.URLs)).Msg("starting streaming batch")

	items, err := s.previews.FromURLsWithProgress(r.Context(), req.URLs, s.batchConcurrency(req.Concurrency),
		func(index int, item preview.BatchItem) {
			if err := sse.WriteEvent("item", streamItem{Index: index, BatchItem: item}); err != nil {
				s.logger.Debug().Err(err).Msg("error writing SSE event")
			}
		})
	if err != nil {
		sse.WriteError(err.Error())
		return
	}

	sse.WriteSummary(preview.Summarize(items))
}

// handleFeed reads a feed and resolves the pages of its items
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	var req types.FeedRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = types.MaxBatchURLs
	}

	result, err := s.previews.FromFeed(r.Context(), req.FeedURL, limit, s.batchConcurrency(req.Concurrency))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, FeedResponse{FeedResult: result, Summary: preview.Summarize(result.BatchItems())})
}

// handleRecentImages lists the most recently resolved pages from the cache
func (s *Server) handleRecentImages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, &ErrCacheUnavailable{})
		return
	}

	var query types.RecentImagesQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, &ErrValidation{Field: "limit", Message: "must be an integer"})
			return
		}
		query.Limit = limit
	}
	if err := query.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return
	}

	images, err := s.store.ListRecentImages(r.Context(), query.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if images == nil {
		images = []db.ResolvedImage{}
	}
	s.jsonResponse(w, http.StatusOK, RecentImagesResponse{Images: images})
}

func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request) (*types.BatchRequest, bool) {
	var req types.BatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, validationError(err))
		return nil, false
	}
	return &req, true
}

func (s *Server) batchConcurrency(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.concurrency
}
