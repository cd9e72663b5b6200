// Package server provides the HTTP REST API for main-image resolution.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/media-extractor/internal/config"
	"github.com/jonathan/media-extractor/internal/db"
	"github.com/jonathan/media-extractor/internal/fetch"
	"github.com/jonathan/media-extractor/internal/logging"
	"github.com/jonathan/media-extractor/internal/metrics"
	"github.com/jonathan/media-extractor/internal/preview"
	"github.com/jonathan/media-extractor/internal/server/middleware"
	"github.com/jonathan/media-extractor/internal/server/ratelimit"
)

// MaxRequestBytes caps JSON request bodies. POST /resolve carries whole pages.
const MaxRequestBytes = 10 << 20

// Store is the page cache the server reads and writes. *db.DB satisfies it.
type Store interface {
	preview.Store
	ListRecentImages(ctx context.Context, limit int) ([]db.ResolvedImage, error)
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	db          *db.DB
	store       Store
	previews    *preview.Service
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	logger      *zerolog.Logger
	concurrency int
}

// Config holds server configuration
type Config struct {
	Port        int
	DatabaseURL string
	App         config.Config
	JWT         *config.JWTConfig // nil leaves the API open
	RateLimit   *ratelimit.Config // nil loads RATE_LIMIT_* from the environment
	Renderer    fetch.Renderer    // nil uses headless Chrome
	Logger      *zerolog.Logger
}

// New creates a new server instance. Without a DatabaseURL the server runs
// with no page cache.
func New(cfg Config) (*Server, error) {
	logger := logging.OrNop(cfg.Logger)

	var database *db.DB
	var store Store
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		store = database
	} else {
		logger.Warn().Msg("no database configured; page cache disabled")
	}

	s := newServer(cfg, store)
	s.db = database
	return s, nil
}

// newServer wires routes and middleware around store, which may be nil.
func newServer(cfg Config, store Store) *Server {
	logger := logging.OrNop(cfg.Logger)
	app := cfg.App.MergeWithDefaults(config.Defaults())

	rateCfg := cfg.RateLimit
	if rateCfg == nil {
		rateCfg = ratelimit.LoadConfig()
	}

	s := &Server{
		store:       store,
		rateLimiter: ratelimit.NewLimiter(rateCfg),
		logger:      logger,
		concurrency: app.Concurrency,
	}

	s.previews = preview.NewService(preview.Config{
		Store: store,
		FetchOptions: &fetch.Options{
			Timeout:      app.Timeout(),
			UserAgent:    app.UserAgent,
			MaxBodyBytes: app.MaxBodyBytes,
		},
		CacheTTL:       app.CacheTTL(),
		SkipCache:      app.SkipCache,
		UseBrowser:     app.UseBrowser,
		BrowserTimeout: app.BrowserTimeout(),
		Renderer:       cfg.Renderer,
		Logger:         logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metricsHandler())

	mux.HandleFunc("GET /image", s.handleImage)
	mux.HandleFunc("POST /resolve", s.handleResolve)
	mux.HandleFunc("POST /resolve/batch", s.handleBatch)
	mux.HandleFunc("POST /resolve/batch/stream", s.handleBatchStream)
	mux.HandleFunc("POST /resolve/feed", s.handleFeed)
	mux.HandleFunc("GET /images/recent", s.handleRecentImages)

	var handler http.Handler = mux
	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
		handler = middleware.AuthMiddleware(s.jwtService.AsTokenValidator(), "/health", "/metrics")(handler)
	}
	s.handler = s.withRateLimit(s.withLogging(s.withCORS(handler)))

	port := cfg.Port
	if port == 0 {
		port = app.Port
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // batches fetch many pages
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		s.close()
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.close()
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.close()
	s.logger.Info().Msg("server stopped")
	return nil
}

func (s *Server) close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging and request metrics
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status), elapsed.Seconds())
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// routeLabel keeps the metrics path label bounded to known routes.
func routeLabel(path string) string {
	switch path {
	case "/health", "/metrics", "/image", "/resolve", "/resolve/batch",
		"/resolve/batch/stream", "/resolve/feed", "/images/recent":
		return path
	}
	return "other"
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("error encoding JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to its status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}
	s.errorResponse(w, status, err.Error())
}

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn().
		Str("client", clientID).
		Int("limit", info.Limit).
		Time("reset", info.ResetTime).
		Msg("rate limit exceeded")

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
