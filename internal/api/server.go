// Package api provides the HTTP API server and handlers for chapter generation.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chaptermark/chaptermark-server/internal/ratelimit"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
	// GeneratePerMinute limits chapter generation per client IP. Zero
	// disables limiting.
	GeneratePerMinute int
	GenerateBurst     int
	Version           string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger

	generateLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	humaConfig := huma.DefaultConfig("Chaptermark API", version)
	humaConfig.Info.Description = "Generates timestamped chapter lists from video transcripts."

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		services: services,
		router:   router,
		api:      api,
		logger:   logger,
	}
	if opts.GeneratePerMinute > 0 {
		burst := opts.GenerateBurst
		if burst < 1 {
			burst = opts.GeneratePerMinute
		}
		s.generateLimiter = ratelimit.NewWithTTL(ratelimit.PerMinute(opts.GeneratePerMinute), burst, 10*time.Minute)
	}

	s.registerHealthRoutes()
	s.registerModelRoutes()
	s.registerChapterRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.generateLimiter != nil {
		s.generateLimiter.Stop()
	}
}
