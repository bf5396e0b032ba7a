package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/gallery/internal/config"
	"github.com/example/gallery/internal/metrics"
	"github.com/example/gallery/internal/query"
	"github.com/example/gallery/internal/search"
	"github.com/example/gallery/internal/store"
	"github.com/example/gallery/internal/swaggerui"
)

//go:embed openapi.yaml
var openapiSpec []byte

type Server struct {
	cfg      *config.Config
	repo     store.Repository
	search   *search.Service
	apiKeys  *APIKeyStore
	limits   query.Limits
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRouter wires the API onto a chi router. gatherer backs /metrics and may
// be nil to skip that route.
func NewRouter(cfg *config.Config, repo store.Repository, svc *search.Service, apiKeys *APIKeyStore, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	s := &Server{
		cfg:      cfg,
		repo:     repo,
		search:   svc,
		apiKeys:  apiKeys,
		limits:   query.Limits{Default: cfg.DefaultLimit, Max: cfg.MaxLimit},
		validate: newValidator(),
		logger:   logger.With("component", "http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(loggingMiddleware(s.logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{apiKeyHeader, "Content-Type", "Accept"},
			MaxAge:         300,
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", s.getHealthz)
	r.Get("/readyz", s.getReadyz)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get(cfg.OpenAPIPath, s.serveOpenAPI)
	r.Mount(cfg.SwaggerUIPath, swaggerui.Handler(cfg.OpenAPIPath, cfg.SwaggerUIPath))

	limiter := newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r.Route("/api", func(r chi.Router) {
		r.Use(metricsMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(false))
			r.With(limiter.middleware).Get("/search", s.searchMedia)
			r.Get("/media/{id}", s.getMedia)
			r.Get("/tags", s.listTags)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(true))
			r.With(s.requirePermissions(PermCanCreate)).Post("/media", s.createMedia)
			r.With(s.requirePermissions(PermCanUpdate)).Patch("/media/{id}", s.updateMedia)
			r.With(s.requirePermissions(PermCanDelete)).Delete("/media/{id}", s.deleteMedia)
			r.With(s.requirePermissions(PermCanRestore)).Post("/media/{id}/restore", s.restoreMedia)
		})
	})

	return r
}

func (s *Server) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiSpec)
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// envelope is the body of every /api response.
type envelope struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data,omitempty"`
	Pagination *query.Pagination `json:"pagination,omitempty"`
	Code       string            `json:"code,omitempty"`
	Message    string            `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Code: code, Message: message})
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// metricsMiddleware labels by route pattern so ids do not explode the label
// space.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
