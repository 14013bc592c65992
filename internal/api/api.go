package api

import (
	"context"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/skybi/impds-proxy/internal/api/schema"
	"github.com/skybi/impds-proxy/internal/codec"
	"github.com/skybi/impds-proxy/internal/config"
	"github.com/skybi/impds-proxy/internal/search"
	"github.com/skybi/impds-proxy/internal/session"
	"github.com/skybi/impds-proxy/internal/storage"
	"net/http"
	"time"
)

// ServiceName is reported by the health endpoint
const ServiceName = "IMPDS API"

// SessionStatus reports the cached portal session; implemented by session.Manager
type SessionStatus interface {
	Current() (session.Session, bool)
}

// Service represents the proxy API service
type Service struct {
	server *http.Server

	Config   *config.Config
	Searches *search.Service
	Codec    codec.Codec
	Sessions SessionStatus
	Storage  storage.Driver

	// Gatherer is exposed on '/metrics' if set
	Gatherer prometheus.Gatherer

	// Verifier guards the search, codec and search log endpoints if set
	Verifier TokenVerifier

	StartedAt time.Time

	writer *schema.Writer
}

// Startup starts up the API in the background; unexpected server errors are sent to errs
func (service *Service) Startup(errs chan<- error) {
	server := &http.Server{
		Addr:              service.Config.ListenAddress,
		Handler:           service.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	service.server = server
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
}

// Shutdown gracefully shuts down the API, waiting for in-flight requests until ctx is done
func (service *Service) Shutdown(ctx context.Context) {
	if service.server != nil {
		if err := service.server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("could not shut down the API gracefully")
			service.server.Close()
		}
		service.server = nil
	}
}

// Handler builds the HTTP handler serving all endpoints
func (service *Service) Handler() http.Handler {
	if service.StartedAt.IsZero() {
		service.StartedAt = time.Now()
	}

	// Create the HTTP schema writer
	service.writer = &schema.Writer{
		InternalErrorHook: func(err error) {
			log.Error().Err(err).Msg("the API experienced an unexpected error")
		},
	}

	// Create the HTTP router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(hlog.NewHandler(log.Logger))
	router.Use(hlog.AccessHandler(accessLog))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RedirectSlashes)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: service.Config.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	router.NotFound(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusNotFound, schema.ErrNotFound)
	})
	router.MethodNotAllowed(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusMethodNotAllowed, schema.ErrMethodNotAllowed)
	})

	// Register the API endpoint handlers
	service.registerEndpoints(router)
	return router
}

func (service *Service) registerEndpoints(router chi.Router) {
	router.Get("/", service.EndpointIndex)
	router.Get("/health", service.EndpointHealth)
	if service.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(service.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Group(func(router chi.Router) {
		router.Use(service.MiddlewareVerifyToken)

		router.Get("/search", service.EndpointSearch)
		router.Post("/search", service.EndpointSearchBody)
		router.Get("/encrypt", service.EndpointEncrypt)
		router.Get("/decrypt", service.EndpointDecrypt)
		router.Get("/searches", service.EndpointGetSearches)
	})
}

// accessLog logs finished requests; the query string is left out as it may carry identifiers
func accessLog(request *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(request).Info().
		Str("request_id", middleware.GetReqID(request.Context())).
		Str("method", request.Method).
		Str("path", request.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("handled a request")
}
