package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careops/scheduling/internal/metrics"
)

// MetricsServer exposes the Prometheus scrape endpoint on its own listener,
// separate from the booking API, so scrapes never compete with tenant
// traffic for the API's connection pool or rate limits.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer builds the scrape server. It serves the booking and
// dispatch instruments registered on the provider (conflict counters, booking
// latency histograms, outbox pending depth). A nil provider means metrics are
// disabled; the server still starts but /metrics stays unregistered.
func NewMetricsServer(
	host string,
	port int,
	logger *slog.Logger,
	metricsProvider *metrics.Provider,
) *MetricsServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))

	if metricsProvider != nil {
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &MetricsServer{server: server, logger: logger}
}

// GetHandler returns the underlying handler so tests can drive the scrape
// endpoint without a listener.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start blocks serving scrape requests until Shutdown is called.
func (s *MetricsServer) Start(ctx context.Context) error {
	s.logger.Info("starting metrics server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	return nil
}

// Shutdown drains in-flight scrapes and stops the listener.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
