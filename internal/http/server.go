package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	schedulingHTTP "github.com/careops/scheduling/internal/scheduling/http"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host             string
	Port             int
	CORSEnabled      bool
	CORSAllowOrigins string
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Server represents the HTTP API server.
type Server struct {
	server *http.Server
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates the API server and wires the middleware chain: recovery,
// request ids, logging, optional metrics and CORS, then the tenant seam, rate
// limiting and the idempotency ledger on the mutating routes.
func NewServer(
	db *sql.DB,
	config Config,
	appointmentHandler *schedulingHTTP.AppointmentHandler,
	idempotencyMiddleware gin.HandlerFunc,
	metricsMiddleware gin.HandlerFunc,
	logger *slog.Logger,
) *Server {
	server := &Server{
		db:     db,
		logger: logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))

	if metricsMiddleware != nil {
		router.Use(metricsMiddleware)
	}

	if corsMiddleware := createCORSMiddleware(
		config.CORSEnabled, config.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", server.healthHandler)
	router.GET("/ready", server.readinessHandler)

	v1 := router.Group("/v1")
	v1.Use(TenantMiddleware(logger))

	if config.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(config.RateLimitRPS, config.RateLimitBurst, logger))
	}

	if appointmentHandler != nil {
		mutating := []gin.HandlerFunc{}
		if idempotencyMiddleware != nil {
			mutating = append(mutating, idempotencyMiddleware)
		}

		v1.POST("/appointments", append(mutating, appointmentHandler.CreateHandler)...)
		v1.POST("/appointments/:id/reschedule", append(mutating, appointmentHandler.RescheduleHandler)...)
		v1.POST("/appointments/:id/cancel", append(mutating, appointmentHandler.CancelHandler)...)
		v1.GET("/appointments/:id", appointmentHandler.GetHandler)
		v1.GET("/appointments", appointmentHandler.ListHandler)
	}

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can reach its dependencies.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			ready = false
		} else {
			components["database"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
