// Package app provides the dependency injection container for assembling
// application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/careops/scheduling/internal/config"
	"github.com/careops/scheduling/internal/database"
	"github.com/careops/scheduling/internal/http"
	"github.com/careops/scheduling/internal/metrics"

	idempotencyHTTP "github.com/careops/scheduling/internal/idempotency/http"
	idempotencyRepository "github.com/careops/scheduling/internal/idempotency/repository"
	idempotencyUsecase "github.com/careops/scheduling/internal/idempotency/usecase"
	outboxRepository "github.com/careops/scheduling/internal/outbox/repository"
	outboxUsecase "github.com/careops/scheduling/internal/outbox/usecase"
	schedulingHTTP "github.com/careops/scheduling/internal/scheduling/http"
	schedulingRepository "github.com/careops/scheduling/internal/scheduling/repository"
	schedulingUsecase "github.com/careops/scheduling/internal/scheduling/usecase"
)

// Container holds all application dependencies and provides methods to access
// them. Components are created lazily on first access.
type Container struct {
	config *config.Config

	logger *slog.Logger
	db     *sql.DB

	txManager database.TxManager

	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	outboxMetrics   metrics.OutboxMetrics

	appointmentRepo *schedulingRepository.PostgreSQLAppointmentRepository
	outboxRepo      *outboxRepository.PostgreSQLOutboxEventRepository
	idempotencyRepo *idempotencyRepository.PostgreSQLIdempotencyRepository

	schedulingUseCase  schedulingUsecase.UseCase
	outboxUseCase      outboxUsecase.UseCase
	idempotencyUseCase idempotencyUsecase.UseCase

	appointmentHandler *schedulingHTTP.AppointmentHandler

	httpServer    *http.Server
	metricsServer *http.MetricsServer

	mu                     sync.Mutex
	loggerInit             sync.Once
	dbInit                 sync.Once
	txManagerInit          sync.Once
	metricsProviderInit    sync.Once
	businessMetricsInit    sync.Once
	outboxMetricsInit      sync.Once
	appointmentRepoInit    sync.Once
	outboxRepoInit         sync.Once
	idempotencyRepoInit    sync.Once
	schedulingUseCaseInit  sync.Once
	outboxUseCaseInit      sync.Once
	idempotencyUseCaseInit sync.Once
	appointmentHandlerInit sync.Once
	httpServerInit         sync.Once
	metricsServerInit      sync.Once
	initErrors             map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.initErrors["db"] = fmt.Errorf("failed to connect to database: %w", err)
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// HTTPServer returns the API server instance with the full middleware chain.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server instance.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates a structured JSON logger based on the configured level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initHTTPServer creates the API server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	appointmentHandler, err := c.AppointmentHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment handler for http server: %w", err)
	}

	idempotencyUseCase, err := c.IdempotencyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency use case for http server: %w", err)
	}
	idempotencyMiddleware := idempotencyHTTP.IdempotencyMiddleware(idempotencyUseCase, logger)

	var metricsMiddleware gin.HandlerFunc
	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		if provider != nil {
			metricsMiddleware = metrics.HTTPMetricsMiddleware(
				provider.MeterProvider(), c.config.MetricsNamespace)
		}
	}

	serverConfig := http.Config{
		Host:             c.config.ServerHost,
		Port:             c.config.ServerPort,
		CORSEnabled:      c.config.CORSEnabled,
		CORSAllowOrigins: c.config.CORSAllowOrigins,
		RateLimitEnabled: c.config.RateLimitEnabled,
		RateLimitRPS:     c.config.RateLimitRequestsPerSec,
		RateLimitBurst:   c.config.RateLimitBurst,
	}

	return http.NewServer(
		db,
		serverConfig,
		appointmentHandler,
		idempotencyMiddleware,
		metricsMiddleware,
		logger,
	), nil
}
