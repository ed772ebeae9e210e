package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/scheduling/internal/httputil"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// createTestServer creates a test server with a discarding logger.
func createTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(nil, Config{Host: "localhost", Port: 8080}, nil, nil, nil, logger)
}

func TestHealthHandler(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	server.healthHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessHandler_NotReady_NilDB(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

	server.readinessHandler(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "not_ready", response["status"])

	components, ok := response["components"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "error", components["database"])
}

func TestCustomLoggerMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenantMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	setup := func() (*gin.Engine, *uuid.UUID) {
		var captured uuid.UUID
		router := gin.New()
		router.Use(TenantMiddleware(logger))
		router.GET("/test", func(c *gin.Context) {
			tenantID, ok := httputil.GetTenantID(c.Request.Context())
			require.True(t, ok)
			captured = tenantID
			c.JSON(http.StatusOK, gin.H{"message": "test"})
		})
		return router, &captured
	}

	t.Run("Success_ResolvesTenant", func(t *testing.T) {
		router, captured := setup()
		tenantID := uuid.Must(uuid.NewV7())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(httputil.TenantHeader, tenantID.String())
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, *captured)
	})

	t.Run("Error_MissingHeader", func(t *testing.T) {
		router, _ := setup()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvalidHeader", func(t *testing.T) {
		router, _ := setup()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(httputil.TenantHeader, "not-a-uuid")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tenantID := uuid.Must(uuid.NewV7())

	router := gin.New()
	router.Use(TenantMiddleware(logger))
	router.Use(RateLimitMiddleware(1, 1, logger))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	request := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(httputil.TenantHeader, tenantID.String())
		router.ServeHTTP(w, req)
		return w
	}

	// Burst of 1: first request passes, second is throttled
	assert.Equal(t, http.StatusOK, request().Code)

	throttled := request()
	assert.Equal(t, http.StatusTooManyRequests, throttled.Code)
	assert.NotEmpty(t, throttled.Header().Get("Retry-After"))

	// A different tenant gets its own bucket
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(httputil.TenantHeader, uuid.Must(uuid.NewV7()).String())
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"https://a.example.com"}, parseOrigins("https://a.example.com"))
	assert.Equal(t,
		[]string{"https://a.example.com", "https://b.example.com"},
		parseOrigins(" https://a.example.com , https://b.example.com "))
}

func TestRouter_HealthEndpoints(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.GetHandler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	server.GetHandler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsServer_NoProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewMetricsServer("localhost", 9090, logger, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	server.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
