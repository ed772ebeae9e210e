// Package integration provides end-to-end integration tests for the
// appointment scheduling API against a real PostgreSQL database.
package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/scheduling/internal/app"
	"github.com/careops/scheduling/internal/config"
	schedulingDTO "github.com/careops/scheduling/internal/scheduling/http/dto"
	"github.com/careops/scheduling/internal/testutil"
)

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	tenantID  uuid.UUID
}

// makeRequest performs an HTTP request with the tenant header and returns the
// response and body. An empty idempotencyKey omits the header.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
	idempotencyKey string,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("X-Tenant-Id", ctx.tenantID.String())

	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// setupIntegrationTest initializes all components for integration testing.
func setupIntegrationTest(t *testing.T) *integrationTestContext {
	t.Helper()

	testutil.SkipIfNoPostgres(t)

	gin.SetMode(gin.TestMode)

	db := testutil.SetupPostgresDB(t)

	cfg := &config.Config{
		DBConnectionString:       testutil.GetPostgresTestDSN(),
		DBMaxOpenConnections:     10,
		DBMaxIdleConnections:     5,
		DBConnMaxLifetime:        time.Hour,
		ServerHost:               "localhost",
		ServerPort:               8080,
		LogLevel:                 "error",
		WorkerInterval:           time.Second,
		WorkerBatchSize:          100,
		WorkerMaxAttempts:        3,
		WorkerLeaseTTL:           time.Minute,
		IdempotencyPendingTTL:    time.Minute,
		IdempotencySweepInterval: time.Minute,
		IdempotencySweepLimit:    100,
	}

	container := app.NewContainer(cfg)

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	testServer := httptest.NewServer(httpSrv.GetHandler())

	testCtx := &integrationTestContext{
		container: container,
		db:        db,
		server:    testServer,
		tenantID:  uuid.Must(uuid.NewV7()),
	}

	t.Cleanup(func() {
		testServer.Close()
		require.NoError(t, container.Shutdown(context.Background()))
		testutil.TeardownDB(t, db)
	})

	return testCtx
}

// createBody builds a valid appointment creation request body.
func createBody(clinicianID uuid.UUID, startsAt, endsAt time.Time) schedulingDTO.CreateAppointmentRequest {
	return schedulingDTO.CreateAppointmentRequest{
		ClinicianID: clinicianID.String(),
		PatientID:   uuid.Must(uuid.NewV7()).String(),
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		ActorID:     uuid.Must(uuid.NewV7()).String(),
	}
}

func TestBookingLifecycle(t *testing.T) {
	testCtx := setupIntegrationTest(t)

	clinicianID := uuid.Must(uuid.NewV7())
	baseTime := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	// Book the initial slot
	resp, body := testCtx.makeRequest(t, http.MethodPost, "/v1/appointments",
		createBody(clinicianID, baseTime, baseTime.Add(30*time.Minute)), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var first schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &first))
	assert.Equal(t, "scheduled", first.Status)

	// An overlapping booking for the same clinician is rejected with the
	// colliding reservation listed
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments",
		createBody(clinicianID, baseTime.Add(15*time.Minute), baseTime.Add(45*time.Minute)), "")
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	var conflictResp struct {
		Error          string   `json:"error"`
		ConflictingIDs []string `json:"conflicting_ids"`
	}
	require.NoError(t, json.Unmarshal(body, &conflictResp))
	assert.Equal(t, "conflict", conflictResp.Error)
	assert.Contains(t, conflictResp.ConflictingIDs, first.ID)

	// Intervals are half-open, a booking starting exactly at the end is fine
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments",
		createBody(clinicianID, baseTime.Add(30*time.Minute), baseTime.Add(60*time.Minute)), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var second schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &second))

	// Fetch a single appointment
	resp, body = testCtx.makeRequest(t, http.MethodGet, "/v1/appointments/"+first.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// List the clinician's calendar for the day
	resp, body = testCtx.makeRequest(t, http.MethodGet,
		"/v1/appointments?clinician_id="+clinicianID.String()+
			"&from="+baseTime.Add(-time.Hour).Format(time.RFC3339)+
			"&to="+baseTime.Add(2*time.Hour).Format(time.RFC3339),
		nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var list schedulingDTO.ListAppointmentsResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Data, 2)

	// Rescheduling onto an occupied slot is rejected
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments/"+first.ID+"/reschedule",
		schedulingDTO.RescheduleAppointmentRequest{
			StartsAt: baseTime.Add(30 * time.Minute),
			EndsAt:   baseTime.Add(60 * time.Minute),
			ActorID:  uuid.Must(uuid.NewV7()).String(),
		}, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	// Rescheduling onto a free slot succeeds
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments/"+first.ID+"/reschedule",
		schedulingDTO.RescheduleAppointmentRequest{
			StartsAt: baseTime.Add(2 * time.Hour),
			EndsAt:   baseTime.Add(2*time.Hour + 30*time.Minute),
			ActorID:  uuid.Must(uuid.NewV7()).String(),
		}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var rescheduled schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &rescheduled))
	assert.True(t, rescheduled.StartsAt.Equal(baseTime.Add(2*time.Hour)))

	// Cancelling frees the slot
	reason := "patient request"
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments/"+second.ID+"/cancel",
		schedulingDTO.CancelAppointmentRequest{
			Reason:  &reason,
			ActorID: uuid.Must(uuid.NewV7()).String(),
		}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var cancelled schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)

	// The freed slot can be booked again
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments",
		createBody(clinicianID, baseTime.Add(30*time.Minute), baseTime.Add(60*time.Minute)), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
}

func TestOutboxDispatch(t *testing.T) {
	testCtx := setupIntegrationTest(t)

	clinicianID := uuid.Must(uuid.NewV7())
	baseTime := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	resp, body := testCtx.makeRequest(t, http.MethodPost, "/v1/appointments",
		createBody(clinicianID, baseTime, baseTime.Add(30*time.Minute)), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments/"+created.ID+"/cancel",
		schedulingDTO.CancelAppointmentRequest{
			ActorID: uuid.Must(uuid.NewV7()).String(),
		}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Every committed mutation left an event behind
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, testCtx.db, testCtx.tenantID, "appointment.created"))
	assert.Equal(t, 1, testutil.CountOutboxEvents(t, testCtx.db, testCtx.tenantID, "appointment.cancelled"))

	outboxUseCase, err := testCtx.container.OutboxUseCase()
	require.NoError(t, err)

	processed, err := outboxUseCase.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	// A second pass finds nothing claimable
	processed, err = outboxUseCase.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestIdempotentReplay(t *testing.T) {
	testCtx := setupIntegrationTest(t)

	clinicianID := uuid.Must(uuid.NewV7())
	baseTime := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	key := uuid.Must(uuid.NewV7()).String()
	requestBody := createBody(clinicianID, baseTime, baseTime.Add(30*time.Minute))

	// First request executes and stores the response
	resp, body := testCtx.makeRequest(t, http.MethodPost, "/v1/appointments", requestBody, key)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var first schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &first))

	// Retrying with the same key replays the stored response without booking again
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments", requestBody, key)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "true", resp.Header.Get("Idempotency-Replayed"))

	var replayed schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &replayed))
	assert.Equal(t, first.ID, replayed.ID)

	var count int
	require.NoError(t, testCtx.db.QueryRow(
		`SELECT COUNT(*) FROM appointments WHERE tenant_id = $1`, testCtx.tenantID,
	).Scan(&count))
	assert.Equal(t, 1, count)

	// Reusing the key with a different body is rejected
	otherBody := createBody(clinicianID, baseTime.Add(time.Hour), baseTime.Add(90*time.Minute))
	resp, body = testCtx.makeRequest(t, http.MethodPost, "/v1/appointments", otherBody, key)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
}

func TestTenantIsolation(t *testing.T) {
	testCtx := setupIntegrationTest(t)

	clinicianID := uuid.Must(uuid.NewV7())
	baseTime := time.Now().Add(24 * time.Hour).Truncate(time.Minute)

	resp, body := testCtx.makeRequest(t, http.MethodPost, "/v1/appointments",
		createBody(clinicianID, baseTime, baseTime.Add(30*time.Minute)), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created schedulingDTO.AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &created))

	// A different tenant can book the same clinician id and interval, and
	// cannot see the other tenant's appointment.
	otherTenant := &integrationTestContext{
		container: testCtx.container,
		db:        testCtx.db,
		server:    testCtx.server,
		tenantID:  uuid.Must(uuid.NewV7()),
	}

	resp, body = otherTenant.makeRequest(t, http.MethodPost, "/v1/appointments",
		createBody(clinicianID, baseTime, baseTime.Add(30*time.Minute)), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = otherTenant.makeRequest(t, http.MethodGet, "/v1/appointments/"+created.ID, nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}
