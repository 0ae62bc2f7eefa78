package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/techwithparamesh/applyn-sub004/pkg/billing"
	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
	"github.com/techwithparamesh/applyn-sub004/pkg/stats"
	"github.com/techwithparamesh/applyn-sub004/pkg/storage"
)

// newTestServer wires the full stack over a fresh in-memory SQLite storage.
func newTestServer(t *testing.T) (*Server, *storage.GormStorage) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")
	require.NoError(t, storage.ConfigurePool(db, storage.MaxOpenConns(1), storage.MaxIdleConns(1)))

	s := storage.NewGormStorage(db)
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")

	history := stats.NewGormStore(db)
	require.NoError(t, history.Migrate(context.Background()), "migrate stats schema")

	srv := NewServer(queue.New(s), s, billing.NewService(s), history, zap.NewNop())
	return srv, s
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func createTestApp(t *testing.T, s *storage.GormStorage) *core.App {
	t.Helper()
	app := &core.App{
		OwnerID:     "owner-1",
		Name:        "storefront",
		PackageName: "com.applyn.storefront",
	}
	require.NoError(t, s.CreateApp(context.Background(), app))
	return app
}

// ──────────────────────────────────────────────────────────────────────────────
// Apps
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateApp_ReturnsCreated(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps", createAppRequest{
		OwnerID:     "owner-1",
		Name:        "storefront",
		PackageName: "com.applyn.storefront",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var app core.App
	decodeBody(t, rec, &app)
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, "owner-1", app.OwnerID)
	assert.Equal(t, "android", app.Platform)
	assert.Equal(t, "free", app.Plan)
}

func TestCreateApp_RejectsMissingOwner(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps", createAppRequest{Name: "storefront"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateApp_RejectsBadPackageName(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps", createAppRequest{
		OwnerID:     "owner-1",
		PackageName: "not a package!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Error, "package name")
}

func TestCreateApp_RejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetApp_RoundTrip(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	rec := doRequest(t, srv, http.MethodGet, "/v1/apps/"+app.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got core.App
	decodeBody(t, rec, &got)
	assert.Equal(t, app.ID, got.ID)
	assert.Equal(t, "com.applyn.storefront", got.PackageName)
}

func TestGetApp_Missing(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/apps/app-unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Builds
// ──────────────────────────────────────────────────────────────────────────────

func TestEnqueueBuild_Accepted(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps/"+app.ID+"/builds", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job core.BuildJob
	decodeBody(t, rec, &job)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, app.ID, job.AppID)
	assert.Equal(t, core.StatusQueued, job.Status)
	assert.Equal(t, core.DefaultMaxAttempts, job.MaxAttempts)
}

func TestEnqueueBuild_UnknownApp(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps/app-unknown/builds", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueBuild_MaxAttemptsOverride(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps/"+app.ID+"/builds", enqueueBuildRequest{MaxAttempts: 5})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job core.BuildJob
	decodeBody(t, rec, &job)
	assert.Equal(t, 5, job.MaxAttempts)
}

func TestListBuilds_NewestFirst(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)
	for i := 0; i < 3; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/v1/apps/"+app.ID+"/builds", nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/v1/apps/"+app.ID+"/builds", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp buildListResponse
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Builds, 3)

	rec = doRequest(t, srv, http.MethodGet, "/v1/apps/"+app.ID+"/builds?limit=2", nil)
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Builds, 2)
}

func TestListBuilds_RejectsBadLimit(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	rec := doRequest(t, srv, http.MethodGet, "/v1/apps/"+app.ID+"/builds?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBuild_RoundTrip(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	rec := doRequest(t, srv, http.MethodPost, "/v1/apps/"+app.ID+"/builds", nil)
	var job core.BuildJob
	decodeBody(t, rec, &job)

	rec = doRequest(t, srv, http.MethodGet, "/v1/builds/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got core.BuildJob
	decodeBody(t, rec, &got)
	assert.Equal(t, job.ID, got.ID)
}

func TestGetBuild_Missing(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/builds/job-unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Ops
// ──────────────────────────────────────────────────────────────────────────────

func TestStats_CountsByStatus(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)
	for i := 0; i < 2; i++ {
		doRequest(t, srv, http.MethodPost, "/v1/apps/"+app.ID+"/builds", nil)
	}

	rec := doRequest(t, srv, http.MethodGet, "/v1/ops/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats core.BuildStats
	decodeBody(t, rec, &stats)
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(0), stats.Running)
}

func TestSearchBuilds_FiltersByStatus(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)
	for i := 0; i < 2; i++ {
		doRequest(t, srv, http.MethodPost, "/v1/apps/"+app.ID+"/builds", nil)
	}

	claimed, _, err := srv.queue.ClaimNext(context.Background(), "builder-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	rec := doRequest(t, srv, http.MethodGet, "/v1/ops/builds?status=running", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp buildListResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Builds, 1)
	assert.Equal(t, claimed.ID, resp.Builds[0].ID)
	assert.Equal(t, int64(1), resp.Total)
}

func TestStatsHistory_ReturnsBuckets(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := time.Now().Truncate(time.Minute)
	require.NoError(t, srv.history.AddCounters(context.Background(), ts, 4, 1, 2))

	rec := doRequest(t, srv, http.MethodGet, "/v1/ops/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Buckets, 1)
	assert.Equal(t, int64(4), resp.Buckets[0].Succeeded)
	assert.Equal(t, int64(1), resp.Buckets[0].Failed)
	assert.Equal(t, int64(2), resp.Buckets[0].Requeued)
}

func TestStatsHistory_SinceBoundExcludesOldBuckets(t *testing.T) {
	srv, _ := newTestServer(t)

	old := time.Now().Add(-48 * time.Hour).Truncate(time.Minute)
	require.NoError(t, srv.history.AddCounters(context.Background(), old, 9, 0, 0))

	// Default window is the last 24 hours.
	rec := doRequest(t, srv, http.MethodGet, "/v1/ops/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	decodeBody(t, rec, &resp)
	assert.Empty(t, resp.Buckets)

	since := old.Add(-time.Hour).Format(time.RFC3339)
	rec = doRequest(t, srv, http.MethodGet, "/v1/ops/history?since="+since, nil)
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Buckets, 1)
}

func TestStatsHistory_RejectsBadTimestamp(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/ops/history?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────────────────────────────────

func TestCreatePayment_ReturnsCreated(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	rec := doRequest(t, srv, http.MethodPost, "/v1/payments", createPaymentRequest{
		OwnerID:     app.OwnerID,
		AppID:       app.ID,
		Plan:        "pro",
		AmountCents: 4900,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p core.Payment
	decodeBody(t, rec, &p)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, core.PaymentPending, p.Status)
	assert.Equal(t, "USD", p.Currency)
}

func TestCreatePayment_RejectsZeroAmount(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/payments", createPaymentRequest{
		OwnerID: "owner-1",
		Plan:    "pro",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPayment_Missing(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/payments/pay-unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentWebhook_SettlesAndUpgradesOnce(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	p := &core.Payment{OwnerID: app.OwnerID, AppID: app.ID, Plan: "pro", AmountCents: 4900}
	require.NoError(t, srv.billing.CreatePayment(context.Background(), p))

	hook := webhookRequest{PaymentID: p.ID, Status: "completed", ProviderPaymentID: "ch_123"}

	rec := doRequest(t, srv, http.MethodPost, "/v1/payments/webhook", hook)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp webhookResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Updated)

	upgraded, err := s.GetApp(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "pro", upgraded.Plan)

	// Provider redelivery: absorbed, nothing re-applied.
	rec = doRequest(t, srv, http.MethodPost, "/v1/payments/webhook", hook)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Updated)

	settled, err := srv.billing.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentCompleted, settled.Status)
	require.NotNil(t, settled.EntitlementsAppliedAt)
}

func TestPaymentWebhook_UnknownPaymentStaysQuiet(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/payments/webhook", webhookRequest{
		PaymentID: "pay-unknown",
		Status:    "completed",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp webhookResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Updated)
}

func TestPaymentWebhook_NonFinalStatusStaysQuiet(t *testing.T) {
	srv, s := newTestServer(t)
	app := createTestApp(t, s)

	p := &core.Payment{OwnerID: app.OwnerID, AppID: app.ID, Plan: "pro", AmountCents: 4900}
	require.NoError(t, srv.billing.CreatePayment(context.Background(), p))

	rec := doRequest(t, srv, http.MethodPost, "/v1/payments/webhook", webhookRequest{
		PaymentID: p.ID,
		Status:    "processing",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp webhookResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Updated)

	unchanged, err := srv.billing.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPending, unchanged.Status)
}

func TestPaymentWebhook_RejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/payments/webhook", "{oops")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
