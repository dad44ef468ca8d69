package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/health"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func serve(t *testing.T, h *health.Handler, path string) (*httptest.ResponseRecorder, health.Status) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var status health.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return rec, status
}

func TestLiveness(t *testing.T) {
	h := health.NewHandler(clock.NewMock(testNow))

	rec, status := serve(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
	if status.Timestamp != testNow.Format(time.RFC3339) {
		t.Errorf("timestamp = %q, want %q", status.Timestamp, testNow.Format(time.RFC3339))
	}
}

func TestReadiness_NotReady(t *testing.T) {
	h := health.NewHandler(clock.NewMock(testNow))

	rec, status := serve(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
	if status.Status != "not_ready" {
		t.Errorf("status = %q, want not_ready", status.Status)
	}
}

func TestReadiness_ChecksPass(t *testing.T) {
	h := health.NewHandler(clock.NewMock(testNow), health.Checker{
		Name:  "database",
		Check: func(ctx context.Context) error { return nil },
	})
	h.SetReady(true)

	rec, status := serve(t, h, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if status.Checks["database"] != "ok" {
		t.Errorf("database check = %q, want ok", status.Checks["database"])
	}
}

func TestReadiness_CheckFails(t *testing.T) {
	h := health.NewHandler(clock.NewMock(testNow), health.Checker{
		Name:  "database",
		Check: func(ctx context.Context) error { return errors.New("connection refused") },
	})
	h.SetReady(true)

	rec, status := serve(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
	if status.Status != "not_ready" {
		t.Errorf("status = %q, want not_ready", status.Status)
	}
	if status.Checks["database"] != "connection refused" {
		t.Errorf("database check = %q, want the error message", status.Checks["database"])
	}
}

func TestReadiness_ToggledOff(t *testing.T) {
	h := health.NewHandler(clock.NewMock(testNow))
	h.SetReady(true)
	h.SetReady(false)

	rec, _ := serve(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503 after readiness withdrawn", rec.Code)
	}
}
