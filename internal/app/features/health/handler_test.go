package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/airodental/internal/app/features/health"
	"github.com/dalemusser/airodental/internal/domain/models"
	"github.com/dalemusser/airodental/internal/testutil"
	"go.uber.org/zap"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type counter struct {
	n      int64
	err    error
	status string
}

func (c *counter) CountByStatus(_ context.Context, status string) (int64, error) {
	c.status = status
	return c.n, c.err
}

type healthBody struct {
	Status             string `json:"status"`
	Profile            string `json:"profile"`
	Database           string `json:"database"`
	Mirror             string `json:"mirror"`
	PendingDeadLetters *int64 `json:"pendingDeadLetters"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	var response healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, response
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := health.NewHandler(db.Client(), nil, "web", zap.NewNop())

	rec, response := serve(t, handler)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", contentType, "application/json")
	}
	if response.Status != "ok" || response.Database != "connected" || response.Profile != "web" {
		t.Errorf("response: %+v", response)
	}
	if response.Mirror != "" {
		t.Errorf("mirror should be omitted without postgres, got %q", response.Mirror)
	}
}

func TestServe_PostgresMirror(t *testing.T) {
	db := testutil.SetupTestDB(t)

	handler := health.NewHandler(db.Client(), pinger{}, "web", zap.NewNop())
	rec, response := serve(t, handler)
	if rec.Code != http.StatusOK || response.Mirror != "connected" {
		t.Errorf("healthy mirror: status %d, %+v", rec.Code, response)
	}

	handler = health.NewHandler(db.Client(), pinger{err: errors.New("connection refused")}, "web", zap.NewNop())
	rec, response = serve(t, handler)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if response.Status != "error" || response.Mirror != "disconnected" {
		t.Errorf("response: %+v", response)
	}
}

func TestServe_DeadLetterBacklog(t *testing.T) {
	db := testutil.SetupTestDB(t)

	handler := health.NewHandler(db.Client(), nil, "web", zap.NewNop())
	if _, response := serve(t, handler); response.PendingDeadLetters != nil {
		t.Errorf("backlog reported without a counter: %d", *response.PendingDeadLetters)
	}

	c := &counter{n: 3}
	handler.DeadLetters = c
	rec, response := serve(t, handler)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if response.PendingDeadLetters == nil || *response.PendingDeadLetters != 3 {
		t.Errorf("pendingDeadLetters = %v, want 3", response.PendingDeadLetters)
	}
	if c.status != models.DeadLetterPending {
		t.Errorf("counted status %q", c.status)
	}

	// A failing count is logged and omitted; the service is still healthy.
	handler.DeadLetters = &counter{err: errors.New("timeout")}
	rec, response = serve(t, handler)
	if rec.Code != http.StatusOK || response.Status != "ok" || response.PendingDeadLetters != nil {
		t.Errorf("status %d, %+v", rec.Code, response)
	}
}
