package subscription_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/airodental/internal/app/features/subscription"
	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/testutil"
	"github.com/go-chi/chi/v5"
)

func serveRoutes(req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	subscription.MountRoutes(r, subscription.NewHandler())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMountRoutes_Unauthenticated(t *testing.T) {
	rec := serveRoutes(httptest.NewRequest("GET", "/api/subscription/check", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestMountRoutes_NoOrganization(t *testing.T) {
	rec := serveRoutes(testutil.NewSessionRequest("GET", "/api/subscription/check", testutil.Session("user_1", "")))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestServeCheck_Authenticated(t *testing.T) {
	handler := subscription.NewHandler()
	s := testutil.Session("user_1", "org_1",
		entitlements.Plan("laine_pro"),
		entitlements.Feature("laine_access"),
		entitlements.Permission("org:manage_users"))

	req := testutil.NewSessionRequest("GET", "/api/subscription/check", s)
	rec := httptest.NewRecorder()
	handler.ServeCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var response struct {
		Plans       map[string]bool `json:"plans"`
		Features    map[string]bool `json:"features"`
		Permissions map[string]bool `json:"permissions"`
		OrgID       string          `json:"orgId"`
		UserID      string          `json:"userId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
	if response.OrgID != "org_1" || response.UserID != "user_1" {
		t.Errorf("ids: got %q/%q", response.OrgID, response.UserID)
	}
	if !response.Plans["laine_pro"] || response.Plans["laine_lite"] {
		t.Errorf("plans: got %v", response.Plans)
	}
	if !response.Features["laine_access"] || response.Features["data_export"] {
		t.Errorf("features: got %v", response.Features)
	}
	if !response.Permissions["manage_users"] {
		t.Errorf("permissions: got %v", response.Permissions)
	}
}

func TestMountRoutes_Authenticated(t *testing.T) {
	rec := serveRoutes(testutil.NewSessionRequest("GET", "/api/subscription/check", testutil.Session("user_1", "org_1")))
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}
