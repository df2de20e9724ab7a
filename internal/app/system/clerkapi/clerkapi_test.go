package clerkapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newFakeAPI(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(b, &body)
		mu.Lock()
		reqs = append(reqs, recorded{r.Method, r.URL.Path, r.Header.Get("Authorization"), body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"errors":[{"code":"resource_not_found","message":"not found"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"organization","id":"org_1"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestUpdateOrganizationPlan(t *testing.T) {
	srv, reqs := newFakeAPI(t, http.StatusOK)
	c := New("sk_test_123", srv.URL, srv.Client())

	plan := "laine_pro"
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := c.UpdateOrganizationPlan(context.Background(), "org_1", PlanMetadata{
		ActivePlanID:       &plan,
		SubscriptionStatus: "active",
		SubscriptionID:     "sub_1",
		EventAt:            at,
	})
	if err != nil {
		t.Fatalf("UpdateOrganizationPlan: %v", err)
	}

	got := reqs()
	if len(got) != 1 {
		t.Fatalf("got %d requests, want 1", len(got))
	}
	r := got[0]
	if r.method != http.MethodPatch || !strings.HasSuffix(r.path, "/organizations/org_1/metadata") {
		t.Errorf("request = %s %s", r.method, r.path)
	}
	if r.auth != "Bearer sk_test_123" {
		t.Errorf("Authorization = %q", r.auth)
	}
	pub, _ := r.body["public_metadata"].(map[string]any)
	if pub[KeyActivePlanID] != "laine_pro" || pub[KeySubscriptionStatus] != "active" || pub[KeySubscriptionID] != "sub_1" {
		t.Errorf("public_metadata = %v", pub)
	}
	if pub[KeyPlanEventAt] != "2025-03-01T12:00:00Z" {
		t.Errorf("%s = %v", KeyPlanEventAt, pub[KeyPlanEventAt])
	}
}

func TestUpdateOrganizationPlan_NullPlan(t *testing.T) {
	srv, reqs := newFakeAPI(t, http.StatusOK)
	c := New("sk_test_123", srv.URL, srv.Client())

	if err := c.UpdateOrganizationPlan(context.Background(), "org_1", PlanMetadata{SubscriptionStatus: StatusDeleted}); err != nil {
		t.Fatalf("UpdateOrganizationPlan: %v", err)
	}
	pub, _ := reqs()[0].body["public_metadata"].(map[string]any)
	v, present := pub[KeyActivePlanID]
	if !present || v != nil {
		t.Errorf("%s = %v (present %v), want explicit null", KeyActivePlanID, v, present)
	}
}

func TestUpdateOrganizationPlan_Error(t *testing.T) {
	srv, _ := newFakeAPI(t, http.StatusNotFound)
	c := New("sk_test_123", srv.URL, srv.Client())

	if err := c.UpdateOrganizationPlan(context.Background(), "org_missing", PlanMetadata{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompleteOnboarding(t *testing.T) {
	srv, reqs := newFakeAPI(t, http.StatusOK)
	c := New("sk_test_123", srv.URL, srv.Client())

	if err := c.CompleteOnboarding(context.Background(), "user_1"); err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	r := reqs()[0]
	if r.method != http.MethodPatch || !strings.HasSuffix(r.path, "/users/user_1/metadata") {
		t.Errorf("request = %s %s", r.method, r.path)
	}
	pub, _ := r.body["public_metadata"].(map[string]any)
	if pub[KeyOnboardingComplete] != true {
		t.Errorf("public_metadata = %v", pub)
	}
}
