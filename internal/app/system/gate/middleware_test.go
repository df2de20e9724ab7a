package gate

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/entitlements"
	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"go.uber.org/zap"
)

func serveGate(t *testing.T, profile string, r *http.Request, s entitlements.Session) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	e := mustEngine(t, mustPreset(t, profile))
	var seen *http.Request
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	})
	h := NewMiddleware(e, metrics.New(), zap.NewNop()).Handler(next)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, auth.WithSession(r, s))
	return rec, seen
}

func TestMiddleware_RedirectsPages(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://app.airodental.com/dashboard", nil)
	r.Header.Set("Accept", "text/html")

	rec, seen := serveGate(t, ProfileWeb, r, entitlements.Session{})
	if seen != nil {
		t.Fatal("next handler should not run")
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	loc := parseLocation(t, rec.Header().Get("Location"))
	if loc.Path != "/sign-in" {
		t.Errorf("Location path = %q", loc.Path)
	}
	if got := loc.Query().Get("redirect_url"); got != "http://app.airodental.com/dashboard" {
		t.Errorf("redirect_url = %q", got)
	}
}

func TestMiddleware_HTMX(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("HX-Request", "true")

	rec, _ := serveGate(t, ProfileWeb, r, session("u", "o", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/onboarding" {
		t.Errorf("HX-Redirect = %q", got)
	}
}

func TestMiddleware_APIGetsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard/export", nil)
	r.Header.Set("Accept", "application/json")

	rec, _ := serveGate(t, ProfileWeb, r, entitlements.Session{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Unauthorized" || body["reason"] != string(SignIn) {
		t.Errorf("body = %v", body)
	}

	rec, _ = serveGate(t, ProfileWeb, r, session("u", "", onboarded))
	if rec.Code != http.StatusForbidden {
		t.Errorf("no org: status = %d, want 403", rec.Code)
	}
}

func TestMiddleware_SkipsAssets(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard/logo.png", nil)
	rec, seen := serveGate(t, ProfileAdmin, r, entitlements.Session{})
	if seen == nil || rec.Code != http.StatusOK {
		t.Errorf("asset should pass through, status %d", rec.Code)
	}
}

func TestMiddleware_OrgSelectionHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard/acme/members", nil)
	r.Header.Set(HeaderOrgSelection, "spoofed")

	_, seen := serveGate(t, ProfileWeb, r, session("u", "o", onboarded))
	if seen == nil {
		t.Fatal("expected pass-through")
	}
	if got := seen.Header.Get(HeaderOrgSelection); got != "acme" {
		t.Errorf("%s = %q, want acme", HeaderOrgSelection, got)
	}

	r = httptest.NewRequest(http.MethodGet, "/dashboard/user/profile", nil)
	_, seen = serveGate(t, ProfileWeb, r, session("u", "o", onboarded))
	if got := seen.Header.Get(HeaderOrgSelection); got != "personal" {
		t.Errorf("%s = %q, want personal", HeaderOrgSelection, got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderOrgSelection, "spoofed")
	_, seen = serveGate(t, ProfileWeb, r, entitlements.Session{})
	if got := seen.Header.Get(HeaderOrgSelection); got != "" {
		t.Errorf("client value leaked: %q", got)
	}
}

func TestMiddleware_AfterOnboardingIgnoredForAPI(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/onboarding/complete", nil)
	r.Header.Set("Accept", "application/json")

	rec, seen := serveGate(t, ProfileWeb, r, session("u", "o", onboarded))
	if seen == nil || rec.Code != http.StatusOK {
		t.Errorf("status = %d, want pass-through", rec.Code)
	}
}

func TestOriginalURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://internal:8080/dashboard?x=1", nil)
	if got := OriginalURL(r); got != "http://internal:8080/dashboard?x=1" {
		t.Errorf("plain: %q", got)
	}

	r.Header.Set("X-Forwarded-Proto", "https, http")
	r.Header.Set("X-Forwarded-Host", "laine.airodental.com")
	if got := OriginalURL(r); got != "https://laine.airodental.com/dashboard?x=1" {
		t.Errorf("forwarded: %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "https://app.airodental.com/", nil)
	r.TLS = &tls.ConnectionState{}
	if got := OriginalURL(r); got != "https://app.airodental.com/" {
		t.Errorf("tls: %q", got)
	}
}

func TestMiddleware_CaseVariantIsGated(t *testing.T) {
	for _, p := range []string{"/Dashboard", "/DASHBOARD/billing"} {
		r := httptest.NewRequest(http.MethodGet, "http://app.airodental.com"+p, nil)
		r.Header.Set("Accept", "text/html")

		rec, seen := serveGate(t, ProfileWeb, r, entitlements.Session{})
		if seen != nil {
			t.Fatalf("%s: next handler should not run", p)
		}
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("%s: status = %d, want 303", p, rec.Code)
		}
	}
}

func TestMiddleware_RedirectsNonCanonicalPaths(t *testing.T) {
	cases := map[string]string{
		"/x/../dashboard":         "/dashboard",
		"//dashboard":             "/dashboard",
		"/./dashboard/":           "/dashboard/",
		"/dashboard//billing?a=1": "/dashboard/billing?a=1",
	}
	for target, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "http://app.airodental.com"+target, nil)

		rec, seen := serveGate(t, ProfileWeb, r, entitlements.Session{})
		if seen != nil {
			t.Fatalf("%s: next handler should not run", target)
		}
		if rec.Code != http.StatusPermanentRedirect {
			t.Fatalf("%s: status = %d, want 308", target, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != want {
			t.Errorf("%s: Location = %q, want %q", target, got, want)
		}
	}
}

func TestCleanPath(t *testing.T) {
	for in, want := range map[string]string{
		"":                 "/",
		"/":                "/",
		"dashboard":        "/dashboard",
		"/dashboard/":      "/dashboard/",
		"/a/b/../c":        "/a/c",
		"/a//b//":          "/a/b/",
		"/../../dashboard": "/dashboard",
	} {
		if got := cleanPath(in); got != want {
			t.Errorf("cleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}
