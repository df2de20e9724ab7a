package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/airodental/internal/app/system/auth"
	"github.com/dalemusser/airodental/internal/app/system/entitlements"
)

// OnboardedClaims marks a session as having finished onboarding.
func OnboardedClaims() map[string]any {
	return map[string]any{"metadata": map[string]any{"onboardingComplete": true}}
}

// Session builds a session holding exactly the given capabilities.
func Session(userID, orgID string, grants ...entitlements.Requirement) entitlements.Session {
	return entitlements.NewSession(userID, orgID, OnboardedClaims(), entitlements.Grants(grants...))
}

// WithSession attaches s to r, bypassing token verification.
func WithSession(r *http.Request, s entitlements.Session) *http.Request {
	return auth.WithSession(r, s)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewSessionRequest creates a request that already carries s.
func NewSessionRequest(method, target string, s entitlements.Session) *http.Request {
	return WithSession(httptest.NewRequest(method, target, nil), s)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q; body: %s", expected, r.Body.String())
	}
}
