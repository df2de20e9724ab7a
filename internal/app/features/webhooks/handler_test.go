package webhooks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/airodental/internal/app/features/webhooks"
	"github.com/dalemusser/airodental/internal/app/store/mirror"
	"github.com/dalemusser/airodental/internal/app/system/clerkapi"
	"github.com/dalemusser/airodental/internal/app/system/metrics"
	"github.com/dalemusser/airodental/internal/app/system/mirrorsync"
	"github.com/dalemusser/airodental/internal/domain/models"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

type orgStore struct {
	orgs map[string]models.Organization
}

func (s *orgStore) Upsert(_ context.Context, org models.Organization) error {
	s.orgs[org.ID] = org
	return nil
}

func (s *orgStore) SetActivePlan(_ context.Context, id string, planID *string, at time.Time) (bool, error) {
	org, ok := s.orgs[id]
	if !ok {
		return false, mirror.ErrNotFound
	}
	if org.PlanEventAt != nil && org.PlanEventAt.After(at) {
		return false, nil
	}
	org.ActivePlanID = planID
	org.PlanEventAt = &at
	s.orgs[id] = org
	return true, nil
}

func (s *orgStore) AssignPlan(_ context.Context, org models.Organization) error {
	s.orgs[org.ID] = org
	return nil
}

func (s *orgStore) GetByID(_ context.Context, id string) (models.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return models.Organization{}, mirror.ErrNotFound
	}
	return org, nil
}

func (s *orgStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.orgs[id]
	return ok, nil
}

type userStore struct{ users map[string]models.User }

func (s *userStore) Upsert(_ context.Context, u models.User) error {
	s.users[u.ID] = u
	return nil
}

func (s *userStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.users[id]
	return ok, nil
}

type memberStore struct{ n int }

func (s *memberStore) Upsert(context.Context, models.OrganizationMember) (bool, error) {
	s.n++
	return true, nil
}

type metaWriter struct {
	calls int
	err   error
	last  clerkapi.PlanMetadata
}

func (m *metaWriter) UpdateOrganizationPlan(_ context.Context, _ string, md clerkapi.PlanMetadata) error {
	if m.err != nil {
		return m.err
	}
	m.calls++
	m.last = md
	return nil
}

func (m *metaWriter) CompleteOnboarding(context.Context, string) error { return m.err }

type memDedup struct {
	seen    map[string]bool
	seenErr error
}

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) {
	if d.seenErr != nil {
		return false, d.seenErr
	}
	return d.seen[id], nil
}

func (d *memDedup) Mark(_ context.Context, id string) error {
	d.seen[id] = true
	return nil
}

type fixture struct {
	orgs    *orgStore
	users   *userStore
	meta    *metaWriter
	dedup   *memDedup
	metrics *metrics.Metrics
	handler *webhooks.Handler
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	f := &fixture{
		orgs:    &orgStore{orgs: map[string]models.Organization{}},
		users:   &userStore{users: map[string]models.User{}},
		meta:    &metaWriter{},
		dedup:   &memDedup{seen: map[string]bool{}},
		metrics: metrics.New(),
	}
	stores := mirror.Stores{Organizations: f.orgs, Users: f.users, Members: &memberStore{}}
	sync := mirrorsync.NewSyncer(stores, f.meta, nil, nil, f.metrics, zap.NewNop())
	f.handler = webhooks.NewHandler(secret, sync, f.dedup, f.metrics, zap.NewNop())
	return f
}

func signedRequest(t *testing.T, msgID string, at time.Time, body string) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(testSecret)
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}
	sig, err := wh.Sign(msgID, at, []byte(body))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", strconv.FormatInt(at.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestServeClerk_SecretNotConfigured(t *testing.T) {
	f := newFixture(t, "")
	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_1", time.Now(), `{"type":"user.created","data":{}}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Internal Server Error: Webhook secret not configured." {
		t.Errorf("error = %v", got)
	}
}

func TestServeClerk_BadSignature(t *testing.T) {
	f := newFixture(t, testSecret)
	f.orgs.orgs["org_1"] = models.Organization{ID: "org_1"}
	body := `{"type":"organizationSubscription.updated","data":{"id":"sub_1","organization_id":"org_1","plan_id":"laine_pro","status":"active"}}`
	req := signedRequest(t, "msg_1", time.Now(), body)
	req.Header.Set("svix-signature", "v1,bm90IGEgcmVhbCBzaWduYXR1cmU=")

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	out := decodeBody(t, rec)
	if out["error"] != "Webhook verification failed" || out["details"] == "" {
		t.Errorf("body = %v", out)
	}
	if f.orgs.orgs["org_1"].ActivePlanID != nil || f.meta.calls != 0 {
		t.Error("state must be unchanged after a failed verification")
	}
}

func TestServeClerk_TamperedBody(t *testing.T) {
	f := newFixture(t, testSecret)
	req := signedRequest(t, "msg_1", time.Now(), `{"type":"user.created","data":{"id":"user_1"}}`)
	req.Body = io.NopCloser(strings.NewReader(`{"type":"user.created","data":{"id":"user_2"}}`))

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestServeClerk_SubscriptionApplied(t *testing.T) {
	f := newFixture(t, testSecret)
	f.orgs.orgs["org_1"] = models.Organization{ID: "org_1"}
	at := time.Now().Truncate(time.Second)
	body := `{"type":"organizationSubscription.created","data":{"id":"sub_1","organization_id":"org_1","plan_id":"laine_pro","status":"trialing"}}`

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_1", at, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	if out["received"] != true || out["eventType"] != "organizationSubscription.created" {
		t.Errorf("body = %v", out)
	}
	org := f.orgs.orgs["org_1"]
	if org.ActivePlanID == nil || *org.ActivePlanID != "laine_pro" {
		t.Errorf("plan = %v", org.ActivePlanID)
	}
	if org.PlanEventAt == nil || !org.PlanEventAt.Equal(at) {
		t.Errorf("plan event time = %v, want %v", org.PlanEventAt, at)
	}
	if f.meta.calls != 1 {
		t.Errorf("metadata writes = %d", f.meta.calls)
	}
	if !f.dedup.seen["msg_1"] {
		t.Error("delivery should be marked after success")
	}
}

func TestServeClerk_EventTimestampFromBody(t *testing.T) {
	f := newFixture(t, testSecret)
	f.orgs.orgs["org_1"] = models.Organization{ID: "org_1"}
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 123e6, time.UTC)
	body := `{"type":"organizationSubscription.updated","timestamp":` +
		strconv.FormatInt(occurred.UnixMilli(), 10) +
		`,"data":{"id":"sub_1","organization_id":"org_1","plan_id":"laine_pro","status":"active"}}`

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_1", time.Now(), body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}
	org := f.orgs.orgs["org_1"]
	if org.PlanEventAt == nil || !org.PlanEventAt.Equal(occurred) {
		t.Errorf("plan event time = %v, want %v", org.PlanEventAt, occurred)
	}
	if !f.meta.last.EventAt.Equal(occurred) {
		t.Errorf("metadata event time = %v, want %v", f.meta.last.EventAt, occurred)
	}
}

func TestServeClerk_RedeliveredOlderEventDoesNotWin(t *testing.T) {
	f := newFixture(t, testSecret)
	f.orgs.orgs["org_1"] = models.Organization{ID: "org_1"}
	t1 := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	t2 := t1.Add(time.Minute)
	created := `{"type":"organizationSubscription.created","timestamp":` +
		strconv.FormatInt(t1.UnixMilli(), 10) +
		`,"data":{"id":"sub_1","organization_id":"org_1","plan_id":"laine_pro","status":"active"}}`
	deleted := `{"type":"organizationSubscription.deleted","timestamp":` +
		strconv.FormatInt(t2.UnixMilli(), 10) +
		`,"data":{"id":"sub_1","organization_id":"org_1","plan_id":"laine_pro","status":"canceled"}}`

	// The first attempt at "created" fails after the mirror write.
	f.meta.err = errors.New("provider unavailable")
	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_created", t1, created))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("created: status = %d, want 500", rec.Code)
	}

	f.meta.err = nil
	rec = httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_deleted", t2, deleted))
	if rec.Code != http.StatusOK {
		t.Fatalf("deleted: status = %d", rec.Code)
	}

	// The retry is signed with a fresh delivery timestamp.
	rec = httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_created", time.Now(), created))
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: status = %d", rec.Code)
	}

	org := f.orgs.orgs["org_1"]
	if org.ActivePlanID != nil {
		t.Errorf("plan = %q, want none after deletion", *org.ActivePlanID)
	}
	if org.PlanEventAt == nil || !org.PlanEventAt.Equal(t2) {
		t.Errorf("plan event time = %v, want %v", org.PlanEventAt, t2)
	}
	if f.meta.calls != 1 || f.meta.last.ActivePlanID != nil {
		t.Errorf("metadata writes = %d, last = %+v", f.meta.calls, f.meta.last)
	}
}

func TestServeClerk_MissingOrganizationID(t *testing.T) {
	f := newFixture(t, testSecret)
	body := `{"type":"organizationSubscription.updated","data":{"id":"sub_1","plan_id":"laine_pro","status":"active"}}`

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_1", time.Now(), body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Missing organization_id" {
		t.Errorf("error = %v", got)
	}
}

func TestServeClerk_ProcessingErrorIs500(t *testing.T) {
	f := newFixture(t, testSecret)
	f.orgs.orgs["org_1"] = models.Organization{ID: "org_1"}
	f.meta.err = errors.New("provider unavailable")
	body := `{"type":"organizationSubscription.updated","data":{"id":"sub_1","organization_id":"org_1","plan_id":"laine_pro","status":"active"}}`

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_1", time.Now(), body))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	out := decodeBody(t, rec)
	if out["error"] != "Failed to process event organizationSubscription.updated" {
		t.Errorf("error = %v", out["error"])
	}
	if !strings.Contains(out["details"].(string), "provider unavailable") {
		t.Errorf("details = %v", out["details"])
	}
	if f.dedup.seen["msg_1"] {
		t.Error("failed deliveries must not be marked")
	}
}

func TestServeClerk_DuplicateDelivery(t *testing.T) {
	f := newFixture(t, testSecret)
	f.orgs.orgs["org_1"] = models.Organization{ID: "org_1"}
	body := `{"type":"organizationSubscription.updated","data":{"id":"sub_1","organization_id":"org_1","plan_id":"laine_pro","status":"active"}}`
	at := time.Now()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		f.handler.ServeClerk(rec, signedRequest(t, "msg_dup", at, body))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i, rec.Code)
		}
	}
	if f.meta.calls != 1 {
		t.Errorf("metadata writes = %d, want 1", f.meta.calls)
	}
}

func TestServeClerk_DedupErrorStillProcesses(t *testing.T) {
	f := newFixture(t, testSecret)
	f.dedup.seenErr = errors.New("redis down")
	body := `{"type":"organization.created","data":{"id":"org_5","name":"Five"}}`

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_5", time.Now(), body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := f.orgs.orgs["org_5"]; !ok {
		t.Error("organization not written")
	}
}

func TestServeClerk_UnhandledEventType(t *testing.T) {
	f := newFixture(t, testSecret)
	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_7", time.Now(), `{"type":"email.created","data":{"id":"e"}}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["eventType"]; got != "email.created" {
		t.Errorf("eventType = %v", got)
	}
}

func TestServeClerk_SkippedBranchStill200(t *testing.T) {
	f := newFixture(t, testSecret)
	body := `{"type":"user.created","data":{"id":"user_1","email_addresses":[]}}`

	rec := httptest.NewRecorder()
	f.handler.ServeClerk(rec, signedRequest(t, "msg_8", time.Now(), body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(f.users.users) != 0 {
		t.Error("user without primary email must not be written")
	}
}

func TestRoutes_PostOnly(t *testing.T) {
	f := newFixture(t, testSecret)
	r := webhooks.Routes(f.handler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clerk", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}
