package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/uuid"

	"github.com/autoyard/garageapi/internal/app"
	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/internal/core/usecase"
)

const (
	testJWTSecret = "test-secret"
	adminAPIKey   = "test-admin-key"
)

var bookingRefPattern = regexp.MustCompile(`^BK-\d+-\d+$`)

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination *domain.Page    `json:"pagination"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	Timestamp  string          `json:"timestamp"`
}

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	tokens map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server, closer, err := app.NewServer(context.Background(), app.Config{
		Addr:            ":0",
		DBPath:          filepath.Join(t.TempDir(), "api.sqlite"),
		JWTSecret:       testJWTSecret,
		BootstrapAPIKey: adminAPIKey,
		BootstrapUserID: "admin-1",
		BootstrapRole:   "admin",
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = closer.Close() })

	srv := httptest.NewServer(server.Handler)
	t.Cleanup(srv.Close)

	auth := usecase.NewAuthService(nil, testJWTSecret)
	tokens := map[string]string{}
	for _, caller := range []domain.Caller{
		{ID: "u1", Role: "user"},
		{ID: "u2", Role: "user"},
		{ID: "admin-2", Role: "admin"},
	} {
		token, err := auth.IssueToken(caller)
		if err != nil {
			t.Fatalf("issue token for %s: %v", caller.ID, err)
		}
		tokens[caller.ID] = token
	}

	return &testEnv{t: t, srv: srv, tokens: tokens}
}

// do issues a request. auth is "" (anonymous), "key:<api key>", or a user id
// whose JWT was minted in newTestEnv.
func (e *testEnv) do(method, path, auth string, body any) (int, envelope) {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	switch {
	case auth == "":
	case len(auth) > 4 && auth[:4] == "key:":
		req.Header.Set("X-API-Key", auth[4:])
	default:
		token, ok := e.tokens[auth]
		if !ok {
			e.t.Fatalf("no token minted for %q", auth)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		e.t.Fatalf("decode envelope from %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func (e *testEnv) dataMap(env envelope) map[string]any {
	e.t.Helper()
	var m map[string]any
	if err := json.Unmarshal(env.Data, &m); err != nil {
		e.t.Fatalf("decode data object: %v", err)
	}
	return m
}

func bookingBody() map[string]any {
	return map[string]any{
		"mechanicId":    uuid.NewString(),
		"vehicleId":     uuid.NewString(),
		"serviceType":   "oil_change",
		"bookingDate":   "2025-06-01",
		"customerEmail": "client@example.com",
	}
}

func TestRequestsWithoutCredentialsAreRejected(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/v1/bookings", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if body.Success || body.Error != "UNAUTHORIZED" {
		t.Errorf("envelope = %+v", body)
	}
	if body.Timestamp == "" {
		t.Error("failure envelope must carry a timestamp")
	}
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || !body.Success {
		t.Fatalf("status = %d, envelope = %+v", status, body)
	}
}

func TestCreateAndGetBooking(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodPost, "/v1/bookings", "u1", bookingBody())
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%+v)", status, body)
	}
	if !body.Success || body.Message != "booking created" {
		t.Errorf("envelope = %+v", body)
	}

	created := env.dataMap(body)
	if created["status"] != "pending" {
		t.Errorf("status = %v, want pending", created["status"])
	}
	if created["ownerId"] != "u1" {
		t.Errorf("ownerId = %v, want u1", created["ownerId"])
	}
	ref, _ := created["bookingReference"].(string)
	if !bookingRefPattern.MatchString(ref) {
		t.Errorf("bookingReference = %q, want BK-<digits>-<digits>", ref)
	}

	id, _ := created["id"].(string)
	status, body = env.do(http.MethodGet, "/v1/bookings/"+id, "u2", nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d, want 200", status)
	}
	if env.dataMap(body)["id"] != id {
		t.Error("get should return the created record")
	}
}

func TestCreateMissingFields(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodPost, "/v1/bookings", "u1", map[string]any{"serviceType": "oil_change"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if body.Error != "MISSING_REQUIRED_FIELDS" {
		t.Errorf("error = %q, want MISSING_REQUIRED_FIELDS", body.Error)
	}
}

func TestGetErrors(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/v1/bookings/not-a-uuid", "u1", nil)
	if status != http.StatusBadRequest || body.Error != "INVALID_ID" {
		t.Errorf("status = %d, error = %q, want 400 INVALID_ID", status, body.Error)
	}

	status, body = env.do(http.MethodGet, "/v1/bookings/"+uuid.NewString(), "u1", nil)
	if status != http.StatusNotFound || body.Error != "BOOKING_NOT_FOUND" {
		t.Errorf("status = %d, error = %q, want 404 BOOKING_NOT_FOUND", status, body.Error)
	}
}

func TestBadPaginationParameter(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/v1/bookings?limit=abc", "u1", nil)
	if status != http.StatusBadRequest || body.Error != "INVALID_PAGINATION" {
		t.Errorf("status = %d, error = %q, want 400 INVALID_PAGINATION", status, body.Error)
	}
}

func TestOwnershipGuard(t *testing.T) {
	env := newTestEnv(t)

	_, created := env.do(http.MethodPost, "/v1/bookings", "u1", bookingBody())
	id, _ := env.dataMap(created)["id"].(string)

	patch := map[string]any{"notes": "other user's note"}
	status, body := env.do(http.MethodPut, "/v1/bookings/"+id, "u2", patch)
	if status != http.StatusForbidden || body.Error != "UNAUTHORIZED" {
		t.Fatalf("status = %d, error = %q, want 403 UNAUTHORIZED", status, body.Error)
	}

	status, body = env.do(http.MethodPut, "/v1/bookings/"+id, "key:"+adminAPIKey, map[string]any{"notes": "admin note"})
	if status != http.StatusOK {
		t.Fatalf("admin update status = %d (%+v)", status, body)
	}
	if env.dataMap(body)["notes"] != "admin note" {
		t.Error("admin update should apply")
	}
}

func TestPatchStatusCompleted(t *testing.T) {
	env := newTestEnv(t)

	_, created := env.do(http.MethodPost, "/v1/bookings", "u1", bookingBody())
	id, _ := env.dataMap(created)["id"].(string)

	status, body := env.do(http.MethodPatch, "/v1/bookings/"+id+"/status", "u1",
		map[string]any{"status": "completed", "actualCost": 50})
	if status != http.StatusOK {
		t.Fatalf("status = %d (%+v)", status, body)
	}

	patched := env.dataMap(body)
	if patched["status"] != "completed" {
		t.Errorf("status = %v, want completed", patched["status"])
	}
	if completedAt, _ := patched["completedAt"].(string); completedAt == "" {
		t.Error("completedAt should be stamped")
	}
	if patched["actualCost"] != 50.0 {
		t.Errorf("actualCost = %v, want 50", patched["actualCost"])
	}
}

func TestPatchStatusRejectsUnknownValue(t *testing.T) {
	env := newTestEnv(t)

	_, created := env.do(http.MethodPost, "/v1/bookings", "u1", bookingBody())
	id, _ := env.dataMap(created)["id"].(string)

	status, body := env.do(http.MethodPatch, "/v1/bookings/"+id+"/status", "u1",
		map[string]any{"status": "teleported"})
	if status != http.StatusBadRequest || body.Error != "INVALID_STATUS" {
		t.Errorf("status = %d, error = %q, want 400 INVALID_STATUS", status, body.Error)
	}
}

func TestDuplicateVINConflicts(t *testing.T) {
	env := newTestEnv(t)

	vehicle := map[string]any{"make": "Toyota", "model": "Corolla", "year": 2020, "vin": "VIN123"}
	status, _ := env.do(http.MethodPost, "/v1/vehicles", "u1", vehicle)
	if status != http.StatusCreated {
		t.Fatalf("first create status = %d", status)
	}

	status, body := env.do(http.MethodPost, "/v1/vehicles", "u2", vehicle)
	if status != http.StatusConflict || body.Error != "DUPLICATE_VIN" {
		t.Errorf("status = %d, error = %q, want 409 DUPLICATE_VIN", status, body.Error)
	}
}

func TestDeleteMissingRecord(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodDelete, "/v1/bookings/"+uuid.NewString(), "u1", nil)
	if status != http.StatusNotFound || body.Error != "BOOKING_NOT_FOUND" {
		t.Errorf("status = %d, error = %q, want 404 BOOKING_NOT_FOUND", status, body.Error)
	}
}

func TestListPaginationEnvelope(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 12; i++ {
		payload := map[string]any{"name": fmt.Sprintf("item-%02d", i), "price": i}
		if status, body := env.do(http.MethodPost, "/v1/products", "u1", payload); status != http.StatusCreated {
			t.Fatalf("create %d failed: %d (%+v)", i, status, body)
		}
	}

	status, body := env.do(http.MethodGet, "/v1/products", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if body.Pagination == nil {
		t.Fatal("list must carry the pagination envelope")
	}
	if body.Pagination.Page != 1 || body.Pagination.Limit != 10 {
		t.Errorf("pagination = %+v, want page 1 limit 10", body.Pagination)
	}
	if body.Pagination.Total != 12 || body.Pagination.Pages != 2 {
		t.Errorf("pagination = %+v, want total 12 pages 2", body.Pagination)
	}

	var items []map[string]any
	if err := json.Unmarshal(body.Data, &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 10 {
		t.Errorf("len(items) = %d, want 10", len(items))
	}
}

func TestStatsOverviewEndpoint(t *testing.T) {
	env := newTestEnv(t)

	_, created := env.do(http.MethodPost, "/v1/bookings", "u1", bookingBody())
	id, _ := env.dataMap(created)["id"].(string)
	env.do(http.MethodPatch, "/v1/bookings/"+id+"/status", "u1", map[string]any{"status": "completed", "actualCost": 50})
	env.do(http.MethodPost, "/v1/bookings", "u2", bookingBody())

	status, body := env.do(http.MethodGet, "/v1/bookings/stats/overview", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("stats status = %d (%+v)", status, body)
	}

	overview := env.dataMap(body)
	if overview["total"] != 2.0 {
		t.Errorf("total = %v, want 2", overview["total"])
	}
	if overview["sum"] != 50.0 {
		t.Errorf("sum = %v, want 50 (completed bookings only)", overview["sum"])
	}
}

func TestDiscountValidateFlow(t *testing.T) {
	env := newTestEnv(t)

	discount := map[string]any{"code": "SAVE10", "type": "percentage", "value": 10}
	if status, body := env.do(http.MethodPost, "/v1/discounts", "key:"+adminAPIKey, discount); status != http.StatusCreated {
		t.Fatalf("create discount: %d (%+v)", status, body)
	}

	status, body := env.do(http.MethodGet, "/v1/discounts/validate?code=SAVE10&amount=100", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("validate status = %d (%+v)", status, body)
	}
	quote := env.dataMap(body)
	if quote["discountAmount"] != 10.0 || quote["finalAmount"] != 90.0 {
		t.Errorf("quote = %+v, want 10 off 100", quote)
	}

	status, body = env.do(http.MethodGet, "/v1/discounts/validate?code=NOPE&amount=100", "u1", nil)
	if status != http.StatusNotFound || body.Error != "DISCOUNT_NOT_FOUND" {
		t.Errorf("status = %d, error = %q, want 404 DISCOUNT_NOT_FOUND", status, body.Error)
	}
}

func TestFlagsAdminOnlyMutation(t *testing.T) {
	env := newTestEnv(t)

	update := map[string]any{"enabled": true, "note": "beta rollout"}
	status, body := env.do(http.MethodPut, "/v1/flags/new-booking-flow", "u1", update)
	if status != http.StatusForbidden {
		t.Fatalf("non-admin flag set status = %d (%+v)", status, body)
	}

	status, body = env.do(http.MethodPut, "/v1/flags/new-booking-flow", "admin-2", update)
	if status != http.StatusOK {
		t.Fatalf("admin flag set status = %d (%+v)", status, body)
	}

	status, body = env.do(http.MethodGet, "/v1/flags/new-booking-flow", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("flag get status = %d", status)
	}
	if env.dataMap(body)["enabled"] != true {
		t.Error("flag should read back enabled")
	}
}

func TestAuditListIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/v1/bookings", "u1", bookingBody())

	status, _ := env.do(http.MethodGet, "/v1/audit", "u1", nil)
	if status != http.StatusForbidden {
		t.Fatalf("non-admin audit status = %d, want 403", status)
	}

	status, body := env.do(http.MethodGet, "/v1/audit?resource=booking", "key:"+adminAPIKey, nil)
	if status != http.StatusOK {
		t.Fatalf("admin audit status = %d (%+v)", status, body)
	}
	var events []map[string]any
	if err := json.Unmarshal(body.Data, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) == 0 {
		t.Error("expected at least the create audit row")
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/v1/mechanics", "u1", nil)
	if status != http.StatusNotFound || body.Error != "RESOURCE_NOT_FOUND" {
		t.Errorf("status = %d, error = %q, want 404 RESOURCE_NOT_FOUND", status, body.Error)
	}
}
