package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/metizror/marketforce-api/internal/identity"
	"github.com/metizror/marketforce-api/internal/otp"
)

// testNotifier swallows outgoing mail; codes are fixed by the generator.
type testNotifier struct{}

func (testNotifier) Send(context.Context, string, string, string) error { return nil }

type apiFixture struct {
	srv *httptest.Server
	svc *identity.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := identity.NewInMemory()
	codes := otp.NewLedger(otp.NewInMemory(), testNotifier{},
		otp.WithGenerator(func() (string, error) { return "123456", nil }))
	tokens, err := identity.NewTokenIssuer("httpapi-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	svc := identity.NewService(store, codes, tokens)

	api := New(ReadyProbe{}, "test", svc)
	api.SetRateLimit(10000, 10000)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &apiFixture{srv: srv, svc: svc}
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (f *apiFixture) client(t *testing.T) *apiClient {
	return &apiClient{t: t, base: f.srv.URL}
}

func (c *apiClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		payload = nil
	}
	return resp.StatusCode, payload
}

// loginAdmin provisions an admin out of band and returns a client holding
// its session token.
func (f *apiFixture) loginAdmin(t *testing.T, role identity.Kind) *apiClient {
	t.Helper()
	_, err := f.svc.ProvisionAdmin(context.Background(), "Ops Admin", "ops@marketforce.io", "admin-pass-1", role)
	if err != nil {
		t.Fatalf("provision admin: %v", err)
	}
	c := f.client(t)
	status, body := c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email":    "ops@marketforce.io",
		"password": "admin-pass-1",
	})
	if status != http.StatusOK {
		t.Fatalf("admin login: status %d body %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("admin login returned no token")
	}
	c.token = token
	return c
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"email":        email,
		"company_name": "Acme Inc",
		"password":     "pass-12345",
	}
}

func TestHealthAndInfo(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, body := c.do(http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: status %d body %v", status, body)
	}

	status, body = c.do(http.MethodGet, "/readyz", nil)
	if status != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("readyz: status %d body %v", status, body)
	}

	status, body = c.do(http.MethodGet, "/v1/info", nil)
	if status != http.StatusOK || body["name"] != "marketforce-api" || body["version"] != "test" {
		t.Fatalf("info: status %d body %v", status, body)
	}
}

func TestRegistrationLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)
	admin := f.loginAdmin(t, identity.KindAdmin)

	// Register.
	status, body := c.do(http.MethodPost, "/v1/auth/register", registerBody("jane@acme.com"))
	if status != http.StatusCreated {
		t.Fatalf("register: status %d body %v", status, body)
	}
	customerID, _ := body["id"].(string)
	if customerID == "" {
		t.Fatal("register returned no id")
	}
	if body["email"] != "jane@acme.com" {
		t.Fatalf("email = %v", body["email"])
	}
	if _, leaked := body["password_hash"]; leaked {
		t.Fatal("password hash must never appear in responses")
	}

	// Not yet verified: login is gated.
	status, body = c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "jane@acme.com", "password": "pass-12345",
	})
	if status != http.StatusForbidden || body["code"] != "account_pending" {
		t.Fatalf("pending login: status %d body %v", status, body)
	}

	// Verify email with the issued code.
	status, body = c.do(http.MethodPost, "/v1/auth/verify-otp", map[string]any{
		"email": "jane@acme.com", "otp": "123456",
	})
	if status != http.StatusOK || body["is_email_verified"] != true {
		t.Fatalf("verify-otp: status %d body %v", status, body)
	}

	// Still gated until admission.
	status, body = c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "jane@acme.com", "password": "pass-12345",
	})
	if status != http.StatusForbidden {
		t.Fatalf("unadmitted login: status %d body %v", status, body)
	}

	// Admin approves.
	status, body = admin.do(http.MethodPost, "/v1/admin/approvals", map[string]any{
		"customer_id": customerID, "approve": true,
	})
	if status != http.StatusOK {
		t.Fatalf("approve: status %d body %v", status, body)
	}
	if body["is_active"] != true {
		t.Fatalf("approved customer body %v", body)
	}
	if body["reviewed_by"] != "Ops Admin" {
		t.Fatalf("reviewed_by = %v", body["reviewed_by"])
	}

	// Login now succeeds and the token subject is the customer id.
	status, body = c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "jane@acme.com", "password": "pass-12345",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status %d body %v", status, body)
	}
	principal, _ := body["principal"].(map[string]any)
	if principal["id"] != customerID || principal["kind"] != "customer" {
		t.Fatalf("principal %v", principal)
	}
	token, _ := body["token"].(string)
	admin2, err := f.svc.AuthenticateToken(context.Background(), token)
	if err == nil {
		t.Fatalf("customer token must not resolve to admin %v", admin2)
	}
}

func TestRegisterRejectsFreeMailDomain(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, body := c.do(http.MethodPost, "/v1/auth/register", registerBody("jane@gmail.com"))
	if status != http.StatusBadRequest || body["code"] != "validation_error" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	if status, _ := c.do(http.MethodPost, "/v1/auth/register", registerBody("jane@acme.com")); status != http.StatusCreated {
		t.Fatalf("first register: status %d", status)
	}
	status, body := c.do(http.MethodPost, "/v1/auth/register", registerBody("JANE@ACME.COM"))
	if status != http.StatusConflict || body["code"] != "conflict" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, body := c.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"first_name": "Jane", "email": "not-an-email",
	})
	if status != http.StatusBadRequest || body["code"] != "validation_error" {
		t.Fatalf("status %d body %v", status, body)
	}

	// Unknown fields are rejected.
	status, _ = c.do(http.MethodPost, "/v1/auth/register", map[string]any{
		"first_name": "Jane", "last_name": "Doe", "email": "jane@acme.com",
		"company_name": "Acme", "password": "pass-12345", "extra": true,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d", status)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, body := c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "ghost@acme.com", "password": "whatever",
	})
	if status != http.StatusBadRequest || body["code"] != "invalid_credentials" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestSendOTPUnknownCustomer(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, body := c.do(http.MethodPost, "/v1/auth/send-otp", map[string]any{
		"email": "ghost@acme.com",
	})
	if status != http.StatusNotFound || body["code"] != "not_found" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	if status, _ := c.do(http.MethodPost, "/v1/auth/register", registerBody("jane@acme.com")); status != http.StatusCreated {
		t.Fatal("register failed")
	}
	status, body := c.do(http.MethodPost, "/v1/auth/verify-otp", map[string]any{
		"email": "jane@acme.com", "otp": "654321",
	})
	if status != http.StatusBadRequest || body["code"] != "invalid_or_expired_otp" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	if status, _ := c.do(http.MethodPost, "/v1/auth/register", registerBody("jane@acme.com")); status != http.StatusCreated {
		t.Fatal("register failed")
	}

	status, body := c.do(http.MethodPost, "/v1/auth/forgot-password", map[string]any{
		"email": "jane@acme.com", "step": "send-otp", "role": "customer",
	})
	if status != http.StatusOK {
		t.Fatalf("send-otp: status %d body %v", status, body)
	}

	status, body = c.do(http.MethodPost, "/v1/auth/forgot-password", map[string]any{
		"email": "jane@acme.com", "step": "verify-otp", "role": "customer", "otp": "123456",
	})
	if status != http.StatusOK {
		t.Fatalf("verify-otp: status %d body %v", status, body)
	}

	status, body = c.do(http.MethodPost, "/v1/auth/forgot-password", map[string]any{
		"email": "jane@acme.com", "step": "reset-password", "role": "customer",
		"new_password": "brand-new-pass",
	})
	if status != http.StatusOK {
		t.Fatalf("reset-password: status %d body %v", status, body)
	}

	// The reset took effect; the admission gate is still in front.
	status, body = c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "jane@acme.com", "password": "brand-new-pass",
	})
	if status != http.StatusForbidden || body["code"] != "account_pending" {
		t.Fatalf("login after reset: status %d body %v", status, body)
	}
}

func TestForgotPasswordUnknownStep(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, body := c.do(http.MethodPost, "/v1/auth/forgot-password", map[string]any{
		"email": "jane@acme.com", "step": "dance", "role": "customer",
	})
	if status != http.StatusBadRequest || body["code"] != "validation_error" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, body := c.do(http.MethodGet, "/v1/auth/register", nil)
	if status != http.StatusMethodNotAllowed || body["code"] != "method_not_allowed" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	status, _ := c.do(http.MethodGet, "/v1/nope", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status %d", status)
	}
}
