package httpapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/metizror/marketforce-api/internal/identity"
)

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	for _, path := range []string{
		"/v1/admin/approvals",
		"/v1/admin/me",
	} {
		status, body := c.do(http.MethodGet, path, nil)
		if status != http.StatusUnauthorized || body["code"] != "unauthorized" {
			t.Fatalf("%s without token: status %d body %v", path, status, body)
		}
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)
	c.token = "not-a-jwt"

	status, body := c.do(http.MethodGet, "/v1/admin/me", nil)
	if status != http.StatusUnauthorized || body["code"] != "unauthorized" {
		t.Fatalf("status %d body %v", status, body)
	}
}

func TestCustomerTokenDoesNotAuthorizeAdminRoutes(t *testing.T) {
	f := newAPIFixture(t)
	c := f.client(t)

	id := registerCustomer(t, f, "jane@acme.com")

	admin := f.loginAdmin(t, identity.KindAdmin)
	status, _ := admin.do(http.MethodPost, "/v1/admin/approvals", map[string]any{
		"customer_id": id, "approve": true,
	})
	if status != http.StatusOK {
		t.Fatalf("approve: status %d", status)
	}
	status, _ = c.do(http.MethodPost, "/v1/auth/verify-otp", map[string]any{
		"email": "jane@acme.com", "otp": "123456",
	})
	if status != http.StatusOK {
		t.Fatalf("verify: status %d", status)
	}

	status, body := c.do(http.MethodPost, "/v1/auth/login", map[string]any{
		"email": "jane@acme.com", "password": "pass-12345",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status %d body %v", status, body)
	}
	c.token, _ = body["token"].(string)

	status, body = c.do(http.MethodGet, "/v1/admin/me", nil)
	if status != http.StatusUnauthorized || body["code"] != "unauthorized" {
		t.Fatalf("customer token on admin route: status %d body %v", status, body)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer abc.def.ghi", "abc.def.ghi", false},
		{"Bearer   spaced-token  ", "spaced-token", false},
		{"", "", true},
		{"Bearer ", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"abc.def.ghi", "", true},
	}
	for _, tt := range tests {
		got, err := extractBearerToken(tt.header)
		if tt.wantErr {
			if err == nil {
				t.Errorf("extractBearerToken(%q): want error", tt.header)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("extractBearerToken(%q) = %q, %v; want %q", tt.header, got, err, tt.want)
		}
	}
}

func TestOptionsBypassesAuth(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodOptions, f.srv.URL+"/v1/admin/approvals", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		t.Fatal("preflight must not require a token")
	}
}
