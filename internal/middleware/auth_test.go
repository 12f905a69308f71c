package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/runesmith/dashboard/internal/middleware"
)

const testToken = "forge-secret"

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		authHeader string
		wantStatus int
	}{
		{"no header", testToken, "", http.StatusUnauthorized},
		{"basic scheme", testToken, "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"lowercase bearer", testToken, "bearer " + testToken, http.StatusUnauthorized},
		{"empty bearer", testToken, "Bearer ", http.StatusUnauthorized},
		{"extra space", testToken, "Bearer  " + testToken, http.StatusUnauthorized},
		{"wrong token", testToken, "Bearer nope", http.StatusUnauthorized},
		{"correct token", testToken, "Bearer " + testToken, http.StatusNoContent},
		{"auth disabled", "", "", http.StatusNoContent},
		{"auth disabled ignores header", "", "Bearer anything", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/forge", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			middleware.Auth(tt.token, next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if want := tt.wantStatus == http.StatusNoContent; reached != want {
				t.Errorf("handler reached: got %v, want %v", reached, want)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("401 Content-Type: got %q, want application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAuth_UnauthorizedBodyIsJSON(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next must not run without a valid token")
	})
	rec := httptest.NewRecorder()
	middleware.Auth(testToken, next).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/theme", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 should carry a WWW-Authenticate challenge")
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	if body["error"] != "unauthorized" {
		t.Errorf("error field: got %q, want unauthorized", body["error"])
	}
}
