package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	const ui = "http://localhost:3000"

	tests := []struct {
		name        string
		allowed     string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantCalled  bool
		wantOrigin  string
		wantMethods string
	}{
		{"許可オリジンのGET", ui, http.MethodGet, ui, false, http.StatusOK, true, ui, ""},
		{"許可オリジンのプリフライト", ui + "/", http.MethodOptions, ui, true, http.StatusNoContent, false, ui, "GET, POST, PUT, DELETE, OPTIONS"},
		{"他オリジンにはヘッダーを付けない", ui, http.MethodPost, "https://evil.example", false, http.StatusOK, true, "", ""},
		{"他オリジンのプリフライトは素通し", ui, http.MethodOptions, "https://evil.example", true, http.StatusOK, true, "", ""},
		{"同一オリジン運用", "", http.MethodGet, ui, false, http.StatusOK, true, "", ""},
		{"Originなし", ui, http.MethodGet, "", false, http.StatusOK, true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewCORSMiddleware(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/jobs", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, tt.wantMethods)
			}
			if got := rec.Header().Get("Vary"); got != "Origin" {
				t.Errorf("Vary = %q, want Origin", got)
			}
		})
	}
}

func TestCORSMiddleware_AllowsBFFHeaders(t *testing.T) {
	h := NewCORSMiddleware("http://localhost:3000")(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/users/5", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-CSRF-Token, X-Confirm" {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "X-Redirect, Retry-After" {
		t.Errorf("Access-Control-Expose-Headers = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
}
