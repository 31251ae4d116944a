package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// --- テストヘルパー ---

type csrfRequest struct {
	method string
	cookie string
	header string
	origin string
}

func (c csrfRequest) build() *http.Request {
	req := httptest.NewRequest(c.method, "/api/recruiter/jobs/1", nil)
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: c.cookie})
	}
	if c.header != "" {
		req.Header.Set(csrfHeaderName, c.header)
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	return req
}

func serveCSRF(t *testing.T, config CSRFConfig, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	h := NewCSRFMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func TestCSRFMiddleware_Verification(t *testing.T) {
	trusted := CSRFConfig{TrustedOrigins: []string{"http://localhost:3000", "http://localhost:8080/"}}

	tests := []struct {
		name       string
		config     CSRFConfig
		req        csrfRequest
		wantCalled bool
	}{
		{"GETはトークンなしで通る", CSRFConfig{}, csrfRequest{method: http.MethodGet}, true},
		{"HEADはトークンなしで通る", CSRFConfig{}, csrfRequest{method: http.MethodHead}, true},
		{"OPTIONSはトークンなしで通る", CSRFConfig{}, csrfRequest{method: http.MethodOptions}, true},
		{"POST Cookieなし", CSRFConfig{}, csrfRequest{method: http.MethodPost, header: "t"}, false},
		{"POST ヘッダーなし", CSRFConfig{}, csrfRequest{method: http.MethodPost, cookie: "t"}, false},
		{"POST 不一致", CSRFConfig{}, csrfRequest{method: http.MethodPost, cookie: "a", header: "b"}, false},
		{"POST 一致", CSRFConfig{}, csrfRequest{method: http.MethodPost, cookie: "t", header: "t"}, true},
		{"PUT 一致", CSRFConfig{}, csrfRequest{method: http.MethodPut, cookie: "t", header: "t"}, true},
		{"PATCH トークンなし", CSRFConfig{}, csrfRequest{method: http.MethodPatch}, false},
		{"DELETE トークンなし", CSRFConfig{}, csrfRequest{method: http.MethodDelete}, false},
		{"信頼済みオリジン", trusted, csrfRequest{method: http.MethodDelete, cookie: "t", header: "t", origin: "http://localhost:3000"}, true},
		{"末尾スラッシュ付きで登録したオリジン", trusted, csrfRequest{method: http.MethodPost, cookie: "t", header: "t", origin: "http://localhost:8080"}, true},
		{"Originヘッダーなしはトークンのみで判定", trusted, csrfRequest{method: http.MethodPost, cookie: "t", header: "t"}, true},
		{"信頼されていないオリジン", trusted, csrfRequest{method: http.MethodPost, cookie: "t", header: "t", origin: "https://evil.example"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, called := serveCSRF(t, tt.config, tt.req.build())

			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled {
				return
			}
			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Code != "CSRF_TOKEN_INVALID" {
				t.Errorf("code = %q, want %q", body.Code, "CSRF_TOKEN_INVALID")
			}
			if body.Category != "permission" {
				t.Errorf("category = %q, want %q", body.Category, "permission")
			}
		})
	}
}

func TestCSRFMiddleware_GETIssuesCookieOnce(t *testing.T) {
	config := CSRFConfig{CookieSecure: true, CookieDomain: "localhost"}

	rec, _ := serveCSRF(t, config, csrfRequest{method: http.MethodGet}.build())
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != csrfCookieName || len(c.Value) != 64 {
		t.Errorf("cookie = %s=%q, want 64 hex chars", c.Name, c.Value)
	}
	if c.HttpOnly {
		t.Error("CSRF cookie must be readable by the UI")
	}
	if !c.Secure {
		t.Error("Secure should follow CookieSecure")
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", c.SameSite)
	}
	if c.MaxAge != csrfCookieMaxAge {
		t.Errorf("MaxAge = %d, want %d", c.MaxAge, csrfCookieMaxAge)
	}

	// 既にCookieがあれば配り直さない
	rec, _ = serveCSRF(t, config, csrfRequest{method: http.MethodGet, cookie: "existing"}.build())
	if got := len(rec.Result().Cookies()); got != 0 {
		t.Errorf("cookies with existing token = %d, want 0", got)
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	h := NewCSRFTokenHandler(CSRFConfig{})

	t.Run("新規発行", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("cookies = %d, want 1", len(cookies))
		}
		if body["token"] == "" || body["token"] != cookies[0].Value {
			t.Errorf("token = %q, cookie = %q, want same non-empty value", body["token"], cookies[0].Value)
		}
	})

	t.Run("既存のトークンを返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["token"] != "existing" {
			t.Errorf("token = %q, want %q", body["token"], "existing")
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Error("existing cookie should not be replaced")
		}
	})
}
