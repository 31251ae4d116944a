package apiclient

import (
	"testing"
	"time"

	"github.com/hitoshi/jobboard/internal/model"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, ""},
		{201, ""},
		{204, ""},
		{400, model.CategoryValidation},
		{401, model.CategoryAuth},
		{403, model.CategoryPermission},
		{404, model.CategoryNotFound},
		{408, model.CategoryTransient},
		{429, model.CategoryTransient},
		{500, model.CategoryTransient},
		{503, model.CategoryTransient},
		{302, model.CategorySystem},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{100 * time.Millisecond, 0, 100 * time.Millisecond},
		{100 * time.Millisecond, 1, 200 * time.Millisecond},
		{100 * time.Millisecond, 3, 800 * time.Millisecond},
		{time.Second, 10, 5 * time.Second},
		{0, 0, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(tt.base, tt.attempt); got != tt.want {
			t.Errorf("CalculateBackoff(%v, %d) = %v, want %v", tt.base, tt.attempt, got, tt.want)
		}
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	if !tokenExpired(signedToken(t, now.Add(-time.Minute)), now) {
		t.Error("token expired a minute ago should be expired")
	}
	if !tokenExpired(signedToken(t, now.Add(5*time.Second)), now) {
		t.Error("token expiring within skew should be treated as expired")
	}
	if tokenExpired(signedToken(t, now.Add(time.Hour)), now) {
		t.Error("token valid for an hour should not be expired")
	}
	if tokenExpired("opaque-token", now) {
		t.Error("non-JWT token cannot be judged and should not be expired")
	}

	exp, ok := TokenExpiry(signedToken(t, now.Add(time.Hour)))
	if !ok || exp.Before(now) {
		t.Errorf("TokenExpiry() = %v, %v, want future time", exp, ok)
	}
}
