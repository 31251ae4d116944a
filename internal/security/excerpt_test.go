package security

import (
	"testing"

	"github.com/hitoshi/jobboard/internal/model"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		want     string
	}{
		{"empty", "", 10, ""},
		{"tags stripped and whitespace collapsed", "<p>Build  <strong>APIs</strong></p>\n<ul><li>Go</li></ul>", 50, "Build APIs Go"},
		{"entities decoded", "<p>R&amp;D team</p>", 50, "R&D team"},
		{"script content dropped", `<p>Hi</p><script>alert("x")</script><p>there</p>`, 50, "Hi there"},
		{"truncated by runes", "<p>東京でバックエンド開発</p>", 4, "東京でバ…"},
		{"zero limit", "<p>text</p>", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.input, tt.maxRunes); got != tt.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.want)
			}
		})
	}
}

func TestSanitizer_Jobs_SetsSummary(t *testing.T) {
	s := NewSanitizer()
	jobs := []model.Job{{Title: "Backend", Description: "<p>Build <em>APIs</em></p><script>x()</script>"}}

	s.Jobs(jobs)

	if jobs[0].Summary != "Build APIs" {
		t.Errorf("Summary = %q, want %q", jobs[0].Summary, "Build APIs")
	}
	if jobs[0].Description != "<p>Build <em>APIs</em></p>" {
		t.Errorf("Description = %q, want sanitized rich text", jobs[0].Description)
	}
}
