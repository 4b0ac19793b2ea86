package dashboard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vilaca/triage-dashboard/internal/domain"
)

// TestHTMLRenderer_RenderIndex tests the index page rendering.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestHTMLRenderer_RenderIndex(t *testing.T) {
	// Arrange
	renderer := NewHTMLRenderer()
	buf := &bytes.Buffer{}
	view := NewIndexView("acme", []domain.Issue{{ID: 1, Title: "<b>bold</b>", Status: domain.StatusInvalid}}, nil)

	// Act
	err := renderer.RenderIndex(buf, view)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "<!DOCTYPE html>") {
		t.Errorf("expected output to contain '<!DOCTYPE html>', got %q", output)
	}
	if !strings.Contains(output, "Invalid (1)") {
		t.Errorf("expected one invalid issue, got %q", output)
	}
	if strings.Contains(output, "<b>bold</b>") {
		t.Errorf("expected title to be escaped, got %q", output)
	}
}

// TestHTMLRenderer_RenderHealth tests the health check rendering.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestHTMLRenderer_RenderHealth(t *testing.T) {
	// Arrange
	renderer := NewHTMLRenderer()
	buf := &bytes.Buffer{}

	// Act
	err := renderer.RenderHealth(buf)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := `{"status":"ok"}`
	if buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}
}

// TestRenderMarkdown tests markdown conversion and sanitizing.
func TestRenderMarkdown(t *testing.T) {
	out := string(RenderMarkdown("**steps**\n\n<img src=x onerror=alert(1)>"))

	if !strings.Contains(out, "<strong>steps</strong>") {
		t.Errorf("expected bold markup, got %q", out)
	}
	if strings.Contains(out, "onerror") {
		t.Errorf("expected event handler to be stripped, got %q", out)
	}
	if RenderMarkdown("") != "" {
		t.Errorf("expected empty body to render empty")
	}
}

// TestNewIndexView tests status bucketing.
func TestNewIndexView(t *testing.T) {
	view := NewIndexView("acme", []domain.Issue{
		{ID: 1, Status: domain.StatusValid},
		{ID: 2},
		{ID: 3, Status: domain.StatusUnmarked},
	}, nil)

	if len(view.Valid) != 1 || len(view.Unmarked) != 2 || len(view.Invalid) != 0 {
		t.Errorf("unexpected buckets: %d valid, %d unmarked, %d invalid", len(view.Valid), len(view.Unmarked), len(view.Invalid))
	}
	if view.Total() != 3 {
		t.Errorf("expected total 3, got %d", view.Total())
	}
}
