package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/", strings.NewReader(`{"id": "abc-123", "count": 2}`))
	req.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.IsJSON() {
		t.Fatalf("expected JSON content")
	}
	if got := p.Get("id"); got != "abc-123" {
		t.Errorf("Get(id) = %q, want abc-123", got)
	}
	if got := p.Get("count"); got != "2" {
		t.Errorf("Get(count) = %q, want 2", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("id=abc-123&name=test"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.IsJSON() {
		t.Fatalf("expected form content")
	}
	if got := p.Get("id"); got != "abc-123" {
		t.Errorf("Get(id) = %q, want abc-123", got)
	}
}

func TestRequestBodyParser_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := p.Get("id"); got != "" {
		t.Errorf("Get(id) = %q, want empty", got)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"id": `))

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
	// Parse is idempotent and keeps returning the error.
	if err := p.Parse(); err == nil {
		t.Fatalf("expected cached error on second Parse")
	}
}

func TestRequestBodyParser_SanitizesValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("id=%00abc%07&name=+ok+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := p.Get("id"); got != "abc" {
		t.Errorf("Get(id) = %q, want control characters stripped", got)
	}
	if got := p.Get("name"); got != "ok" {
		t.Errorf("Get(name) = %q, want trimmed", got)
	}
}

func TestRequireMethod(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if resp := RequireMethod(req, http.MethodGet); resp != nil {
		t.Fatalf("GET should be allowed")
	}
	if resp := RequirePOST(req); resp == nil {
		t.Fatalf("GET should be rejected by RequirePOST")
	}

	w := httptest.NewRecorder()
	RequireDeleteOrPOST(req).Write(w)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "DELETE, POST" {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "€0.00"},
		{1234, "€12.34"},
		{-1234, "-€12.34"},
		{190000, "€1900.00"},
		{5, "€0.05"},
	}
	for _, tt := range tests {
		if got := formatEuros(tt.cents); got != tt.want {
			t.Errorf("formatEuros(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}

	if got := formatPercent(42.666); got != "42.7%" {
		t.Errorf("formatPercent = %q", got)
	}
	if got := formatMultiple(22.5); got != "22.5x" {
		t.Errorf("formatMultiple = %q", got)
	}
	if got := formatPrice(467.127); got != "$467.13" {
		t.Errorf("formatPrice = %q", got)
	}
}

func TestParseNumericFields(t *testing.T) {
	if got := parseFloatField("9,5", 0); got != 9.5 {
		t.Errorf("parseFloatField comma = %v", got)
	}
	if got := parseFloatField("", 12); got != 12 {
		t.Errorf("parseFloatField empty = %v, want default", got)
	}
	if got := parseFloatField("abc", 12); got != 12 {
		t.Errorf("parseFloatField invalid = %v, want default", got)
	}
	if got := parseIntField("7", 5); got != 7 {
		t.Errorf("parseIntField = %v", got)
	}
	if got := parseIntField("x", 5); got != 5 {
		t.Errorf("parseIntField invalid = %v, want default", got)
	}
}
