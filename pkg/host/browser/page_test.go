package browser

import "testing"

func TestNormalizeLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"log", "log"},
		{"info", "info"},
		{"error", "error"},
		{"debug", "debug"},
		{"warn", "warn"},
		// Chromium reports console.warn as "warning".
		{"warning", "warn"},
		{"dir", "log"},
		{"trace", "log"},
		{"", "log"},
	}
	for _, tc := range cases {
		if got := normalizeLevel(tc.in); got != tc.want {
			t.Errorf("normalizeLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatEvalResult(t *testing.T) {
	if got := formatEvalResult(nil); got != "undefined" {
		t.Errorf("formatEvalResult(nil) = %q, want undefined", got)
	}
	if got := formatEvalResult("Cart"); got != "Cart" {
		t.Errorf("formatEvalResult(string) = %q, want unquoted passthrough", got)
	}
	if got := formatEvalResult(42); got != "42" {
		t.Errorf("formatEvalResult(42) = %q", got)
	}
	if got := formatEvalResult(true); got != "true" {
		t.Errorf("formatEvalResult(true) = %q", got)
	}
	got := formatEvalResult(map[string]interface{}{"count": 3})
	if got != "{\n  \"count\": 3\n}" {
		t.Errorf("formatEvalResult(map) = %q", got)
	}
}
