package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "GET /api/accounts", "GET /api/accounts"},
		{"newline", "evil\ninjection", "evil injection"},
		{"carriage return", "evil\rinjection", "evil injection"},
		{"null byte", "evil\x00injection", "evilinjection"},
		{"ansi escape", "evil\x1b[31minjection", "evil[31minjection"},
		{"tab preserved", "a\tb", "a\tb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.want {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	config := LoggingConfig{
		SkipPaths:       []string{"/internal"},
		LogHealthChecks: false,
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/api/accounts", false},
		{"/internal/debug", true},
		{"/healthz", true},
		{"/readyz", true},
		{"/health", true},
	}

	for _, tt := range tests {
		if got := shouldSkip(tt.path, config); got != tt.want {
			t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := getClientIP(r); got != "10.0.0.1" {
		t.Errorf("getClientIP = %q, want 10.0.0.1", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := getClientIP(r); got != "203.0.113.7" {
		t.Errorf("getClientIP with XFF = %q, want 203.0.113.7", got)
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK) // second call must be ignored
	if _, err := rw.Write([]byte("short and stout")); err != nil {
		t.Fatal(err)
	}

	if rw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want 418", rw.statusCode)
	}
	if rw.bytesWritten != int64(len("short and stout")) {
		t.Errorf("bytesWritten = %d", rw.bytesWritten)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/accounts", "/api/accounts"},
		{"/api/accounts/acct1", "/api/accounts/acct1"},
		{"/api/accounts/acct1/posts", "/api/accounts/acct1/{path}"},
		{"/api/posts/acct1/2024-01-01_10-00-00_UTC", "/api/posts/acct1/{path}"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
