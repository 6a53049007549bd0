package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogger_LogsRequestIDWithoutQuery(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	h := RequestID(RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/demo/v1/index.m3u8?token=secret", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("response request id = %q", got)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Errorf("token leaked into log: %s", buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "abc-123" || entry["path"] != "/demo/v1/index.m3u8" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["status"] != float64(http.StatusServiceUnavailable) || entry["size"] != float64(len("not ready")) {
		t.Errorf("unexpected status/size %v", entry)
	}
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" || seen != rec.Header().Get(RequestIDHeader) {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}
}
