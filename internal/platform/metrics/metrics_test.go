package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_CountersAndGauges(t *testing.T) {
	m := New()
	m.ObservePlaylistFetch(ResultOK)
	m.ObservePlaylistFetch(ResultError)
	m.ObserveSegment(ResultNotFound)
	m.IncTokensIssued()
	m.AddTokensSwept(3)
	m.AddTokensSwept(0)

	out := scrape(t, m, func() {
		m.SetActiveWorkers(2)
		m.SetCachedChannels(4)
	})

	for _, want := range []string{
		`hls_relay_playlist_fetches_total{result="ok"} 1`,
		`hls_relay_playlist_fetches_total{result="error"} 1`,
		`hls_relay_segments_proxied_total{result="not_found"} 1`,
		`hls_relay_tokens_issued_total 1`,
		`hls_relay_tokens_swept_total 3`,
		`hls_relay_active_workers 2`,
		`hls_relay_cached_channels 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in scrape:\n%s", want, out)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, p := range []string{"/ok", "/fail", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	out := scrape(t, m, nil)
	if !strings.Contains(out, "hls_relay_requests_total 3") {
		t.Errorf("expected 3 requests:\n%s", out)
	}
	if !strings.Contains(out, "hls_relay_errors_total 1") {
		t.Errorf("expected 1 error:\n%s", out)
	}
}

func TestRequestMiddleware_NilMetrics(t *testing.T) {
	called := false
	h := RequestMiddleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("next handler not called")
	}
}
