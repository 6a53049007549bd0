package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the HLS relay.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	playlistFetches   *prometheus.CounterVec
	segmentsProxied   *prometheus.CounterVec
	tokensIssuedTotal prometheus.Counter
	tokensSweptTotal  prometheus.Counter
	activeWorkers     prometheus.Gauge
	cachedChannels    prometheus.Gauge
}

// Label values for the result dimension.
const (
	ResultOK            = "ok"
	ResultError         = "error"
	ResultNotFound      = "not_found"
	ResultUpstreamError = "upstream_error"
)

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	playlistFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_playlist_fetches_total",
		Help: "Origin playlist poll cycles by result",
	}, []string{"result"})
	segmentsProxied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_segments_proxied_total",
		Help: "Segment requests by result",
	}, []string{"result"})
	tokensIssuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_tokens_issued_total",
		Help: "Total number of access tokens issued",
	})
	tokensSweptTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_tokens_swept_total",
		Help: "Total number of expired access tokens removed by sweeps",
	})
	activeWorkers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_relay_active_workers",
		Help: "Number of running playlist workers",
	})
	cachedChannels := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_relay_cached_channels",
		Help: "Number of channels with an entry in the snapshot cache",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		playlistFetches,
		segmentsProxied,
		tokensIssuedTotal,
		tokensSweptTotal,
		activeWorkers,
		cachedChannels,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		playlistFetches:   playlistFetches,
		segmentsProxied:   segmentsProxied,
		tokensIssuedTotal: tokensIssuedTotal,
		tokensSweptTotal:  tokensSweptTotal,
		activeWorkers:     activeWorkers,
		cachedChannels:    cachedChannels,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObservePlaylistFetch counts one poll cycle.
func (m *Metrics) ObservePlaylistFetch(result string) {
	m.playlistFetches.WithLabelValues(result).Inc()
}

// ObserveSegment counts one segment request.
func (m *Metrics) ObserveSegment(result string) {
	m.segmentsProxied.WithLabelValues(result).Inc()
}

// IncTokensIssued increments the issued tokens counter.
func (m *Metrics) IncTokensIssued() {
	m.tokensIssuedTotal.Inc()
}

// AddTokensSwept adds n removed tokens.
func (m *Metrics) AddTokensSwept(n int) {
	if n > 0 {
		m.tokensSweptTotal.Add(float64(n))
	}
}

// SetActiveWorkers sets the active workers gauge.
func (m *Metrics) SetActiveWorkers(n int) {
	m.activeWorkers.Set(float64(n))
}

// SetCachedChannels sets the cached channels gauge.
func (m *Metrics) SetCachedChannels(n int) {
	m.cachedChannels.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
