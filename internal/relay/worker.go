package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"hls-relay/internal/channel"
	"hls-relay/internal/platform/metrics"
)

const (
	// DefaultPollInterval is the pause between two playlist fetches of one channel.
	DefaultPollInterval = 3 * time.Second

	// DefaultFetchTimeout bounds a single origin playlist request.
	DefaultFetchTimeout = 6 * time.Second

	maxPlaylistBytes = 4 << 20
)

// Sweeper removes expired access tokens. Workers call it once per cycle.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// WorkerConfig carries the dependencies shared by all workers.
type WorkerConfig struct {
	Cache        SnapshotCache
	Client       *http.Client
	Sweeper      Sweeper // optional
	Interval     time.Duration
	FetchTimeout time.Duration
	Log          *slog.Logger
	Metrics      *metrics.Metrics // optional
}

// Worker keeps the snapshot of one channel fresh by polling its origin.
type Worker struct {
	src channel.Source
	cfg WorkerConfig
	log *slog.Logger
	now func() time.Time
}

// NewWorker returns a Worker for src. Zero durations fall back to the defaults.
func NewWorker(src channel.Source, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		src: src,
		cfg: cfg,
		log: log.With(slog.String("channel", src.ID.Name), slog.String("version", src.ID.Version)),
		now: time.Now,
	}
}

// Run polls until ctx is cancelled. Cancellation is observed at the top of
// every cycle and during the wait between cycles.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", slog.String("source", w.src.URL))
	defer w.log.Info("worker stopped")

	for ctx.Err() == nil {
		w.cycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.Interval):
		}
	}
}

// cycle performs one fetch-rewrite-publish round followed by a token sweep.
// A snapshot is published only while the channel still has a cache entry.
func (w *Worker) cycle(ctx context.Context) {
	snap, err := w.poll(ctx)
	if ctx.Err() != nil {
		return
	}

	switch {
	case err != nil:
		w.log.Warn("playlist update failed", slog.String("error", err.Error()))
		w.observe(metrics.ResultError)
	case !w.cfg.Cache.Replace(w.src.ID, snap):
		w.log.Debug("channel no longer cached, snapshot dropped")
	default:
		w.log.Debug("playlist updated", slog.Int("segments", len(snap.Segments)))
		w.observe(metrics.ResultOK)
	}

	if w.cfg.Sweeper == nil {
		return
	}
	n, err := w.cfg.Sweeper.Sweep(ctx, w.now())
	if err != nil {
		w.log.Warn("token sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		w.log.Debug("expired tokens removed", slog.Int("count", n))
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.AddTokensSwept(n)
		}
	}
}

// poll fetches the origin playlist and rewrites it into a new Snapshot.
func (w *Worker) poll(ctx context.Context) (*Snapshot, error) {
	origin, err := url.Parse(w.src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := w.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamFetchFailed, err)
	}
	if len(body) > maxPlaylistBytes {
		return nil, fmt.Errorf("%w: playlist exceeds %d bytes", ErrUpstreamFetchFailed, maxPlaylistBytes)
	}

	return RewritePlaylist(w.src.ID, origin, string(body))
}

func (w *Worker) observe(result string) {
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.ObservePlaylistFetch(result)
	}
}
