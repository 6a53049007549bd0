package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hls-relay/internal/channel"
	"hls-relay/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioPlaylist = "#EXTM3U\n#EXTINF:10,\nseg0.ts\n#EXTINF:10,\nseg1.ts\n"

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) Sweep(context.Context, time.Time) (int, error) {
	s.calls.Add(1)
	return 0, nil
}

// origin serves scenarioPlaylist until fail is set, then answers 500.
type origin struct {
	srv      *httptest.Server
	requests atomic.Int32
	fail     atomic.Bool
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.requests.Add(1)
		if o.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(scenarioPlaylist))
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func newTestWorker(src channel.Source, cache SnapshotCache, sw Sweeper) *Worker {
	return NewWorker(src, WorkerConfig{
		Cache:        cache,
		Client:       &http.Client{},
		Sweeper:      sw,
		Interval:     10 * time.Millisecond,
		FetchTimeout: time.Second,
		Log:          logger.Discard(),
	})
}

func TestWorker_PublishesSnapshotAndSweeps(t *testing.T) {
	o := newOrigin(t)
	cache := NewInMemoryCache()
	cache.Put(demoV1, EmptySnapshot())
	sw := &countingSweeper{}
	src := channel.Source{ID: demoV1, URL: o.srv.URL + "/live/stream.m3u8"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestWorker(src, cache, sw).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		snap, ok := cache.Get(demoV1)
		return ok && snap.Ready()
	}, 2*time.Second, 5*time.Millisecond)

	snap, _ := cache.Get(demoV1)
	assert.Equal(t, "#EXTM3U\n#EXTINF:10,\n/seg/demo/v1/0\n#EXTINF:10,\n/seg/demo/v1/1", snap.Playlist)
	assert.Equal(t, []string{o.srv.URL + "/live/seg0.ts", o.srv.URL + "/live/seg1.ts"}, snap.Segments)

	require.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_FailureKeepsPreviousSnapshot(t *testing.T) {
	o := newOrigin(t)
	cache := NewInMemoryCache()
	cache.Put(demoV1, EmptySnapshot())
	src := channel.Source{ID: demoV1, URL: o.srv.URL + "/live/stream.m3u8"}
	w := newTestWorker(src, cache, nil)
	ctx := context.Background()

	w.cycle(ctx)
	first, ok := cache.Get(demoV1)
	require.True(t, ok)
	require.True(t, first.Ready())

	o.fail.Store(true)
	w.cycle(ctx)
	w.cycle(ctx)

	got, ok := cache.Get(demoV1)
	require.True(t, ok)
	assert.Same(t, first, got, "failed cycles must not replace or clear the snapshot")
}

func TestWorker_PollErrors(t *testing.T) {
	o := newOrigin(t)
	o.fail.Store(true)
	w := newTestWorker(channel.Source{ID: demoV1, URL: o.srv.URL + "/x.m3u8"}, NewInMemoryCache(), nil)

	_, err := w.poll(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)

	unreachable := newTestWorker(channel.Source{ID: demoV1, URL: "http://127.0.0.1:1/x.m3u8"}, NewInMemoryCache(), nil)
	_, err = unreachable.poll(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)
}

func TestWorker_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	w := NewWorker(channel.Source{ID: demoV1, URL: slow.URL + "/s.m3u8"}, WorkerConfig{
		Cache:        NewInMemoryCache(),
		FetchTimeout: 50 * time.Millisecond,
		Log:          logger.Discard(),
	})

	start := time.Now()
	_, err := w.poll(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWorker_CancelledCycleDoesNotPublish(t *testing.T) {
	o := newOrigin(t)
	cache := NewInMemoryCache()
	w := newTestWorker(channel.Source{ID: demoV1, URL: o.srv.URL + "/live/stream.m3u8"}, cache, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.cycle(ctx)

	_, ok := cache.Get(demoV1)
	assert.False(t, ok)
}

func TestWorker_OversizedPlaylistKeepsPreviousSnapshot(t *testing.T) {
	body := "#EXTM3U\n" + strings.Repeat("#", maxPlaylistBytes) + "\nsegment_0001.ts\n"
	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer big.Close()

	cache := NewInMemoryCache()
	previous := &Snapshot{Playlist: "#EXTM3U\n/seg/demo/v1/0", Segments: []string{big.URL + "/old.ts"}}
	cache.Put(demoV1, previous)
	w := newTestWorker(channel.Source{ID: demoV1, URL: big.URL + "/live/stream.m3u8"}, cache, nil)

	_, err := w.poll(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamFetchFailed)

	w.cycle(context.Background())
	got, _ := cache.Get(demoV1)
	assert.Same(t, previous, got)
}

func TestWorker_PlaylistAtSizeLimitIsAccepted(t *testing.T) {
	head := "#EXTM3U\nseg0.ts\n"
	body := head + strings.Repeat("#", maxPlaylistBytes-len(head))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	w := newTestWorker(channel.Source{ID: demoV1, URL: srv.URL + "/live/stream.m3u8"}, NewInMemoryCache(), nil)
	snap, err := w.poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/live/seg0.ts"}, snap.Segments)
}

func TestWorker_RemovedChannelStaysRemoved(t *testing.T) {
	o := newOrigin(t)
	cache := NewInMemoryCache()
	w := newTestWorker(channel.Source{ID: demoV1, URL: o.srv.URL + "/live/stream.m3u8"}, cache, nil)

	cache.Put(demoV1, EmptySnapshot())
	cache.Remove(demoV1)
	w.cycle(context.Background())

	_, ok := cache.Get(demoV1)
	assert.False(t, ok, "a cycle finishing after removal must not re-add the channel")
	assert.EqualValues(t, 1, o.requests.Load())
}
