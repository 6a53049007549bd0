package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"hls-relay/internal/channel"
)

// DefaultSegmentTimeout bounds connecting to the origin, waiting for segment
// response headers and every gap between body reads.
const DefaultSegmentTimeout = 8 * time.Second

// TokenValidator resolves an access token to the channel it unlocks.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (channel.ID, bool, error)
}

// Segment is an open upstream segment response. Callers must close Body.
type Segment struct {
	Body          io.ReadCloser
	ContentLength int64
}

// Gateway answers viewer requests from the snapshot cache.
type Gateway struct {
	cache       SnapshotCache
	tokens      TokenValidator
	client      *http.Client
	idleTimeout time.Duration
}

// NewGateway returns a Gateway. A segment body that delivers no bytes for
// timeout is aborted. A non-positive timeout means DefaultSegmentTimeout and a
// nil client gets one built by NewSegmentClient.
func NewGateway(cache SnapshotCache, tokens TokenValidator, client *http.Client, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultSegmentTimeout
	}
	if client == nil {
		client = NewSegmentClient(timeout)
	}
	return &Gateway{cache: cache, tokens: tokens, client: client, idleTimeout: timeout}
}

// NewSegmentClient returns an HTTP client whose dial and response-header
// waits are bounded by timeout.
func NewSegmentClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = timeout
	tr.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: tr}
}

// Playlist returns the rewritten playlist for id after checking that tok is a
// live token bound to exactly that channel.
func (g *Gateway) Playlist(ctx context.Context, id channel.ID, tok string) (string, error) {
	if tok == "" {
		return "", ErrMissingToken
	}

	bound, ok, err := g.tokens.Validate(ctx, tok)
	if err != nil {
		return "", fmt.Errorf("validate token: %w", err)
	}
	if !ok {
		return "", ErrInvalidOrExpiredToken
	}
	if bound != id {
		return "", ErrTokenMismatch
	}

	snap, ok := g.cache.Get(id)
	if !ok || !snap.Ready() {
		return "", ErrPlaylistNotReady
	}
	return snap.Playlist, nil
}

// OpenSegment resolves index against the channel's current segment table and
// opens the origin segment. The index is looked up in whatever snapshot is
// current, so a reference from an older playlist may now name another segment.
func (g *Gateway) OpenSegment(ctx context.Context, id channel.ID, index int) (*Segment, error) {
	snap, ok := g.cache.Get(id)
	if !ok {
		return nil, ErrSegmentNotFound
	}
	target, ok := snap.SegmentURL(index)
	if !ok {
		return nil, ErrSegmentNotFound
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamFetchFailed, resp.StatusCode)
	}

	return &Segment{
		Body:          newIdleTimeoutBody(resp.Body, g.idleTimeout, cancel),
		ContentLength: resp.ContentLength,
	}, nil
}

// idleTimeoutBody cancels the upstream request when no bytes arrive for
// timeout. A pending Read then fails with the context error.
type idleTimeoutBody struct {
	io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
}

func newIdleTimeoutBody(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutBody {
	return &idleTimeoutBody{
		ReadCloser: rc,
		timeout:    timeout,
		timer:      time.AfterFunc(timeout, cancel),
		cancel:     cancel,
	}
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.timer.Reset(b.timeout)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
