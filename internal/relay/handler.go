package relay

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"hls-relay/internal/channel"
	"hls-relay/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/MP2T"
)

// Handler exposes the viewer-facing playback endpoints using go-chi.
type Handler struct {
	gw      *Gateway
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Gateway, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(gw *Gateway, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{gw: gw, log: log, metrics: m}
}

// Mount registers the playback routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/{name}/{version}/index.m3u8", h.GetPlaylist)
	r.Get("/seg/{name}/{version}/{index}", h.GetSegment)
}

func channelFromPath(r *http.Request) channel.ID {
	return channel.ID{Name: chi.URLParam(r, "name"), Version: chi.URLParam(r, "version")}
}

// GetPlaylist handles GET /{name}/{version}/index.m3u8?token=<token>.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id := channelFromPath(r)

	m3u8, err := h.gw.Playlist(r.Context(), id, r.URL.Query().Get("token"))
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingToken),
			errors.Is(err, ErrInvalidOrExpiredToken),
			errors.Is(err, ErrTokenMismatch):
			h.log.Info("playlist request denied",
				slog.String("channel", id.String()),
				slog.String("reason", err.Error()))
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, ErrPlaylistNotReady):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			h.log.Error("playlist request failed",
				slog.String("channel", id.String()),
				slog.String("error", err.Error()))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, m3u8)
}

// GetSegment handles GET /seg/{name}/{version}/{index}. No token is checked:
// segment paths are only learned from a token-gated playlist.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	id := channelFromPath(r)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.observe(metrics.ResultNotFound)
		http.Error(w, ErrSegmentNotFound.Error(), http.StatusNotFound)
		return
	}

	seg, err := h.gw.OpenSegment(r.Context(), id, index)
	if err != nil {
		switch {
		case errors.Is(err, ErrSegmentNotFound):
			h.observe(metrics.ResultNotFound)
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.observe(metrics.ResultUpstreamError)
			h.log.Warn("segment fetch failed",
				slog.String("channel", id.String()),
				slog.Int("index", index),
				slog.String("error", err.Error()))
			http.Error(w, ErrUpstreamFetchFailed.Error(), http.StatusBadGateway)
		}
		return
	}
	defer seg.Body.Close()

	w.Header().Set("Content-Type", segmentContentType)
	if seg.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(seg.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	h.observe(metrics.ResultOK)

	if _, err := io.Copy(w, seg.Body); err != nil {
		// Headers are gone; the client sees a truncated body.
		h.log.Debug("segment stream interrupted",
			slog.String("channel", id.String()),
			slog.Int("index", index),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) observe(result string) {
	if h.metrics != nil {
		h.metrics.ObserveSegment(result)
	}
}
