package admin

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hls-relay/internal/channel"

	"github.com/go-chi/chi/v5"
)

// APIKeyHeader carries the admin API key.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key does not match key with 401.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(APIKeyHeader))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Handler exposes the admin JSON API.
type Handler struct {
	svc        *Service
	log        *slog.Logger
	publicBase string
}

// NewHandler returns a Handler. publicBase, when set, prefixes play URLs
// (e.g. "https://relay.example"); otherwise the request host is used.
func NewHandler(svc *Service, log *slog.Logger, publicBase string) *Handler {
	return &Handler{svc: svc, log: log, publicBase: strings.TrimRight(publicBase, "/")}
}

// Mount registers the admin routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/channels", h.ListChannels)
	r.Post("/channels", h.AddChannel)
	r.Route("/channels/{name}/{version}", func(r chi.Router) {
		r.Delete("/", h.DeleteChannel)
		r.Post("/tokens", h.IssueToken)
	})
}

type addChannelRequest struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	SourceURL string `json:"source_url"`
}

type channelResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	SourceURL string `json:"source_url"`
}

type issueTokenRequest struct {
	ExpiresInSeconds int64 `json:"expires_in_seconds"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	PlayURL   string    `json:"play_url"`
}

// ListChannels handles GET /admin/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	sources, err := h.svc.ListChannels(r.Context())
	if err != nil {
		h.log.Error("list channels failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]channelResponse, 0, len(sources))
	for _, src := range sources {
		out = append(out, channelResponse{Name: src.ID.Name, Version: src.ID.Version, SourceURL: src.URL})
	}
	writeJSON(w, http.StatusOK, out)
}

// AddChannel handles POST /admin/channels.
// Body: { "name": "demo", "version": "v1", "source_url": "http://..." }.
func (h *Handler) AddChannel(w http.ResponseWriter, r *http.Request) {
	var req addChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	src := channel.Source{
		ID:  channel.ID{Name: strings.TrimSpace(req.Name), Version: strings.TrimSpace(req.Version)},
		URL: strings.TrimSpace(req.SourceURL),
	}

	if err := h.svc.AddChannel(r.Context(), src); err != nil {
		switch {
		case errors.Is(err, channel.ErrInvalidID), errors.Is(err, channel.ErrInvalidSourceURL):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, channel.ErrAlreadyExists):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.log.Error("add channel failed", slog.String("channel", src.ID.String()), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, channelResponse{Name: src.ID.Name, Version: src.ID.Version, SourceURL: src.URL})
}

// DeleteChannel handles DELETE /admin/channels/{name}/{version}.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id := channel.ID{Name: chi.URLParam(r, "name"), Version: chi.URLParam(r, "version")}

	if err := h.svc.DeleteChannel(r.Context(), id); err != nil {
		if errors.Is(err, channel.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("delete channel failed", slog.String("channel", id.String()), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IssueToken handles POST /admin/channels/{name}/{version}/tokens.
// Body (optional): { "expires_in_seconds": 3600 }.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	id := channel.ID{Name: chi.URLParam(r, "name"), Version: chi.URLParam(r, "version")}

	var req issueTokenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	if req.ExpiresInSeconds < 0 {
		writeError(w, http.StatusBadRequest, "expires_in_seconds must not be negative")
		return
	}

	rec, err := h.svc.IssueToken(r.Context(), id, time.Duration(req.ExpiresInSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, channel.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("issue token failed", slog.String("channel", id.String()), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.log.Info("token issued", slog.String("channel", id.String()), slog.Time("expires_at", rec.ExpiresAt))
	writeJSON(w, http.StatusCreated, tokenResponse{
		Token:     rec.Token,
		ExpiresAt: rec.ExpiresAt,
		PlayURL:   h.baseURL(r) + rec.PlayURL,
	})
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.publicBase != "" {
		return h.publicBase
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
