package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// Config holds configuration for the per-client rate limit middleware.
type Config struct {
	// RequestLimit is the number of requests allowed per Window. Zero disables limiting.
	RequestLimit int
	Window       time.Duration
	// KeyFunc extracts the limiter key; defaults to the client IP.
	KeyFunc httprate.KeyFunc
}

// Middleware returns a sliding-window rate limiter. It answers 429 with a
// Retry-After header once a client exceeds the limit.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.Window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}),
	)
}
