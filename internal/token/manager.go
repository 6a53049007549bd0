package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"hls-relay/internal/channel"
)

// DefaultTTL is how long a token stays valid when no TTL is given.
const DefaultTTL = 24 * time.Hour

// tokenBytes is the amount of random data behind each token (128 bits).
const tokenBytes = 16

// ErrInvalidTTL is returned when Create is asked for a non-positive lifetime.
var ErrInvalidTTL = errors.New("token ttl must be positive")

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithGenerator replaces the random token generator.
func WithGenerator(gen func() (string, error)) Option {
	return func(m *Manager) {
		if gen != nil {
			m.generate = gen
		}
	}
}

// Manager issues and validates channel-bound access tokens against a Store.
type Manager struct {
	store    Store
	now      func() time.Time
	generate func() (string, error)
}

// NewManager returns a Manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		now:      time.Now,
		generate: generateToken,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create issues a token for id that expires ttl from now. A ttl of zero
// means DefaultTTL.
func (m *Manager) Create(ctx context.Context, id channel.ID, ttl time.Duration) (Record, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < 0 {
		return Record{}, ErrInvalidTTL
	}

	tok, err := m.generate()
	if err != nil {
		return Record{}, fmt.Errorf("generate token: %w", err)
	}

	rec := Record{
		Token:     tok,
		Channel:   id,
		ExpiresAt: m.now().Add(ttl).UTC(),
		PlayURL:   PlayURL(id, tok),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("save token: %w", err)
	}
	return rec, nil
}

// Validate returns the channel bound to tok when the token exists and has not
// expired. Expired records are deleted on the way out.
func (m *Manager) Validate(ctx context.Context, tok string) (channel.ID, bool, error) {
	if tok == "" {
		return channel.ID{}, false, nil
	}
	rec, ok, err := m.store.Get(ctx, tok)
	if err != nil {
		return channel.ID{}, false, err
	}
	if !ok {
		return channel.ID{}, false, nil
	}
	if !m.now().Before(rec.ExpiresAt) {
		if err := m.store.Delete(ctx, tok); err != nil {
			return channel.ID{}, false, err
		}
		return channel.ID{}, false, nil
	}
	return rec.Channel, true, nil
}

// Sweep removes every record that expired before now.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int, error) {
	return m.store.PurgeExpired(ctx, now)
}

// PlayURL returns the host-relative playlist URL for a token.
func PlayURL(id channel.ID, tok string) string {
	return fmt.Sprintf("/%s/%s/index.m3u8?token=%s", id.Name, id.Version, tok)
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
