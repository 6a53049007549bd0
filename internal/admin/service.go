package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hls-relay/internal/channel"
	"hls-relay/internal/platform/metrics"
	"hls-relay/internal/relay"
	"hls-relay/internal/token"
)

// Lifecycle starts and stops channel workers. *relay.Supervisor implements it.
type Lifecycle interface {
	Start(src channel.Source) bool
	Stop(id channel.ID) bool
}

// TokenIssuer creates access tokens. *token.Manager implements it.
type TokenIssuer interface {
	Create(ctx context.Context, id channel.ID, ttl time.Duration) (token.Record, error)
}

// Service translates registry changes into worker and cache updates.
type Service struct {
	registry channel.Registry
	cache    relay.SnapshotCache
	workers  Lifecycle
	tokens   TokenIssuer
	tokenTTL time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// Config groups the collaborators of a Service.
type Config struct {
	Registry channel.Registry
	Cache    relay.SnapshotCache
	Workers  Lifecycle
	Tokens   TokenIssuer
	TokenTTL time.Duration
	Log      *slog.Logger
	Metrics  *metrics.Metrics // optional
}

// NewService returns a Service. A zero TokenTTL means token.DefaultTTL.
func NewService(cfg Config) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = token.DefaultTTL
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Service{
		registry: cfg.Registry,
		cache:    cfg.Cache,
		workers:  cfg.Workers,
		tokens:   cfg.Tokens,
		tokenTTL: cfg.TokenTTL,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
	}
}

// RestoreChannels starts a worker for every registered channel. It is called
// once at startup.
func (s *Service) RestoreChannels(ctx context.Context) (int, error) {
	sources, err := s.registry.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list channels: %w", err)
	}
	for _, src := range sources {
		s.activate(src)
	}
	return len(sources), nil
}

// AddChannel registers src and starts relaying it.
func (s *Service) AddChannel(ctx context.Context, src channel.Source) error {
	if err := channel.ValidateSource(src); err != nil {
		return err
	}
	if err := s.registry.Add(ctx, src); err != nil {
		return err
	}
	s.activate(src)
	s.log.Info("channel added", slog.String("channel", src.ID.String()))
	return nil
}

// DeleteChannel stops relaying id and removes it from the registry.
func (s *Service) DeleteChannel(ctx context.Context, id channel.ID) error {
	if _, err := s.registry.Get(ctx, id); err != nil {
		return err
	}
	s.workers.Stop(id)
	s.cache.Remove(id)
	if err := s.registry.Remove(ctx, id); err != nil {
		return err
	}
	s.log.Info("channel deleted", slog.String("channel", id.String()))
	return nil
}

// ListChannels returns every registered channel.
func (s *Service) ListChannels(ctx context.Context) ([]channel.Source, error) {
	return s.registry.List(ctx)
}

// IssueToken creates a playback token for a registered channel. A zero ttl
// uses the service default.
func (s *Service) IssueToken(ctx context.Context, id channel.ID, ttl time.Duration) (token.Record, error) {
	if _, err := s.registry.Get(ctx, id); err != nil {
		return token.Record{}, err
	}
	if ttl == 0 {
		ttl = s.tokenTTL
	}
	rec, err := s.tokens.Create(ctx, id, ttl)
	if err != nil {
		return token.Record{}, err
	}
	if s.metrics != nil {
		s.metrics.IncTokensIssued()
	}
	return rec, nil
}

// activate installs the not-yet-fetched placeholder and starts the worker.
func (s *Service) activate(src channel.Source) {
	if _, ok := s.cache.Get(src.ID); !ok {
		s.cache.Put(src.ID, relay.EmptySnapshot())
	}
	s.workers.Start(src)
}
