package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"hls-relay/internal/channel"
	"hls-relay/internal/platform/sqlite"
	"hls-relay/internal/token"

	"github.com/redis/go-redis/v9"
)

type storeConfig struct {
	StoreBackend  string // sqlite | memory
	TokenBackend  string // sqlite | redis | memory
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// stores holds the opened persistence backends and closes them in reverse order.
type stores struct {
	registry channel.Registry
	tokens   token.Store
	closers  []io.Closer
}

func (s *stores) Close(log *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			log.Warn("store close failed", slog.String("error", err.Error()))
		}
	}
}

func openStores(ctx context.Context, cfg storeConfig, log *slog.Logger) (_ *stores, err error) {
	s := &stores{}
	defer func() {
		if err != nil {
			s.Close(log)
		}
	}()

	var db *sql.DB
	openDB := func() (*sql.DB, error) {
		if db != nil {
			return db, nil
		}
		d, err := sqlite.Open(cfg.DBPath, sqlite.DefaultConfig())
		if err != nil {
			return nil, err
		}
		db = d
		s.closers = append(s.closers, d)
		log.Info("sqlite opened", slog.String("path", cfg.DBPath))
		return d, nil
	}

	switch cfg.StoreBackend {
	case "memory":
		s.registry = channel.NewMemoryRegistry()
	case "sqlite":
		d, err := openDB()
		if err != nil {
			return nil, err
		}
		if s.registry, err = channel.NewSQLiteRegistry(ctx, d); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.TokenBackend {
	case "memory":
		s.tokens = token.NewMemoryStore()
	case "sqlite":
		d, err := openDB()
		if err != nil {
			return nil, err
		}
		if s.tokens, err = token.NewSQLiteStore(ctx, d); err != nil {
			return nil, err
		}
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s.closers = append(s.closers, client)
		rs := token.NewRedisStore(client)
		if err := rs.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		s.tokens = rs
		log.Info("redis connected", slog.String("addr", cfg.RedisAddr))
	default:
		return nil, fmt.Errorf("unknown TOKEN_BACKEND %q", cfg.TokenBackend)
	}

	return s, nil
}
