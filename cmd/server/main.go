package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-relay/internal/admin"
	"hls-relay/internal/channel"
	"hls-relay/internal/platform/config"
	"hls-relay/internal/platform/logger"
	"hls-relay/internal/platform/metrics"
	"hls-relay/internal/platform/ratelimit"
	"hls-relay/internal/relay"
	"hls-relay/internal/token"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	pollInterval := config.GetEnvDuration("POLL_INTERVAL", relay.DefaultPollInterval)
	fetchTimeout := config.GetEnvDuration("PLAYLIST_FETCH_TIMEOUT", relay.DefaultFetchTimeout)
	segmentTimeout := config.GetEnvDuration("SEGMENT_FETCH_TIMEOUT", relay.DefaultSegmentTimeout)
	tokenTTL := config.GetEnvDuration("TOKEN_TTL", token.DefaultTTL)
	adminKey := config.GetEnv("ADMIN_API_KEY", "")
	rateLimit := config.GetEnvInt("PLAYBACK_RATE_LIMIT", 0)
	publicBase := config.GetEnv("PUBLIC_BASE_URL", "")
	storeCfg := storeConfig{
		StoreBackend:  config.GetEnv("STORE_BACKEND", "sqlite"),
		TokenBackend:  config.GetEnv("TOKEN_BACKEND", "sqlite"),
		DBPath:        config.GetEnv("DB_PATH", "channels.db"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
	}

	log := logger.New(os.Stdout, logLevel, logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, storeCfg, log)
	if err != nil {
		log.Error("store setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close(log)

	met := metrics.New()
	cache := relay.NewInMemoryCache()
	tokens := token.NewManager(st.tokens)

	workerCfg := relay.WorkerConfig{
		Cache:        cache,
		Client:       &http.Client{},
		Sweeper:      tokens,
		Interval:     pollInterval,
		FetchTimeout: fetchTimeout,
		Log:          log,
		Metrics:      met,
	}
	sup := relay.NewSupervisor(func(src channel.Source) relay.Runner {
		return relay.NewWorker(src, workerCfg)
	}, log)

	gw := relay.NewGateway(cache, tokens, relay.NewSegmentClient(segmentTimeout), segmentTimeout)
	playback := relay.NewHandler(gw, log, met)

	svc := admin.NewService(admin.Config{
		Registry: st.registry,
		Cache:    cache,
		Workers:  sup,
		Tokens:   tokens,
		TokenTTL: tokenTTL,
		Log:      log,
		Metrics:  met,
	})
	restored, err := svc.RestoreChannels(ctx)
	if err != nil {
		log.Error("restore channels failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(logger.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetActiveWorkers(sup.Len())
			met.SetCachedChannels(cache.Len())
		}).ServeHTTP(w, r)
	})
	if adminKey != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAPIKey(adminKey))
			admin.NewHandler(svc, log, publicBase).Mount(r)
		})
	} else {
		log.Warn("ADMIN_API_KEY not set, admin API disabled")
	}
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ratelimit.Config{RequestLimit: rateLimit, Window: time.Minute}))
		playback.Mount(r)
	})

	srv := &http.Server{Addr: ":" + port, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			slog.String("port", port),
			slog.Int("channels", restored),
			slog.String("store_backend", storeCfg.StoreBackend),
			slog.String("token_backend", storeCfg.TokenBackend),
			slog.String("log_level", logLevel),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := sup.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		st.Close(log)
		os.Exit(1)
	}

	log.Info("server stopped")
}
