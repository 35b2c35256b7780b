// Command cadenza is the main entry point for the Cadenza recommendation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cadenza-fm/cadenza/internal/api"
	"github.com/cadenza-fm/cadenza/internal/cache"
	"github.com/cadenza-fm/cadenza/internal/config"
	"github.com/cadenza-fm/cadenza/internal/health"
	"github.com/cadenza-fm/cadenza/internal/observe"
	"github.com/cadenza-fm/cadenza/internal/push"
	"github.com/cadenza-fm/cadenza/internal/recommend"
	"github.com/cadenza-fm/cadenza/internal/store/postgres"
	"github.com/cadenza-fm/cadenza/internal/taste"
)

// shutdownTimeout bounds graceful HTTP shutdown after a termination signal.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cadenza: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cadenza: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it without
	// swapping the handler.
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("cadenza starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "cadenza"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Storage ───────────────────────────────────────────────────────────────
	gw, err := postgres.NewGateway(ctx, cfg.Store.PostgresDSN, postgres.Options{
		MaxConns: int32(cfg.Store.MaxConns),
	})
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		return 1
	}
	defer gw.Close()

	checks := []health.Checker{{Name: "postgres", Check: gw.Ping}}
	var recCache cache.Cache = cache.Noop{}
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "err", err)
			return 1
		}
		defer rc.Close()
		recCache = rc
		checks = append(checks, health.Checker{Name: "redis", Check: rc.Ping})
	} else {
		slog.Warn("no redis address configured, recommendation caching disabled")
	}

	// ── Recommendation core ───────────────────────────────────────────────────
	graphs := taste.NewGraphEngine(gw)
	embedder := taste.NewProfileEmbedder(gw)
	pipeline := recommend.New(gw, recCache, graphs, embedder,
		pipelineConfig(cfg.Recommend),
		recommend.WithMetrics(metrics),
	)

	registry := push.NewRegistry(metrics)
	pushEngine := push.NewEngine(registry, pipeline, logger, metrics)
	pipeline.SetRefreshNotifier(pushEngine)

	// ── HTTP server ───────────────────────────────────────────────────────────
	server := api.New(api.Deps{
		Gateway:     gw,
		Pipeline:    pipeline,
		Registry:    registry,
		PushEngine:  pushEngine,
		Health:      health.New(checks...),
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         logger,
		Metrics:     metrics,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.RecommendChanged {
			pipeline.UpdateConfig(pipelineConfig(d.NewRecommend))
			slog.Info("recommendation tuning reloaded")
			if old.Recommend.PopularityRefresh() != new.Recommend.PopularityRefresh() {
				slog.Warn("popularity refresh interval changed, restart required to apply")
			}
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if tls := cfg.Server.TLS; tls != nil {
			slog.Info("listening", "addr", cfg.Server.ListenAddr, "tls", true)
			err := httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
		slog.Info("listening", "addr", cfg.Server.ListenAddr, "tls", false)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutdown signal received, stopping…")
		return httpServer.Shutdown(shutdownCtx)
	})

	if interval := cfg.Recommend.PopularityRefresh(); interval > 0 {
		g.Go(func() error {
			return refreshPopularityLoop(gctx, gw, interval)
		})
	} else {
		slog.Info("popularity refresh disabled")
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// refreshPopularityLoop periodically rebuilds the popularity rollup the
// cold-start path serves from. A failed refresh keeps the previous rollup,
// so errors are logged and the loop keeps going.
func refreshPopularityLoop(ctx context.Context, gw *postgres.Gateway, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := gw.RefreshPopularTracks(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return ctx.Err()
				}
				slog.Warn("popularity refresh failed", "err", err)
				continue
			}
			slog.Debug("popularity rollup refreshed", "took", time.Since(start))
		}
	}
}

// pipelineConfig maps the YAML tuning section onto the pipeline's config,
// resolving duration fields and defaults through the accessor methods.
func pipelineConfig(r config.RecommendConfig) recommend.Config {
	return recommend.Config{
		CacheTTL:             r.CacheTTL(),
		DefaultLimit:         r.DefaultLimit,
		MaxSameArtist:        r.MaxSameArtist,
		SkipWindow:           r.SkipWindow(),
		SkipThreshold:        r.SkipThreshold,
		InterestGraphEnabled: r.GraphEnabled(),
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
