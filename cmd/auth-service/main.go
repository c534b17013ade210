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
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/books-auth/internal/cache"
	"github.com/pribylovaa/books-auth/internal/config"
	"github.com/pribylovaa/books-auth/internal/metrics"
	"github.com/pribylovaa/books-auth/internal/password"
	"github.com/pribylovaa/books-auth/internal/pkg/clock"
	"github.com/pribylovaa/books-auth/internal/pkg/log"
	"github.com/pribylovaa/books-auth/internal/pkg/tracing"
	"github.com/pribylovaa/books-auth/internal/revocation"
	"github.com/pribylovaa/books-auth/internal/service"
	"github.com/pribylovaa/books-auth/internal/storage"
	"github.com/pribylovaa/books-auth/internal/storage/postgres"
	"github.com/pribylovaa/books-auth/internal/storage/sqlite"
	"github.com/pribylovaa/books-auth/internal/token"
	transport "github.com/pribylovaa/books-auth/internal/transport/http"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("starting application", "env", cfg.Env)

	if err := run(cfg, logger); err != nil {
		logger.Error("service_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger.Info("service_stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()
	rootCtx = log.Into(rootCtx, logger)

	shutdownTracing, err := tracing.Setup(rootCtx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("err", err.Error()))
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		logger.Info("tracing_enabled", slog.String("endpoint", cfg.Tracing.Endpoint))
	}

	// Подключение к хранилищу c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, pg, err := openStorage(dbCtx, cfg.DB)
	dbCancel()
	if err != nil {
		return err
	}
	defer str.Close()
	logger.Info("storage_connected", slog.String("driver", cfg.DB.Driver))

	regCtx, regCancel := context.WithTimeout(rootCtx, 5*time.Second)
	registry, closeRegistry, err := openRegistry(regCtx, cfg, pg)
	regCancel()
	if err != nil {
		return err
	}
	defer closeRegistry()
	logger.Info("revocation_registry_ready", slog.String("backend", cfg.Revocation.Backend))

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return err
	}

	clk := clock.System{}
	tokens, err := token.New(cfg.Auth, clk)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	srvc := service.New(str, hasher, tokens, registry, cfg.Auth,
		service.WithClock(clk),
		service.WithMetrics(m),
		service.WithRehashOnLogin(cfg.Password.RehashOnLogin),
	)
	logger.Info("service_initialized", slog.String("password_algorithm", hasher.Algorithm()))

	// Фоновая очистка истёкших записей реестра отзыва.
	revocation.StartJanitor(rootCtx, registry, clk, cfg.Revocation.JanitorPeriod, m.Purged)

	var ready atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := str.Ping(ctx); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/", transport.NewRouter(srvc, transport.Options{
		Logger:  logger,
		Metrics: m,
		Timeout: cfg.Timeouts.Service,
	}))

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen_start", slog.String("addr", httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
	}

	ready.Store(false)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}

	if serveErr != nil {
		return fmt.Errorf("http serve: %w", serveErr)
	}

	return nil
}

// openStorage открывает хранилище пользователей по db.driver.
// Для postgres дополнительно возвращает *postgres.Storage: он же может
// служить реестром отзыва.
func openStorage(ctx context.Context, cfg config.DBConfig) (storage.Storage, *postgres.Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		st, err := sqlite.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
		return st, st, nil
	}
}

// openRegistry создаёт реестр отзыва по revocation.backend.
func openRegistry(ctx context.Context, cfg *config.Config, pg *postgres.Storage) (revocation.Registry, func(), error) {
	switch cfg.Revocation.Backend {
	case config.RevocationRedis:
		rdb, err := cache.NewRedisRegistry(ctx, cfg.Redis.RedisURL, cfg.Revocation.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("redis registry: %w", err)
		}
		return rdb, func() { _ = rdb.Close() }, nil
	case config.RevocationPostgres:
		if pg == nil {
			return nil, nil, errors.New("postgres registry requires db.driver=postgres")
		}
		return pg, func() {}, nil
	default:
		return revocation.NewMemory(), func() {}, nil
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
