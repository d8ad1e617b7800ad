package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/teleaon-gateway/config"
	"github.com/vnmchuo/teleaon-gateway/internal/connection"
	"github.com/vnmchuo/teleaon-gateway/internal/gateway"
	"github.com/vnmchuo/teleaon-gateway/internal/provider"
	"github.com/vnmchuo/teleaon-gateway/internal/proxy"
	"github.com/vnmchuo/teleaon-gateway/internal/telemetry"
	"github.com/vnmchuo/teleaon-gateway/internal/usage"
	"github.com/vnmchuo/teleaon-gateway/internal/worker"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != "" {
			cfg.Port = servePort
		}
		return runServe(cmd.Context(), cfg, logger)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (overrides PORT)")
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}()

	var store usage.Store
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping postgres: %w", err)
		}
		pg := usage.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
		logger.Info("PostgreSQL connected")
	}

	var counter usage.Counter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		counter = usage.NewRedisCounter(rdb)
		logger.Info("Redis connected")
	}

	var recorder proxy.Recorder
	if store != nil || counter != nil {
		r := worker.NewRecorder(store, counter, 1024, logger)
		go r.Process(ctx)
		defer r.Close()
		recorder = r
	}

	tracer := otel.Tracer(telemetry.ServiceName)
	transport := provider.NewTransport(&http.Client{Timeout: cfg.HTTPTimeout}, tracer)

	gwOpts := []gateway.Option{gateway.WithLogger(logger)}
	if cfg.CircuitBreaker {
		gwOpts = append(gwOpts, gateway.WithCircuitBreakers())
	}
	gw, err := gateway.New(gateway.Adapters(cfg, transport, logger), gwOpts...)
	if err != nil {
		return err
	}

	tester := connection.NewTester(connection.Endpoints(cfg), transport, logger)
	handler := proxy.NewHandler(gw, tester, tracer, logger, proxy.WithUsage(recorder, store, counter))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           proxy.NewRouter(handler, cfg.AdminToken, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Teleaon Bot API Server running on http://localhost:%s", cfg.Port))
		logger.Info(fmt.Sprintf("Health check: http://localhost:%s/api/health", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
