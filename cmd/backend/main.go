package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"cipherdm/internal/app"
	"cipherdm/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "backend:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("backend", pflag.ExitOnError)
	configPath := flags.String("config", "", "config file")
	flags.String("addr", "", "listen address (default :5000)")
	flags.String("store", "", "message store: memory or postgres")
	flags.String("notifier", "", "event fan-out: memory or redis")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: auto, console or json")
	_ = flags.Parse(os.Args[1:])

	cfg, err := app.LoadConfig(*configPath, flags)
	if err != nil {
		return err
	}
	log, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Backend, log)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, closeNotifier, err := openNotifier(ctx, cfg.Backend, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	srv := server.New(store, notifier, log, server.WithKeepAlive(cfg.Backend.KeepAlive))
	httpSrv := &http.Server{
		Addr:              cfg.Backend.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Backend.Addr).Bool("tls", cfg.Backend.TLSCert != "").Msg("backend listening")
		if cfg.Backend.TLSCert != "" {
			errc <- httpSrv.ListenAndServeTLS(cfg.Backend.TLSCert, cfg.Backend.TLSKey)
		} else {
			errc <- httpSrv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Event streams only end when their clients go away.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg app.BackendConfig, log zerolog.Logger) (server.Store, func(), error) {
	if cfg.Store != "postgres" {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return server.NewMemoryStore(), func() {}, nil
	}
	pg, err := server.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	log.Info().Msg("postgres store ready")
	return pg, func() { _ = pg.Close() }, nil
}

func openNotifier(ctx context.Context, cfg app.BackendConfig, log zerolog.Logger) (server.Notifier, func(), error) {
	if cfg.Notifier != "redis" {
		return server.NewHub(log), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis notifier ready")
	return server.NewRedisNotifier(rdb, log), func() { _ = rdb.Close() }, nil
}
