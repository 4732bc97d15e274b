// clubgate-server runs the admin console auth endpoints against a real
// Redis and Postgres.
//
// Configuration is flag-first with environment fallbacks; the session token
// secret is environment-only so it never lands in shell history:
//
//	CLUBGATE_SESSION_SECRET  HS256 secret shared with the identity provider (required)
//	CLUBGATE_REDIS_ADDR      Redis address (default localhost:6379)
//	CLUBGATE_DATABASE_URL    Postgres connection string (required)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mwestre/clubgate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr      string
		redisAddr string
		dbURL     string
	)

	cmd := &cobra.Command{
		Use:           "clubgate-server",
		Short:         "Session and authorization endpoints for the club admin console",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if redisAddr == "" {
				redisAddr = envOr("CLUBGATE_REDIS_ADDR", "localhost:6379")
			}
			if dbURL == "" {
				dbURL = os.Getenv("CLUBGATE_DATABASE_URL")
			}
			if dbURL == "" {
				return errors.New("CLUBGATE_DATABASE_URL is required")
			}
			secret := os.Getenv("CLUBGATE_SESSION_SECRET")
			if secret == "" {
				return errors.New("CLUBGATE_SESSION_SECRET is required")
			}

			return run(cmd.Context(), addr, redisAddr, dbURL, []byte(secret))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address (overrides CLUBGATE_REDIS_ADDR)")
	cmd.Flags().StringVar(&dbURL, "database-url", "", "postgres connection string (overrides CLUBGATE_DATABASE_URL)")

	return cmd
}

func run(ctx context.Context, addr, redisAddr, dbURL string, secret []byte) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	cfg := clubgate.DefaultConfig()
	cfg.Identity.Secret = secret

	engine, err := clubgate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPool(pool).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	router := chi.NewRouter()
	router.Mount(cfg.Routes.BasePath, engine.Routes())

	// Counters are admin-only: the route itself is gated by the same
	// middleware it reports on.
	router.Group(func(r chi.Router) {
		r.Use(engine.RequireRole(clubgate.RoleAdmin))
		r.Get("/api/admin/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(engine.MetricsSnapshot())
		})
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
