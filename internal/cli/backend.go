package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/backend"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/config"
)

const backendRequestTimeout = 5 * time.Minute

func newBackendCommand(_ *Options) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the plate backend that parses 3MF uploads and builds swap files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, err := config.LoadBackend()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			registry, closeRegistry, err := openRegistry(ctx, cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer closeRegistry()

			rdb, err := openRedis(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}

			if err := os.MkdirAll(cfg.StaticDir, 0o755); err != nil {
				return fmt.Errorf("create static dir: %w", err)
			}

			srv := backend.NewServer(registry, rdb, backend.Options{
				StaticDir:      cfg.StaticDir,
				UploadDir:      cfg.UploadDir,
				MaxUploadBytes: cfg.MaxUploadBytes,
			}, logger)

			handler := srv.Router(append(baseMiddlewares(), middleware.Timeout(backendRequestTimeout))...)
			return serveHTTP(ctx, "swaplist-backend", listenAddr(cfg.Port), handler, logger)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides SWAPLIST_BACKEND_PORT)")

	return cmd
}

// openRegistry connects to Postgres when dsn is set and falls back to an in-memory
// registry otherwise.
func openRegistry(ctx context.Context, dsn string, logger *slog.Logger) (backend.Registry, func(), error) {
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, plate registry is in memory and lost on restart")
		return backend.NewMemoryRegistry(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pg: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pg ping: %w", err)
	}
	if err := backend.AutoMigrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return backend.NewPGRegistry(pool), pool.Close, nil
}
