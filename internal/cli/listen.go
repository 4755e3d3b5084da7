package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func baseMiddlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	}
}

// openRedis returns nil when url is empty. The connection is checked with a PING.
func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// serveHTTP runs handler on addr until ctx is done, then shuts the server down gracefully.
func serveHTTP(ctx context.Context, name, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return serve(ctx, name, ln, handler, logger)
}

// serve stops accepting when ctx is done and gives in-flight requests up to
// shutdownTimeout to finish. Request contexts are not cancelled by ctx.
func serve(ctx context.Context, name string, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	base := context.WithoutCancel(ctx)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(name+" listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "service", name)
	shutdownCtx, cancel := context.WithTimeout(base, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("%s shutdown: %w", name, err)
	}
	return nil
}

func listenAddr(port string) string {
	if port == "" {
		return ":0"
	}
	if _, _, err := net.SplitHostPort(port); err == nil {
		return port
	}
	return ":" + port
}
