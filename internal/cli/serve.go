package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/config"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/coordinator"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/realtime"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/session"
)

type serveOptions struct {
	port       string
	backendURL string
}

func newServeCommand(_ *Options) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the playlist session API with live websocket updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, err := config.LoadSession()
			if err != nil {
				return err
			}
			if opts.port != "" {
				cfg.Port = opts.port
			}
			if opts.backendURL != "" {
				cfg.BackendURL = opts.backendURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rdb, err := openRedis(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			} else {
				logger.Debug("REDIS_URL not set, websocket events stay local")
			}

			client := platesvc.NewClient(cfg.BackendURL, platesvc.Options{
				UploadTimeout:   cfg.UploadTimeout,
				GenerateTimeout: cfg.GenerateTimeout,
			})
			store := playlist.NewStore()
			uploads := coordinator.NewUploadCoordinator(store, client, logger)
			generates := coordinator.NewGenerateCoordinator(store, client, logger)

			hub := realtime.NewHub()
			rt := realtime.NewServer(hub, rdb, logger, cfg.AllowedOrigin)
			go hub.Run(ctx)
			go rt.RunRedisSubscriber(ctx)

			srv := session.NewServer(store, uploads, generates, rt, http.HandlerFunc(rt.HandleWS), logger)
			srv.SetMaxUploadBytes(cfg.MaxUploadBytes)
			rt.SetWelcome(func() any { return srv.State() })

			logger.Info("session configured", "backend", client.BaseURL())
			return serveHTTP(ctx, "swaplist-session", listenAddr(cfg.Port), srv.Router(baseMiddlewares()...), logger)
		},
	}

	cmd.Flags().StringVar(&opts.port, "port", "", "Listen port (overrides SWAPLIST_PORT)")
	cmd.Flags().StringVar(&opts.backendURL, "backend-url", "", "Plate backend base URL (overrides SWAPLIST_BACKEND_URL)")

	return cmd
}
