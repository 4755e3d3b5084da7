// Package cli defines the swaplist command-line interface.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/config"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/logging"
)

const defaultEnvFile = ".env"

// Options stores global CLI options shared between commands.
type Options struct {
	EnvFile  string
	LogLevel logging.Level
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootOpts := &Options{
		EnvFile:  defaultEnvFile,
		LogLevel: logging.LevelInfo,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "swaplist",
		Short:         "swaplist builds swap-plate print queues",
		Long:          "swaplist queues plates from sliced 3MF projects, orders them and assembles a single swap-plate file that prints the whole queue back to back.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile := cmd.Flag("env-file").Value.String()
			if err := config.LoadEnvFile(envFile, !cmd.Flag("env-file").Changed); err != nil {
				return err
			}

			levelFlag := cmd.Flag("log-level")
			level := logging.ResolveLevel(levelFlag.Value.String(), levelFlag.Changed)
			opts.LogLevel = level
			logger = logging.NewLogger(cmd.ErrOrStderr(), level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "Path to a .env file loaded before reading SWAPLIST_* variables")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(opts),
		newBackendCommand(opts),
		newBuildCommand(opts),
	)

	return cmd
}

type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
