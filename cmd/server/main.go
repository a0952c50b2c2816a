package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/pairchat/internal/app"
	"github.com/vovakirdan/pairchat/internal/config"
	"github.com/vovakirdan/pairchat/internal/log"
)

type options struct {
	configPath string
	overrides  config.Config
}

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "pairchat",
		Short:        "One-to-one chat server with live delivery and presence",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	flags.StringVar(&opts.overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&opts.overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&opts.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&opts.overrides.DatabasePath, "db", "", "SQLite database path")
	flags.StringVar(&opts.overrides.MessageBackend, "message-backend", "", "message store backend (sqlite, badger)")
	flags.StringVar(&opts.overrides.MediaDir, "media-dir", "", "directory for uploaded images")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the chat server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the resolved configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, path, err := resolveConfig(opts, nil)
				if err != nil {
					return err
				}
				out, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("encode config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, out)
				return nil
			},
		},
	)

	return root
}

func resolveConfig(opts *options, bootLogger *zerolog.Logger) (config.Config, string, error) {
	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return cfg, path, err
	}
	cfg.UpdateFrom(opts.overrides)
	if err := cfg.Validate(); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

func runServe(ctx context.Context, opts *options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := log.New("info", "console")
	cfg, path, err := resolveConfig(opts, bootLogger)
	if err != nil {
		bootLogger.Error().Err(err).Msg("failed to load config")
		return err
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().
		Str("config", path).
		Str("addr", cfg.Addr).
		Str("message_backend", cfg.MessageBackend).
		Msg("starting pairchat server")

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize app")
		return err
	}

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
