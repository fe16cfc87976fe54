package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docmcp/internal/app"
)

type rootOptions struct {
	configPath string
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	opts := rootOptions{}

	root := &cobra.Command{
		Use:   "docmcpd",
		Short: "Document operation gateway for a headless office engine",
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to config file (optional)")

	root.AddCommand(
		newServeCmd(logger, &opts),
		newValidateCmd(logger, &opts),
		newConvertCmd(logger, &opts),
	)

	return root
}

func newServeCmd(logger *zap.Logger, opts *rootOptions) *cobra.Command {
	var transportMode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(logger)
			return application.Serve(ctx, app.ServeConfig{
				ConfigPath: opts.configPath,
				Transport:  transportMode,
			})
		},
	}

	cmd.Flags().StringVar(&transportMode, "transport", "", "transport mode: stdio or http (overrides config)")
	return cmd
}

func newValidateCmd(logger *zap.Logger, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration without starting the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := app.New(logger)
			return application.Validate(cmd.Context(), app.ValidateConfig{
				ConfigPath: opts.configPath,
			})
		},
	}
}

func newConvertCmd(logger *zap.Logger, opts *rootOptions) *cobra.Command {
	var (
		targetFormat   string
		timeoutSeconds int
	)

	cmd := &cobra.Command{
		Use:   "convert <source> <target>",
		Short: "Convert a single document and exit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application := app.New(logger)
			return application.ConvertFile(ctx, app.ConvertConfig{
				ConfigPath:     opts.configPath,
				SourcePath:     args[0],
				TargetPath:     args[1],
				TargetFormat:   targetFormat,
				TimeoutSeconds: timeoutSeconds,
			})
		},
	}

	cmd.Flags().StringVar(&targetFormat, "format", "pdf", "logical target format")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "per-job timeout in seconds (0 uses the configured default)")
	return cmd
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
