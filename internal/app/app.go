// Package app wires the gateway together: configuration, engine
// discovery, the live bridge, the conversion manager, the dispatcher
// and the selected transport.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/bridge"
	"docmcp/internal/infra/config"
	"docmcp/internal/infra/convert"
	"docmcp/internal/infra/dispatch"
	"docmcp/internal/infra/format"
	"docmcp/internal/infra/telemetry"
	"docmcp/internal/infra/transport"
)

type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
	// Transport overrides the configured transport mode when set.
	Transport string
}

type ValidateConfig struct {
	ConfigPath string
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger.Named("app")}
}

func (a *App) Serve(ctx context.Context, serveCfg ServeConfig) error {
	cfg, err := config.NewLoader(a.logger).Load(ctx, serveCfg.ConfigPath)
	if err != nil {
		return err
	}
	if serveCfg.Transport != "" {
		mode := domain.TransportKind(serveCfg.Transport)
		if mode != domain.TransportStdio && mode != domain.TransportHTTP {
			return fmt.Errorf("unknown transport %q", serveCfg.Transport)
		}
		cfg.Transport.Mode = mode
	}
	a.logger.Info("configuration loaded",
		zap.String("config", serveCfg.ConfigPath),
		zap.String("transport", string(cfg.Transport.Mode)),
		zap.String("engineEndpoint", cfg.Engine.Endpoint),
	)

	executable, err := convert.LocateEngine(cfg.Engine.Executable)
	if err != nil {
		return err
	}
	a.logger.Info("engine executable located", zap.String("path", executable))

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(registry)

	formats := format.NewRegistry()
	converter := convert.NewManager(formats, convert.ManagerOptions{
		Executable:  executable,
		Timeout:     time.Duration(cfg.Convert.TimeoutSeconds) * time.Second,
		Concurrency: cfg.Convert.Concurrency,
		Logger:      a.logger,
		Metrics:     metrics,
	})

	conn := bridge.NewHTTPConn(bridge.HTTPConnOptions{
		Endpoint: cfg.Engine.Endpoint,
		Logger:   a.logger,
		Metrics:  metrics,
	})
	liveBridge := bridge.New(conn, bridge.Options{
		Timeout:   time.Duration(cfg.Bridge.TimeoutSeconds) * time.Second,
		QueueSize: cfg.Bridge.QueueSize,
		Logger:    a.logger,
		Metrics:   metrics,
	})

	dispatcher, err := dispatch.NewDispatcher(liveBridge, converter, formats, dispatch.Options{
		CallTimeout: time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second,
		Discovery:   cfg.Discovery.Paths,
		Logger:      a.logger,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		_ = liveBridge.Run(runCtx)
	}()
	defer func() { <-bridgeDone }()

	go func() {
		err := telemetry.StartHTTPServer(runCtx, telemetry.HTTPServerOptions{
			Addr:     cfg.Observability.ListenAddress,
			Registry: registry,
			Health: func(ctx context.Context) (domain.HealthStatus, error) {
				return dispatcher.Health(ctx), nil
			},
		}, a.logger)
		if err != nil {
			a.logger.Error("observability server failed", zap.Error(err))
		}
	}()

	mcpServer, err := transport.NewMCPServer(dispatcher, transport.MCPOptions{
		Version: Version,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	switch cfg.Transport.Mode {
	case domain.TransportHTTP:
		api := transport.NewAPI(dispatcher, a.logger)
		return transport.Serve(runCtx, cfg.Transport.HTTPAddr, api.Routes(mcpServer.Handler()), a.logger)
	default:
		return mcpServer.ServeStdio(runCtx)
	}
}

// Validate loads the configuration and reports the first problem
// without starting anything.
func (a *App) Validate(ctx context.Context, validateCfg ValidateConfig) error {
	cfg, err := config.NewLoader(a.logger).Load(ctx, validateCfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration is valid",
		zap.String("config", validateCfg.ConfigPath),
		zap.String("transport", string(cfg.Transport.Mode)),
		zap.Int("discoveryPaths", len(cfg.Discovery.Paths)),
	)
	return nil
}
