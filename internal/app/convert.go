package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"docmcp/internal/infra/config"
	"docmcp/internal/infra/convert"
	"docmcp/internal/infra/format"
)

type ConvertConfig struct {
	ConfigPath     string
	SourcePath     string
	TargetPath     string
	TargetFormat   string
	TimeoutSeconds int
}

// ConvertFile runs a single conversion without starting the daemon.
func (a *App) ConvertFile(ctx context.Context, convertCfg ConvertConfig) error {
	cfg, err := config.NewLoader(a.logger).Load(ctx, convertCfg.ConfigPath)
	if err != nil {
		return err
	}

	executable, err := convert.LocateEngine(cfg.Engine.Executable)
	if err != nil {
		return err
	}

	manager := convert.NewManager(format.NewRegistry(), convert.ManagerOptions{
		Executable:  executable,
		Timeout:     time.Duration(cfg.Convert.TimeoutSeconds) * time.Second,
		Concurrency: cfg.Convert.Concurrency,
		Logger:      a.logger,
	})

	timeout := time.Duration(convertCfg.TimeoutSeconds) * time.Second
	result, err := manager.Convert(ctx, convertCfg.SourcePath, convertCfg.TargetPath, convertCfg.TargetFormat, timeout)
	if err != nil {
		return err
	}
	if !result.Success {
		a.logger.Error("conversion failed",
			zap.String("source", result.SourcePath),
			zap.String("state", string(result.State)),
			zap.String("detail", result.ErrorMessage),
		)
		return convert.ResultError(result)
	}

	a.logger.Info("conversion complete",
		zap.String("source", result.SourcePath),
		zap.String("target", result.TargetPath),
		zap.String("format", result.TargetFormat),
	)
	return nil
}
