// Package config loads and validates the gateway configuration file.
// Values pass through environment expansion before decoding, so
// secrets and machine-specific paths can stay out of the file itself.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"docmcp/internal/domain"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.endpoint", domain.DefaultEngineEndpoint)
	v.SetDefault("convert.timeoutSeconds", domain.DefaultConvertTimeoutSeconds)
	v.SetDefault("convert.concurrency", domain.DefaultConvertConcurrency)
	v.SetDefault("bridge.timeoutSeconds", domain.DefaultBridgeTimeoutSeconds)
	v.SetDefault("bridge.queueSize", domain.DefaultBridgeQueueSize)
	v.SetDefault("dispatch.timeoutSeconds", domain.DefaultDispatchTimeoutSeconds)
	v.SetDefault("transport.mode", string(domain.TransportStdio))
	v.SetDefault("transport.httpAddr", domain.DefaultHTTPListenAddress)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
}

type rawConfig struct {
	Engine        rawEngineConfig        `mapstructure:"engine"`
	Convert       rawConvertConfig       `mapstructure:"convert"`
	Bridge        rawBridgeConfig        `mapstructure:"bridge"`
	Dispatch      rawDispatchConfig      `mapstructure:"dispatch"`
	Discovery     rawDiscoveryConfig     `mapstructure:"discovery"`
	Transport     rawTransportConfig     `mapstructure:"transport"`
	Observability rawObservabilityConfig `mapstructure:"observability"`
}

type rawEngineConfig struct {
	Executable string `mapstructure:"executable"`
	Endpoint   string `mapstructure:"endpoint"`
}

type rawConvertConfig struct {
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
	Concurrency    int `mapstructure:"concurrency"`
}

type rawBridgeConfig struct {
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
	QueueSize      int `mapstructure:"queueSize"`
}

type rawDispatchConfig struct {
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type rawDiscoveryConfig struct {
	Paths []string `mapstructure:"paths"`
}

type rawTransportConfig struct {
	Mode     string `mapstructure:"mode"`
	HTTPAddr string `mapstructure:"httpAddr"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

// Load reads the config file at path. An empty path yields the
// built-in defaults, so the daemon runs without any file present.
func (l *Loader) Load(ctx context.Context, path string) (domain.Config, error) {
	var expanded string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Config{}, fmt.Errorf("read config: %w", err)
		}
		var missing []string
		expanded, missing, err = expandConfigEnv(data)
		if err != nil {
			return domain.Config{}, err
		}
		if len(missing) > 0 {
			l.logger.Warn("missing environment variables in config",
				zap.String("path", path), zap.Strings("missing", missing))
		}
	}

	v := newConfigViper()
	if expanded != "" {
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return domain.Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return domain.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Config{}, err
	}

	cfg, errs := normalize(raw)
	if len(errs) > 0 {
		return domain.Config{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

func normalize(raw rawConfig) (domain.Config, []string) {
	var errs []string

	endpoint := strings.TrimRight(strings.TrimSpace(raw.Engine.Endpoint), "/")
	if endpoint == "" {
		endpoint = domain.DefaultEngineEndpoint
	}
	if parsed, err := url.Parse(endpoint); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("engine.endpoint: not an http(s) URL: %q", raw.Engine.Endpoint))
	}

	if raw.Convert.TimeoutSeconds < 0 {
		errs = append(errs, "convert.timeoutSeconds: must not be negative")
	}
	if raw.Convert.TimeoutSeconds == 0 {
		raw.Convert.TimeoutSeconds = domain.DefaultConvertTimeoutSeconds
	}
	if raw.Convert.Concurrency < 0 {
		errs = append(errs, "convert.concurrency: must not be negative")
	}
	if raw.Convert.Concurrency == 0 {
		raw.Convert.Concurrency = domain.DefaultConvertConcurrency
	}

	if raw.Bridge.TimeoutSeconds < 0 {
		errs = append(errs, "bridge.timeoutSeconds: must not be negative")
	}
	if raw.Bridge.TimeoutSeconds == 0 {
		raw.Bridge.TimeoutSeconds = domain.DefaultBridgeTimeoutSeconds
	}
	if raw.Bridge.QueueSize < 0 {
		errs = append(errs, "bridge.queueSize: must not be negative")
	}
	if raw.Bridge.QueueSize == 0 {
		raw.Bridge.QueueSize = domain.DefaultBridgeQueueSize
	}

	if raw.Dispatch.TimeoutSeconds < 0 {
		errs = append(errs, "dispatch.timeoutSeconds: must not be negative")
	}
	if raw.Dispatch.TimeoutSeconds == 0 {
		raw.Dispatch.TimeoutSeconds = domain.DefaultDispatchTimeoutSeconds
	}

	mode := domain.TransportKind(strings.ToLower(strings.TrimSpace(raw.Transport.Mode)))
	switch mode {
	case "", domain.TransportStdio:
		mode = domain.TransportStdio
	case domain.TransportHTTP:
	default:
		errs = append(errs, fmt.Sprintf("transport.mode: must be stdio or http, got %q", raw.Transport.Mode))
	}
	httpAddr := strings.TrimSpace(raw.Transport.HTTPAddr)
	if httpAddr == "" {
		httpAddr = domain.DefaultHTTPListenAddress
	}

	paths := make([]string, 0, len(raw.Discovery.Paths))
	for i, p := range raw.Discovery.Paths {
		p = strings.TrimSpace(p)
		if p == "" {
			errs = append(errs, fmt.Sprintf("discovery.paths[%d]: must not be empty", i))
			continue
		}
		paths = append(paths, p)
	}

	listenAddress := strings.TrimSpace(raw.Observability.ListenAddress)
	if listenAddress == "" {
		listenAddress = domain.DefaultObservabilityListenAddress
	}

	return domain.Config{
		Engine: domain.EngineConfig{
			Executable: strings.TrimSpace(raw.Engine.Executable),
			Endpoint:   endpoint,
		},
		Convert: domain.ConvertConfig{
			TimeoutSeconds: raw.Convert.TimeoutSeconds,
			Concurrency:    raw.Convert.Concurrency,
		},
		Bridge: domain.BridgeConfig{
			TimeoutSeconds: raw.Bridge.TimeoutSeconds,
			QueueSize:      raw.Bridge.QueueSize,
		},
		Dispatch: domain.DispatchConfig{TimeoutSeconds: raw.Dispatch.TimeoutSeconds},
		Discovery: domain.DiscoveryConfig{Paths: paths},
		Transport: domain.TransportConfig{
			Mode:     mode,
			HTTPAddr: httpAddr,
		},
		Observability: domain.ObservabilityConfig{ListenAddress: listenAddress},
	}, errs
}
