package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/telemetry"
)

// HTTPConn talks to the automation extension the engine loads at
// startup, which listens on a fixed local port.
type HTTPConn struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	metrics  domain.Metrics
}

type HTTPConnOptions struct {
	Endpoint string
	Client   *http.Client
	Logger   *zap.Logger
	Metrics  domain.Metrics
}

func NewHTTPConn(opts HTTPConnOptions) *HTTPConn {
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = domain.DefaultEngineEndpoint
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPConn{
		endpoint: endpoint,
		client:   client,
		logger:   logger.Named("engine_conn"),
		metrics:  opts.Metrics,
	}
}

type callEnvelope struct {
	Op     string `json:"op"`
	Params any    `json:"params,omitempty"`
}

type responseEnvelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *engineError    `json:"error,omitempty"`
}

type engineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPConn) Call(ctx context.Context, op string, params any, result any) error {
	start := time.Now()
	err := c.call(ctx, op, params, result)
	if c.metrics != nil {
		c.metrics.ObserveEngineCall(op, time.Since(start), err)
	}
	if err != nil && errors.Is(err, domain.ErrEngineUnreachable) {
		c.logger.Warn("engine call failed",
			telemetry.EventField(telemetry.EventEngineCallError),
			zap.String("op", op),
			zap.Error(err),
		)
	}
	return err
}

func (c *HTTPConn) call(ctx context.Context, op string, params any, result any) error {
	body, err := json.Marshal(callEnvelope{Op: op, Params: params})
	if err != nil {
		return domain.E(domain.CodeInternal, "bridge.Call", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/call", bytes.NewReader(body))
	if err != nil {
		return domain.E(domain.CodeInternal, "bridge.Call", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Transport-level failure: the extension is down or the engine
		// was never started.
		return fmt.Errorf("%w: %s", domain.ErrEngineUnreachable, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return domain.E(domain.CodeInternal, "bridge.Call", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: extension returned status %d", domain.ErrEngineUnreachable, resp.StatusCode)
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return domain.E(domain.CodeInternal, "bridge.Call", "decode response", err)
	}
	if !envelope.Success {
		return decodeEngineError(envelope.Error)
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return domain.E(domain.CodeInternal, "bridge.Call", "decode result", err)
		}
	}
	return nil
}

func (c *HTTPConn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// decodeEngineError maps the extension's error codes onto the gateway
// taxonomy. Unknown codes surface as internal errors with the
// engine-provided message preserved.
func decodeEngineError(engineErr *engineError) error {
	if engineErr == nil {
		return domain.E(domain.CodeInternal, "bridge.Call", "engine reported failure without detail", nil)
	}
	switch engineErr.Code {
	case "stale_handle", "unknown_handle":
		return fmt.Errorf("%w: %s", domain.ErrStaleHandle, engineErr.Message)
	case "no_active_document":
		return fmt.Errorf("%w: %s", domain.ErrNoActiveDocument, engineErr.Message)
	case "no_selection":
		return fmt.Errorf("%w: %s", domain.ErrNoSelection, engineErr.Message)
	case "unsupported_format":
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, engineErr.Message)
	default:
		return domain.E(domain.CodeInternal, "bridge.Call", engineErr.Message, nil)
	}
}
