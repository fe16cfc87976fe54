// Package dispatch owns the tool table: every operation a client can
// invoke is registered here once, with its input schema, and routed to
// the converter or the live bridge. Transports stay thin adapters over
// Dispatch/ListTools/Health.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/bridge"
	"docmcp/internal/infra/convert"
	"docmcp/internal/infra/format"
	"docmcp/internal/infra/telemetry"
)

type Dispatcher struct {
	bridge    *bridge.Bridge
	converter *convert.Manager
	formats   *format.Registry
	discovery []string
	timeout   time.Duration
	logger    *zap.Logger
	metrics   domain.Metrics

	tools map[string]*toolEntry
	order []string
}

type Options struct {
	// CallTimeout bounds a single dispatch when the caller's context
	// carries no deadline of its own. Zero disables the bound.
	CallTimeout time.Duration
	// Discovery lists the directories document search falls back to
	// when the caller supplies no path.
	Discovery []string
	Logger    *zap.Logger
	Metrics   domain.Metrics
}

type toolEntry struct {
	def      domain.ToolDefinition
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	handler  func(ctx context.Context, params json.RawMessage) (any, error)
}

type toolSpec struct {
	name        string
	description string
	schema      *jsonschema.Schema
	handler     func(ctx context.Context, params json.RawMessage) (any, error)
}

func NewDispatcher(liveBridge *bridge.Bridge, converter *convert.Manager, formats *format.Registry, opts Options) (*Dispatcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		bridge:    liveBridge,
		converter: converter,
		formats:   formats,
		discovery: opts.Discovery,
		timeout:   opts.CallTimeout,
		logger:    logger.Named("dispatch"),
		metrics:   opts.Metrics,
		tools:     make(map[string]*toolEntry),
	}

	specs := append(d.converterTools(), d.liveTools()...)
	for _, spec := range specs {
		if err := d.register(spec); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dispatcher) register(spec toolSpec) error {
	if _, exists := d.tools[spec.name]; exists {
		return fmt.Errorf("duplicate tool %q", spec.name)
	}
	resolved, err := spec.schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %q: %w", spec.name, err)
	}
	d.tools[spec.name] = &toolEntry{
		def: domain.ToolDefinition{
			Name:        spec.name,
			Description: spec.description,
			InputSchema: spec.schema,
		},
		schema:   spec.schema,
		resolved: resolved,
		handler:  spec.handler,
	}
	d.order = append(d.order, spec.name)
	return nil
}

// ListTools returns definitions in registration order.
func (d *Dispatcher) ListTools() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].def)
	}
	return defs
}

// Dispatch validates the request against the tool's schema and runs
// its handler. Failures never escape as Go errors; they come back as
// an ErrorDescriptor so every transport renders them the same way.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.ToolCallRequest) domain.ToolCallResult {
	start := time.Now()

	entry, ok := d.tools[req.Name]
	if !ok {
		err := fmt.Errorf("%w: %q", domain.ErrUnknownTool, req.Name)
		return d.finish(req, start, nil, err)
	}

	if err := entry.validateParams(req.Parameters); err != nil {
		return d.finish(req, start, nil, err)
	}

	if d.timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
	}

	payload, err := entry.handler(ctx, req.Parameters)
	return d.finish(req, start, payload, err)
}

func (d *Dispatcher) finish(req domain.ToolCallRequest, start time.Time, payload any, err error) domain.ToolCallResult {
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.ObserveToolCall(req.Name, elapsed, err)
	}

	if err != nil {
		d.logger.Warn("tool call failed",
			telemetry.EventField(telemetry.EventToolCallError),
			telemetry.ToolField(req.Name),
			telemetry.RequestIDField(req.RequestID),
			telemetry.DurationField(elapsed),
			zap.Error(err),
		)
		return domain.ToolCallResult{
			RequestID: req.RequestID,
			Success:   false,
			Error:     domain.DescribeError(err),
		}
	}

	d.logger.Debug("tool call",
		telemetry.EventField(telemetry.EventToolCall),
		telemetry.ToolField(req.Name),
		telemetry.RequestIDField(req.RequestID),
		telemetry.DurationField(elapsed),
	)
	return domain.ToolCallResult{
		RequestID: req.RequestID,
		Success:   true,
		Payload:   payload,
	}
}

// Health reports engine reachability without spawning anything. The
// bridge round trip doubles as session reconciliation.
func (d *Dispatcher) Health(ctx context.Context) domain.HealthStatus {
	entries, err := d.bridge.ListOpenDocuments(ctx)
	if err != nil {
		return domain.HealthStatus{}
	}
	return domain.HealthStatus{
		EngineReachable:     true,
		ActiveDocumentCount: len(entries),
	}
}

func (e *toolEntry) validateParams(raw json.RawMessage) error {
	var instance any
	if len(raw) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(raw, &instance); err != nil {
		return domain.E(domain.CodeValidation, "dispatch.Dispatch", "parameters are not valid JSON", err)
	}
	if err := e.resolved.Validate(instance); err != nil {
		return domain.E(domain.CodeValidation, "dispatch.Dispatch", err.Error(), err)
	}
	return nil
}

func decode[T any](raw json.RawMessage, out *T) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(out); err != nil {
		return domain.E(domain.CodeValidation, "dispatch.Dispatch", "decode parameters", err)
	}
	return nil
}
