// Package bridge owns the connection to the persistent engine
// instance. The engine's automation interface is single-threaded
// affine, so every operation funnels through one ordered queue with a
// single consumer; concurrent callers block on per-submission
// completion channels, never on each other.
package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/session"
	"docmcp/internal/infra/telemetry"
)

type Bridge struct {
	conn     EngineConn
	sessions *session.Registry
	queue    chan *submission
	timeout  time.Duration
	logger   *zap.Logger
	metrics  domain.Metrics
	done     chan struct{}
}

type Options struct {
	Timeout   time.Duration
	QueueSize int
	Logger    *zap.Logger
	Metrics   domain.Metrics
}

type submission struct {
	fn   func(ctx context.Context) (any, error)
	done chan outcome
}

type outcome struct {
	value any
	err   error
}

func New(conn EngineConn, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultBridgeTimeoutSeconds) * time.Second
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = domain.DefaultBridgeQueueSize
	}
	return &Bridge{
		conn:     conn,
		sessions: session.NewRegistry(),
		queue:    make(chan *submission, queueSize),
		timeout:  timeout,
		logger:   logger.Named("bridge"),
		metrics:  opts.Metrics,
		done:     make(chan struct{}),
	}
}

// Run consumes the submission queue until ctx is canceled. It is the
// only goroutine that touches the engine connection and the session
// registry.
func (b *Bridge) Run(ctx context.Context) error {
	defer close(b.done)
	defer func() { _ = b.conn.Close() }()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge stopped", telemetry.EventField(telemetry.EventBridgeStopped))
			b.drain()
			return ctx.Err()
		case sub := <-b.queue:
			b.observeQueueDepth()
			b.execute(sub)
		}
	}
}

func (b *Bridge) execute(sub *submission) {
	// The worker runs under its own deadline, detached from the
	// caller: a caller that gives up does not interrupt the engine-side
	// operation, it only stops waiting for it.
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	value, err := sub.fn(ctx)
	sub.done <- outcome{value: value, err: err}

	if b.metrics != nil {
		b.metrics.SetActiveDocuments(b.sessions.Len())
	}
}

func (b *Bridge) drain() {
	for {
		select {
		case sub := <-b.queue:
			sub.done <- outcome{err: domain.ErrBridgeClosed}
		default:
			return
		}
	}
}

// submit enqueues one unit of work and blocks until it completes, the
// caller's deadline passes, or the bridge shuts down. On deadline the
// engine-side operation may still complete later and mutate state;
// callers must re-validate rather than assume rollback.
func (b *Bridge) submit(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	sub := &submission{
		fn:   fn,
		done: make(chan outcome, 1),
	}

	select {
	case b.queue <- sub:
		b.observeQueueDepth()
	case <-b.done:
		return nil, domain.ErrBridgeClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-sub.done:
		return out.value, out.err
	case <-b.done:
		return nil, domain.ErrBridgeClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bridge) observeQueueDepth() {
	if b.metrics != nil {
		b.metrics.SetBridgeQueueDepth(len(b.queue))
	}
}

// invalidate drops a session whose handle the engine no longer
// resolves. Called only from inside the worker.
func (b *Bridge) invalidate(handle domain.DocumentHandle) {
	b.sessions.Unregister(handle)
}
