package telemetry

import (
	"time"

	"docmcp/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveToolCall(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) ObserveConversion(_ string, _ domain.JobState, _ time.Duration) {}

func (n *NoopMetrics) ObserveEngineCall(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) SetBridgeQueueDepth(_ int) {}

func (n *NoopMetrics) SetActiveDocuments(_ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
