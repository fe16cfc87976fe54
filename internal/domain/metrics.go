package domain

import "time"

// Metrics is implemented by the telemetry layer; a nil Metrics is
// always safe to skip.
type Metrics interface {
	ObserveToolCall(tool string, duration time.Duration, err error)
	ObserveConversion(format string, state JobState, duration time.Duration)
	ObserveEngineCall(op string, duration time.Duration, err error)
	SetBridgeQueueDepth(depth int)
	SetActiveDocuments(count int)
}
