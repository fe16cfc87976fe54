package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldTool       = "tool"
	FieldHandle     = "handle"
	FieldFormat     = "format"
	FieldJobID      = "jobID"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
)

const (
	EventToolCall          = "tool_call"
	EventToolCallError     = "tool_call_error"
	EventConversionStart   = "conversion_start"
	EventConversionFailure = "conversion_failure"
	EventConversionTimeout = "conversion_timeout"
	EventEngineCallError   = "engine_call_error"
	EventBridgeStopped     = "bridge_stopped"
	EventSessionOpened     = "session_opened"
	EventSessionInvalid    = "session_invalidated"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func HandleField(handle string) zap.Field {
	return zap.String(FieldHandle, handle)
}

func FormatField(format string) zap.Field {
	return zap.String(FieldFormat, format)
}

func JobIDField(id string) zap.Field {
	return zap.String(FieldJobID, id)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}
