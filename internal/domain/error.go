package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION"
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	CodeEngineUnreachable ErrorCode = "ENGINE_UNREACHABLE"
	CodeStaleHandle       ErrorCode = "STALE_HANDLE"
	CodeConversionFailed  ErrorCode = "CONVERSION_FAILED"
	CodeConversionTimeout ErrorCode = "CONVERSION_TIMEOUT"
	CodeNoActiveDocument  ErrorCode = "NO_ACTIVE_DOCUMENT"
	CodeNoSelection       ErrorCode = "NO_SELECTION"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeDeadlineExceeded  ErrorCode = "DEADLINE_EXCEEDED"
	CodeInternal          ErrorCode = "INTERNAL"
)

var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrEngineUnreachable  = errors.New("engine unreachable")
	ErrStaleHandle        = errors.New("stale document handle")
	ErrNoActiveDocument   = errors.New("no active document")
	ErrNoSelection        = errors.New("no text selection")
	ErrSessionNotFound    = errors.New("session not found")
	ErrExecutableNotFound = errors.New("engine executable not found")
	ErrBridgeClosed       = errors.New("bridge closed")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
		}
	}
	return E(code, op, "", err)
}

// CodeFrom resolves the taxonomy code for any error produced inside the
// gateway. Unrecognized errors report INTERNAL via the second return.
func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrUnknownTool):
		return CodeNotFound, true
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat, true
	case errors.Is(err, ErrEngineUnreachable), errors.Is(err, ErrBridgeClosed):
		return CodeEngineUnreachable, true
	case errors.Is(err, ErrExecutableNotFound):
		return CodeEngineUnreachable, true
	case errors.Is(err, ErrStaleHandle):
		return CodeStaleHandle, true
	case errors.Is(err, ErrNoActiveDocument):
		return CodeNoActiveDocument, true
	case errors.Is(err, ErrNoSelection):
		return CodeNoSelection, true
	case errors.Is(err, ErrSessionNotFound):
		return CodeNotFound, true
	case errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, true
	default:
		return "", false
	}
}

// DescribeError converts any gateway error to its wire descriptor.
func DescribeError(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}
	code, ok := CodeFrom(err)
	if !ok {
		code = CodeInternal
	}
	return &ErrorDescriptor{
		Code:    code,
		Message: err.Error(),
	}
}
