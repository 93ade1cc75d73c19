package forecast

import (
	"errors"
	"fmt"
)

const (
	CodeSchema           = "ERR_SCHEMA"
	CodeInsufficientData = "ERR_INSUFFICIENT_DATA"
	CodeFraming          = "ERR_FRAMING"
	CodeModelFit         = "ERR_MODEL_FIT"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrSchema           = &Error{Code: CodeSchema, Message: "invalid request shape"}
	ErrInsufficientData = &Error{Code: CodeInsufficientData, Message: "not enough numeric data"}
	ErrFraming          = &Error{Code: CodeFraming, Message: "series too short to frame"}
	ErrModelFit         = &Error{Code: CodeModelFit, Message: "model fit failed"}
)

// Error is a classified forecasting failure.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func schemaErrorf(format string, a ...any) *Error {
	return &Error{Code: CodeSchema, Message: fmt.Sprintf(format, a...)}
}

func insufficientDataErrorf(format string, a ...any) *Error {
	return &Error{Code: CodeInsufficientData, Message: fmt.Sprintf(format, a...)}
}

func framingErrorf(format string, a ...any) *Error {
	return &Error{Code: CodeFraming, Message: fmt.Sprintf(format, a...)}
}

func modelFitError(label string, err error) *Error {
	return &Error{Code: CodeModelFit, Message: label + " fit failed", Err: err}
}

// SchemaErrorf builds a schema error for callers outside the core, such as
// transport-level limits.
func SchemaErrorf(format string, a ...any) error { return schemaErrorf(format, a...) }

// CodeOf returns the error code of a forecasting error, or "" for others.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case CodeSchema, CodeInsufficientData:
		return true
	}
	return false
}
