package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	applogger "github.com/TENTURAVITEJA/forecasting-AI/pkg/logger"
)

const (
	CodeBadRequest       = "ERR_BAD_REQUEST"
	CodeNotFound         = "ERR_NOT_FOUND"
	CodeMethodNotAllowed = "ERR_METHOD_NOT_ALLOWED"
	CodeBodyTooLarge     = "ERR_BODY_TOO_LARGE"
	CodeRateLimited      = "ERR_RATE_LIMITED"
	CodeUnavailable      = "ERR_UNAVAILABLE"
	CodeInternal         = "ERR_INTERNAL"
)

// AppError is an error with a stable code and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithError attaches the cause. It is logged, never rendered.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}

// statusCodes names the statuses echo and the middleware chain produce
// on their own.
var statusCodes = map[int]string{
	http.StatusBadRequest:            CodeBadRequest,
	http.StatusNotFound:              CodeNotFound,
	http.StatusMethodNotAllowed:      CodeMethodNotAllowed,
	http.StatusRequestEntityTooLarge: CodeBodyTooLarge,
	http.StatusTooManyRequests:       CodeRateLimited,
	http.StatusServiceUnavailable:    CodeUnavailable,
}

// ErrorHandler renders errors that escape handlers in the response
// envelope, so routing failures look like every other API error.
func ErrorHandler(log *applogger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := InternalError("Something went wrong").WithError(err)
		var he *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &he):
			code, ok := statusCodes[he.Code]
			if !ok {
				code = CodeInternal
			}
			appErr = NewAppError(code, "", fmt.Sprint(he.Message), he.Code)
		}
		if appErr.Status >= http.StatusInternalServerError {
			log.Error("unhandled request error",
				applogger.String("path", c.Request().URL.Path),
				applogger.Error(err),
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(appErr.Status)
		} else {
			werr = AppErrorResponse(c, appErr)
		}
		if werr != nil {
			log.Warn("write error response", applogger.Error(werr))
		}
	}
}
