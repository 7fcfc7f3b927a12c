package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// General
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"

	// Rejected before any state change
	ErrCodeBusy       ErrorCode = "CONCURRENCY_BUSY"
	ErrCodePermission ErrorCode = "PERMISSION_DENIED"

	// Chat platform calls; logged and swallowed by callers
	ErrCodeDelivery ErrorCode = "TRANSIENT_DELIVERY"

	// Document store
	ErrCodePersistence ErrorCode = "PERSISTENCE_ERROR"
)

// AppError is the typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Context   map[string]string      `json:"context,omitempty"`
	Stack     []string               `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

// Error formats the code, message and cause.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsInternal reports whether the error should be logged at error level.
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal || e.Code == ErrCodePersistence
}

// IsUserFacing reports whether the message can be shown to the invoker as is.
func (e *AppError) IsUserFacing() bool {
	switch e.Code {
	case ErrCodeValidation, ErrCodeBusy, ErrCodePermission, ErrCodeNotFound:
		return true
	}
	return false
}

// WithContext attaches a string key to the error.
func (e *AppError) WithContext(key, value string) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail attaches structured detail to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID tags the error with the HTTP request id.
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Stack:     getStackTrace(),
	}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// getStackTrace records up to ten callers outside this package.
func getStackTrace() []string {
	var stack []string
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.Contains(fn.Name(), "internal/common/errors") {
			continue
		}
		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		if len(stack) >= 10 {
			break
		}
	}
	return stack
}

// Constructors for each error class.

// NewValidationError reports a bad argument; reason is shown to the invoker.
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, reason).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewBusyError reports that an exclusive activity is already running.
func NewBusyError(resource string, cause error) *AppError {
	return Wrap(cause, ErrCodeBusy, fmt.Sprintf("%s is busy", resource)).
		WithDetail("resource", resource)
}

// NewPermissionDeniedError reports a non-admin invoking an admin command.
func NewPermissionDeniedError(command string) *AppError {
	return New(ErrCodePermission, fmt.Sprintf("permission denied for %s", command)).
		WithDetail("command", command)
}

// NewDeliveryError wraps a failed call to the chat platform.
func NewDeliveryError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDelivery, fmt.Sprintf("delivery failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewPersistenceError wraps a failed document load or save.
func NewPersistenceError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePersistence, fmt.Sprintf("persistence failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil || !stderrors.As(err, &appErr) {
		return nil, false
	}
	return appErr, true
}

// CodeOf returns the code of the first AppError in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
