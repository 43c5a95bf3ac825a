// Package errors classifies smoke-run failures so callers can tell a broken
// assertion from a rejected request or an unreachable service.
package errors

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorType is the failure category of a StructuredError.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeRejected      ErrorType = "rejected"
	ErrorTypeAssertion     ErrorType = "assertion"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeTimeout       ErrorType = "timeout"
)

// StructuredError carries the category, the operation that failed and
// key/value context for logging.
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

func (e *StructuredError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", e.Type, e.Operation, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// WithContext adds a key/value pair and returns e for chaining.
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ContextKeys returns the context keys in sorted order.
func (e *StructuredError) ContextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Frames resolves the captured call stack.
func (e *StructuredError) Frames() *runtime.Frames {
	return runtime.CallersFrames(e.Stack)
}

// New creates a structured error.
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap attaches a category to err. A nil err yields nil.
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}
	se := New(errType, operation, message)
	se.Cause = err
	return se
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // skip Callers, captureStack and New
	return pcs[:n]
}

// NewValidationError reports bad input to a generator, schema or file.
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// NewAssertionError reports a smoke check that did not hold.
func NewAssertionError(operation, message string) *StructuredError {
	return New(ErrorTypeAssertion, operation, message)
}

// NewConfigurationError reports an unusable run configuration.
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

func WrapValidationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeValidation, operation, message)
}

func WrapStorageError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeStorage, operation, message)
}

// WrapCallError categorizes a failed client call. Deadlines become timeouts,
// transport failures become network errors and any other status the service
// returned is a rejection. Callers must pass a non-nil err.
func WrapCallError(err error, operation string) *StructuredError {
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, ErrorTypeTimeout, operation, "call timed out")
	}
	st, ok := status.FromError(err)
	if !ok {
		return Wrap(err, ErrorTypeNetwork, operation, "call failed")
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return Wrap(err, ErrorTypeTimeout, operation, "call timed out")
	case codes.Unavailable, codes.Canceled, codes.Unknown:
		return Wrap(err, ErrorTypeNetwork, operation, "call failed")
	default:
		return Wrap(err, ErrorTypeRejected, operation, "request rejected").
			WithContext("code", st.Code().String())
	}
}

// TypeOf returns the type of the outermost StructuredError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Type, true
	}
	return "", false
}

// IsType reports whether err carries a StructuredError of the given type.
func IsType(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}
