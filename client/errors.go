package client

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrForwardRequired is returned when a request needs to be routed to another node
type ErrForwardRequired struct {
	TargetNodeID string
	TargetAddr   string
}

func (e *ErrForwardRequired) Error() string {
	return fmt.Sprintf("FORWARD_REQUIRED: target=%s addr=%s", e.TargetNodeID, e.TargetAddr)
}

// Regex to parse the error string
var forwardErrorRegex = regexp.MustCompile(`FORWARD_REQUIRED: target=(.*?) addr=(.*)`)

// IsForwardRequired checks if an error is a "FORWARD_REQUIRED" error
// If success, returns the parsed error struct, otherwise nil
func IsForwardRequired(err error) *ErrForwardRequired {
	if err == nil {
		return nil
	}

	var fwd *ErrForwardRequired
	if errors.As(err, &fwd) {
		return fwd
	}

	// Parse string error from gRPC status
	errMsg := err.Error()
	if !strings.Contains(errMsg, "FORWARD_REQUIRED") {
		return nil
	}

	matches := forwardErrorRegex.FindStringSubmatch(errMsg)
	if len(matches) == 3 {
		return &ErrForwardRequired{
			TargetNodeID: strings.TrimSpace(matches[1]),
			TargetAddr:   strings.TrimSpace(matches[2]),
		}
	}

	return nil
}

// SchemaError reports an invalid collection schema.
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid schema field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid schema: %s", e.Message)
}

// ColumnError reports data that does not fit the schema it is inserted against.
type ColumnError struct {
	Field   string
	Message string
}

func (e *ColumnError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("column %q: %s", e.Field, e.Message)
	}
	return "columns: " + e.Message
}

// IsNotFound reports whether err carries a NotFound status from the service.
func IsNotFound(err error) bool {
	return status.Code(unwrapStatus(err)) == codes.NotFound
}

// IsAlreadyExists reports whether err carries an AlreadyExists status.
func IsAlreadyExists(err error) bool {
	return status.Code(unwrapStatus(err)) == codes.AlreadyExists
}

// unwrapStatus finds the innermost error that carries a gRPC status.
func unwrapStatus(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := status.FromError(e); ok {
			return e
		}
	}
	return err
}
