package store

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// =============================================================================
// Domain-Specific Error Types
// =============================================================================

// ErrNotFound indicates a requested resource does not exist.
type ErrNotFound struct {
	Resource string
	Name     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Name)
}

// ErrAlreadyExists indicates a create request collided with an existing
// resource of a different shape.
type ErrAlreadyExists struct {
	Resource string
	Name     string
	Message  string
}

func (e *ErrAlreadyExists) Error() string {
	return fmt.Sprintf("%s %s already exists: %s", e.Resource, e.Name, e.Message)
}

// ErrInvalidArgument indicates invalid input from the client.
type ErrInvalidArgument struct {
	Field   string
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid argument for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

// ErrFailedPrecondition indicates the collection is not in the state the
// operation needs, such as searching before load.
type ErrFailedPrecondition struct {
	Collection string
	Message    string
}

func (e *ErrFailedPrecondition) Error() string {
	return fmt.Sprintf("collection '%s': %s", e.Collection, e.Message)
}

// ErrSchemaMismatch indicates incompatible schema between operations.
type ErrSchemaMismatch struct {
	Collection string
	Message    string
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("schema mismatch for collection '%s': %s", e.Collection, e.Message)
}

// ErrDimensionMismatch indicates vector dimension incompatibility.
type ErrDimensionMismatch struct {
	Expected   int
	Actual     int
	Collection string
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch for collection '%s': expected %d, got %d",
		e.Collection, e.Expected, e.Actual)
}

// ErrInternal indicates an unexpected internal error.
type ErrInternal struct {
	Operation string
	Cause     error
}

func (e *ErrInternal) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("internal error during %s", e.Operation)
}

func (e *ErrInternal) Unwrap() error {
	return e.Cause
}

// =============================================================================
// Error Constructors
// =============================================================================

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource, name string) error {
	return &ErrNotFound{Resource: resource, Name: name}
}

// NewAlreadyExistsError creates an already exists error.
func NewAlreadyExistsError(resource, name, message string) error {
	return &ErrAlreadyExists{Resource: resource, Name: name, Message: message}
}

// NewInvalidArgumentError creates an invalid argument error.
func NewInvalidArgumentError(field, message string) error {
	return &ErrInvalidArgument{Field: field, Message: message}
}

// NewFailedPreconditionError creates a failed precondition error.
func NewFailedPreconditionError(collection, message string) error {
	return &ErrFailedPrecondition{Collection: collection, Message: message}
}

// NewSchemaMismatchError creates a schema mismatch error.
func NewSchemaMismatchError(collection, message string) error {
	return &ErrSchemaMismatch{Collection: collection, Message: message}
}

// NewDimensionMismatchError creates a dimension mismatch error.
func NewDimensionMismatchError(collection string, expected, actual int) error {
	return &ErrDimensionMismatch{Collection: collection, Expected: expected, Actual: actual}
}

// NewInternalError creates an internal error.
func NewInternalError(operation string, cause error) error {
	return &ErrInternal{Operation: operation, Cause: cause}
}

// =============================================================================
// gRPC Status Code Mapping
// =============================================================================

// ToGRPCStatus converts a domain error to a gRPC status error with appropriate code.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	// Already a gRPC status error
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		notFoundErr       *ErrNotFound
		alreadyExistsErr  *ErrAlreadyExists
		invalidArgErr     *ErrInvalidArgument
		preconditionErr   *ErrFailedPrecondition
		schemaMismatchErr *ErrSchemaMismatch
		dimMismatchErr    *ErrDimensionMismatch
		internalErr       *ErrInternal
	)

	switch {
	case errors.As(err, &notFoundErr):
		return status.Error(codes.NotFound, err.Error())

	case errors.As(err, &alreadyExistsErr):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.As(err, &invalidArgErr):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.As(err, &preconditionErr):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.As(err, &schemaMismatchErr):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.As(err, &dimMismatchErr):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.As(err, &internalErr):
		return status.Error(codes.Internal, err.Error())

	default:
		// Unknown errors default to Internal
		return status.Error(codes.Internal, err.Error())
	}
}
