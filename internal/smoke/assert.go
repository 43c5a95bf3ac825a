package smoke

import (
	"fmt"

	lberrors "github.com/23skdu/longbow-smoke/internal/errors"
)

// callError classifies a failed client call. err must be non-nil.
func callError(op string, err error) error {
	return lberrors.WrapCallError(err, op)
}

func expectEqual[T comparable](op, what string, want, got T) error {
	if want == got {
		return nil
	}
	return lberrors.NewAssertionError(op, fmt.Sprintf("%s: want %v, got %v", what, want, got)).
		WithContext("want", want).
		WithContext("got", got)
}

func expectTrue(op string, cond bool, message string) error {
	if cond {
		return nil
	}
	return lberrors.NewAssertionError(op, message)
}
