package matching

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTender     = errors.New("invalid tender")
	ErrInvalidContractor = errors.New("invalid contractor")
)

// ValidationError reports a record that cannot be scored. Err is one of
// ErrInvalidTender or ErrInvalidContractor.
type ValidationError struct {
	Err    error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
