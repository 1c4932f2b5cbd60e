package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidArgument is returned for out-of-range parameters such as negative limits.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StoreError reports a failed store operation. Err carries the driver or
// argument error and is reachable through errors.Is / errors.As.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func checkLimit(limit int) error {
	if limit < 0 {
		return invalidArgument("limit must be non-negative (got %d)", limit)
	}
	return nil
}
