package spill

import (
	"errors"
	"fmt"
)

// configurationError signals misuse of the global manager lifecycle.
type configurationError struct{ msg string }

func (e configurationError) Error() string { return e.msg }

// ErrConfiguration constructs a configuration error.
func ErrConfiguration(msg string) error { return configurationError{msg: msg} }

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	var e configurationError
	return errors.As(err, &e)
}

// invalidOperationError signals that an operation violated the spillability
// contract of a buffer.
type invalidOperationError struct {
	bufferID uint64
	msg      string
}

func (e invalidOperationError) Error() string {
	return fmt.Sprintf("buffer %d: %s", e.bufferID, e.msg)
}

func errInvalidOperation(id uint64, msg string) error {
	return invalidOperationError{bufferID: id, msg: msg}
}

// IsInvalidOperation reports whether err is an invalid-operation error.
func IsInvalidOperation(err error) bool {
	var e invalidOperationError
	return errors.As(err, &e)
}

// allocationError signals resource exhaustion during a transfer or allocation.
type allocationError struct {
	size  int64
	cause error
}

func (e allocationError) Error() string {
	return fmt.Sprintf("allocation of %d bytes failed: %v", e.size, e.cause)
}

func (e allocationError) Unwrap() error { return e.cause }

func errAllocation(size int64, cause error) error {
	return allocationError{size: size, cause: cause}
}

// IsAllocation reports whether err is an allocation error.
func IsAllocation(err error) bool {
	var e allocationError
	return errors.As(err, &e)
}
