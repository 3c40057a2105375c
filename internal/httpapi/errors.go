package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"spilld/internal/spill"
	"spilld/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

type notFoundError struct{ id uint64 }

func (e notFoundError) Error() string { return fmt.Sprintf("buffer %d not found", e.id) }

// ErrNotFound reports an unknown buffer id.
func ErrNotFound(id uint64) error { return notFoundError{id: id} }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

type badRequestError struct{ msg string }

func (e badRequestError) Error() string   { return e.msg }
func (e badRequestError) StatusCode() int { return http.StatusBadRequest }

// tooLargeError rejects allocations that can never be satisfied.
type tooLargeError struct {
	size, limit int64
	what        string
}

func (e tooLargeError) Error() string {
	return fmt.Sprintf("size %d exceeds %s of %d bytes", e.size, e.what, e.limit)
}

func (e tooLargeError) StatusCode() int { return http.StatusInsufficientStorage }

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case spill.IsInvalidOperation(err):
		return http.StatusConflict
	case spill.IsAllocation(err):
		return http.StatusInsufficientStorage
	case spill.IsConfiguration(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Warn().Err(err).Msg("encode response")
	}
}
