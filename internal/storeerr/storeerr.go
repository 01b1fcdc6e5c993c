// Package storeerr defines the sentinel error categories the store and the
// components built on top of it use to signal failure. Callers compare with
// errors.Is; the HTTP layer maps each sentinel to a status code and wire
// error code in one place.
package storeerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input violates a data invariant.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means a lease is already held or a concurrent update lost
	// a compare-and-set race.
	ErrConflict = errors.New("conflict")
	// ErrQueueEmpty means no ticket is currently eligible for claim.
	ErrQueueEmpty = errors.New("queue empty")
	// ErrLockExpired means a heartbeat or release was attempted by a
	// caller that is not the current lease holder.
	ErrLockExpired = errors.New("lock expired")
	// ErrBackend means the underlying store failed for reasons unrelated
	// to the caller's input.
	ErrBackend = errors.New("backend error")
)

// Wrap annotates err with a message while preserving errors.Is matching
// against one of the sentinels above.
func Wrap(sentinel error, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, sentinel)
	}
	return fmt.Errorf("%s: %w: %v", msg, sentinel, err)
}
