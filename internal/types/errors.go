// internal/types/errors.go
package types

import "errors"

// ErrThreadNotFound is returned when an operation references a thread id
// that the store has never seen.
var ErrThreadNotFound = errors.New("thread not found")

// ErrStorage wraps failures of the underlying store itself (unreachable
// database, corrupt file) as opposed to bad input.
var ErrStorage = errors.New("storage failure")
