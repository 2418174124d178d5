// SPDX-License-Identifier: MIT

package jenkins

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrQueueTimeout      = errors.New("jenkins: queued build did not start before the deadline")
	ErrRunnerUnavailable = errors.New("jenkins: host unreachable or transport failure")
	ErrBadResponse       = errors.New("jenkins: invalid response format or malformed data")
	ErrServerError       = errors.New("jenkins: internal error (5xx)")
	ErrForbidden         = errors.New("jenkins: access forbidden")
)

// Error is a rich error type that wraps the sentinel errors with context.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("jenkins: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the nested cause, so errors.Is
// matches ErrRunnerUnavailable as well as e.g. context.Canceled.
func (e *Error) Unwrap() []error {
	chain := make([]error, 0, 2)
	if e.Sentinel != nil {
		chain = append(chain, e.Sentinel)
	}
	if e.Err != nil {
		chain = append(chain, e.Err)
	}
	return chain
}
