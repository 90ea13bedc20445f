package resource

import (
	"errors"
	"fmt"
)

// ErrLimitExceeded is returned when a single request can never fit a hard limit.
var ErrLimitExceeded = errors.New("resource limit exceeded")

// LimitError reports a request larger than the configured limit.
type LimitError struct {
	Resource  string
	Requested int64
	Limit     int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: requested %d exceeds limit %d", e.Resource, e.Requested, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }
