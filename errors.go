package embedstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned by Initialize when the configuration,
	// collaborators or buffer are inconsistent.
	ErrConfiguration = errors.New("embedstore: invalid configuration")
	// ErrCopyFailure is returned when a row copy moved fewer elements than a row.
	ErrCopyFailure = errors.New("embedstore: row copy failed")
	// ErrOutOfCacheSpace is returned when eviction left fewer free slots than
	// a batch needs. It signals a broken cache policy, not a retryable state.
	ErrOutOfCacheSpace = errors.New("embedstore: out of cache space")
	// ErrBackend wraps failures of the persistent backend.
	ErrBackend = errors.New("embedstore: backend failure")
	// ErrNotInitialized is returned by operations before Initialize or after Finalize.
	ErrNotInitialized = errors.New("embedstore: store not initialized")
	// ErrAlreadyInitialized is returned by Initialize on a live store.
	ErrAlreadyInitialized = errors.New("embedstore: store already initialized")
	// ErrInvalidArgument is returned for malformed batches.
	ErrInvalidArgument = errors.New("embedstore: invalid argument")
)

// ConfigError describes the configuration field Initialize rejected.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("embedstore: invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// CopyError reports a short row copy.
type CopyError struct {
	Slot   int
	Offset int
	Copied int
	Want   int
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("embedstore: short copy at slot %d, batch offset %d: %d of %d elements", e.Slot, e.Offset, e.Copied, e.Want)
}

func (e *CopyError) Unwrap() error { return ErrCopyFailure }

// SpaceError reports how many slots a batch needed and how many were free.
type SpaceError struct {
	Need int
	Free int
}

func (e *SpaceError) Error() string {
	return fmt.Sprintf("embedstore: out of cache space: need %d slots, %d free", e.Need, e.Free)
}

func (e *SpaceError) Unwrap() error { return ErrOutOfCacheSpace }

// BackendError wraps a failed backend call.
//
// Both ErrBackend and the underlying error match with errors.Is.
type BackendError struct {
	Op    string
	Keys  int
	cause error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("embedstore: backend %s of %d rows: %v", e.Op, e.Keys, e.cause)
}

func (e *BackendError) Unwrap() []error { return []error{ErrBackend, e.cause} }

// ErrInvariant is returned by CheckInvariants when slot bookkeeping and the
// cache disagree.
var ErrInvariant = errors.New("embedstore: invariant violated")
