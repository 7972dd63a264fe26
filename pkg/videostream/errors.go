package videostream

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrMissingID indicates the request carried no video identifier
	ErrMissingID = errors.New("missing video id")

	// ErrInvalidID indicates the identifier is malformed or not allowed
	ErrInvalidID = errors.New("invalid video id")

	// ErrNotFound indicates no metadata record exists for the identifier
	ErrNotFound = errors.New("video not found")

	// ErrObjectNotFound indicates the locator does not point at a stored object
	ErrObjectNotFound = errors.New("object not found")

	// ErrNotifierClosed indicates a publish was attempted on a closed notifier
	ErrNotifierClosed = errors.New("notifier closed")
)

// IsClientInput reports whether err was caused by a bad request identifier.
func IsClientInput(err error) bool {
	return errors.Is(err, ErrMissingID) || errors.Is(err, ErrInvalidID)
}

// IsNotFound reports whether err means the video or its bytes do not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrObjectNotFound)
}

// LookupError represents a failure of the metadata store, as opposed to a
// missing record.
type LookupError struct {
	ID  ResourceID
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("metadata lookup failed for video %s: %v", e.ID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// UpstreamError represents a failure to reach or read from the storage
// service before anything was written to the caller.
type UpstreamError struct {
	Locator string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream storage unavailable for %q: %v", e.Locator, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to a storage backend operation
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for backend %s, key %s: %v", e.Op, e.Backend, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
