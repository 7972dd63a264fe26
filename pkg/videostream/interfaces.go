package videostream

import (
	"context"
	"io"
	"net/http"
)

// Validator checks a raw identifier before any I/O takes place.
type Validator interface {
	Validate(raw string) (ResourceID, error)
}

// Resolver maps an identifier to the record holding its storage locator.
//
// Implementations return ErrNotFound when no record exists and a *LookupError
// for every other failure, including context deadlines. Resolvers never retry.
type Resolver interface {
	Resolve(ctx context.Context, id ResourceID) (*Record, error)
}

// Relay streams the bytes behind a locator to w.
//
// Errors returned while RelayResult.HeadersWritten is false leave w untouched
// and may be mapped to an error response. Errors returned after headers were
// written are only reportable; the response is already committed.
type Relay interface {
	Relay(ctx context.Context, locator string, header http.Header, w http.ResponseWriter) (RelayResult, error)
}

// BlobStore opens stored objects for reading.
type BlobStore interface {
	// Open returns the object at key. ErrObjectNotFound is returned when the
	// key does not exist.
	Open(ctx context.Context, key string) (*Object, error)
}

// Uploader writes objects into a store.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}

// Notifier publishes access events to a broadcast channel.
type Notifier interface {
	Notify(ctx context.Context, event AccessEvent) error
	Close() error
}

// EventDispatcher hands an access event off for publishing without blocking.
type EventDispatcher interface {
	Dispatch(event AccessEvent)
}

// HealthChecker is implemented by components holding long-lived connections.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
