package videostream

import (
	"io"
	"time"
)

// ResourceID is a validated, client-supplied video identifier.
type ResourceID string

func (id ResourceID) String() string {
	return string(id)
}

// Record maps a video identifier to the physical locator of its bytes.
type Record struct {
	ID      ResourceID
	Locator string
}

// ViewedEventPrefix prefixes the event name published when a video is viewed.
const ViewedEventPrefix = "viewed-"

// AccessEvent is published after a video has been streamed successfully.
type AccessEvent struct {
	VideoID ResourceID `json:"videoId"`
	Event   string     `json:"event"`
}

// NewViewedEvent builds the access event for a streamed video.
func NewViewedEvent(id ResourceID) AccessEvent {
	return AccessEvent{
		VideoID: id,
		Event:   ViewedEventPrefix + string(id),
	}
}

// RelayResult describes what a Relay wrote to the response.
type RelayResult struct {
	// Status is the status code written to the caller, zero if nothing was written.
	Status int
	// Bytes is the number of body bytes copied to the caller.
	Bytes int64
	// HeadersWritten reports whether the status line and headers were flushed.
	// Once true the response can no longer be changed.
	HeadersWritten bool
}

// Object is an open blob returned by a BlobStore. The caller must close Body.
type Object struct {
	Key         string
	Body        io.ReadCloser
	Size        int64 // -1 when unknown
	ContentType string
	UpdatedAt   time.Time
}
