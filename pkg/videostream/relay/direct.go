package relay

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tendant/video-streaming/pkg/videostream"
)

// DefaultContentType is sent for every video served in direct mode
const DefaultContentType = "video/mp4"

// Direct serves videos straight from a blob store.
type Direct struct {
	store       videostream.BlobStore
	contentType string
}

// DirectOption configures a Direct relay
type DirectOption func(*Direct)

// WithContentType overrides the fixed content type. An empty value sends the
// type reported by the store instead.
func WithContentType(contentType string) DirectOption {
	return func(d *Direct) {
		d.contentType = contentType
	}
}

// NewDirect creates a relay reading from store
func NewDirect(store videostream.BlobStore, opts ...DirectOption) *Direct {
	d := &Direct{
		store:       store,
		contentType: DefaultContentType,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Direct) Relay(ctx context.Context, locator string, header http.Header, w http.ResponseWriter) (videostream.RelayResult, error) {
	var result videostream.RelayResult

	obj, err := d.store.Open(ctx, locator)
	if err != nil {
		return result, err
	}
	defer obj.Body.Close()

	contentType := d.contentType
	if contentType == "" {
		contentType = obj.ContentType
	}

	h := w.Header()
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if obj.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}

	w.WriteHeader(http.StatusOK)
	result.Status = http.StatusOK
	result.HeadersWritten = true

	n, err := copyBody(ctx, w, obj.Body)
	result.Bytes = n
	if err != nil {
		return result, fmt.Errorf("failed to stream %s after %d bytes: %w", locator, n, err)
	}
	return result, nil
}
