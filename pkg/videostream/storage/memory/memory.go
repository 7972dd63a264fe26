package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/video-streaming/pkg/videostream"
)

const backendName = "memory"

// Backend is an in-memory implementation of the videostream.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]memoryObject),
	}
}

// Put stores data under objectKey, replacing any previous value
func (b *Backend) Put(objectKey string, data []byte, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[objectKey] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		updatedAt:   time.Now(),
	}
}

// Upload reads the whole reader into memory
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	b.Put(objectKey, data, contentType)
	return nil
}

// Open returns a reader over a copy-free view of the stored bytes
func (b *Backend) Open(ctx context.Context, objectKey string) (*videostream.Object, error) {
	b.mu.RLock()
	obj, ok := b.objects[objectKey]
	b.mu.RUnlock()

	if !ok {
		return nil, &videostream.StorageError{Backend: backendName, Key: objectKey, Op: "open", Err: videostream.ErrObjectNotFound}
	}

	return &videostream.Object{
		Key:         objectKey,
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}
