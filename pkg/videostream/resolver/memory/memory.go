package memory

import (
	"context"
	"sync"

	"github.com/tendant/video-streaming/pkg/videostream"
)

// Resolver is a static, in-memory implementation of videostream.Resolver.
// It backs allow-list deployments where the id to path mapping is configured
// rather than stored.
type Resolver struct {
	mu       sync.RWMutex
	locators map[videostream.ResourceID]string
}

// New creates a resolver from an id to locator map
func New(locators map[string]string) *Resolver {
	r := &Resolver{
		locators: make(map[videostream.ResourceID]string, len(locators)),
	}
	for id, locator := range locators {
		r.locators[videostream.ResourceID(id)] = locator
	}
	return r
}

// Put adds or replaces a mapping
func (r *Resolver) Put(id videostream.ResourceID, locator string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locators[id] = locator
}

// Upsert stores every record
func (r *Resolver) Upsert(ctx context.Context, records ...videostream.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.locators[rec.ID] = rec.Locator
	}
	return nil
}

func (r *Resolver) Resolve(ctx context.Context, id videostream.ResourceID) (*videostream.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &videostream.LookupError{ID: id, Err: err}
	}

	r.mu.RLock()
	locator, ok := r.locators[id]
	r.mu.RUnlock()

	if !ok {
		return nil, videostream.ErrNotFound
	}
	return &videostream.Record{ID: id, Locator: locator}, nil
}

// IDs returns the configured identifiers, in no particular order
func (r *Resolver) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.locators))
	for id := range r.locators {
		ids = append(ids, string(id))
	}
	return ids
}
