package videostream

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPublishTimeout bounds a single background publish.
const DefaultPublishTimeout = 5 * time.Second

// PublishObserver is called after every background publish attempt.
type PublishObserver func(event AccessEvent, err error)

// AsyncDispatcher publishes access events from detached goroutines.
//
// Delivery is at-most-once: a failed publish is logged and dropped. Dispatch
// never blocks on the broker.
type AsyncDispatcher struct {
	notifier Notifier
	timeout  time.Duration
	observe  PublishObserver
	wg       sync.WaitGroup
}

// DispatcherOption configures an AsyncDispatcher
type DispatcherOption func(*AsyncDispatcher)

// WithPublishTimeout sets the deadline applied to each publish.
func WithPublishTimeout(d time.Duration) DispatcherOption {
	return func(ad *AsyncDispatcher) {
		if d > 0 {
			ad.timeout = d
		}
	}
}

// WithPublishObserver registers a callback invoked after each publish.
func WithPublishObserver(fn PublishObserver) DispatcherOption {
	return func(ad *AsyncDispatcher) {
		ad.observe = fn
	}
}

// NewAsyncDispatcher creates a dispatcher publishing through notifier.
func NewAsyncDispatcher(notifier Notifier, opts ...DispatcherOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		notifier: notifier,
		timeout:  DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch publishes event in the background and returns immediately.
func (d *AsyncDispatcher) Dispatch(event AccessEvent) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// The request context is gone by the time this runs.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.notifier.Notify(ctx, event)
		if err != nil {
			slog.Warn("Failed to publish access event", "video_id", event.VideoID, "event", event.Event, "error", err)
		} else {
			slog.Debug("Published access event", "video_id", event.VideoID, "event", event.Event)
		}
		if d.observe != nil {
			d.observe(event, err)
		}
	}()
}

// Wait blocks until in-flight publishes finish or ctx is done.
func (d *AsyncDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
