package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/video-streaming/pkg/videostream"
	"github.com/tendant/video-streaming/pkg/videostream/metrics"
)

// DefaultLookupTimeout bounds a metadata lookup
const DefaultLookupTimeout = 5 * time.Second

// VideoHandler streams videos: it validates the id, resolves it to a locator,
// relays the bytes and, once the stream completes, dispatches an access event.
type VideoHandler struct {
	validator     videostream.Validator
	resolver      videostream.Resolver
	relay         videostream.Relay
	dispatcher    videostream.EventDispatcher
	lookupTimeout time.Duration
	metrics       *metrics.Metrics
}

// VideoHandlerOption configures a VideoHandler
type VideoHandlerOption func(*VideoHandler)

// WithLookupTimeout bounds each metadata lookup
func WithLookupTimeout(d time.Duration) VideoHandlerOption {
	return func(h *VideoHandler) {
		if d > 0 {
			h.lookupTimeout = d
		}
	}
}

// WithMetrics records request outcomes
func WithMetrics(m *metrics.Metrics) VideoHandlerOption {
	return func(h *VideoHandler) {
		h.metrics = m
	}
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(validator videostream.Validator, resolver videostream.Resolver, relay videostream.Relay, dispatcher videostream.EventDispatcher, opts ...VideoHandlerOption) *VideoHandler {
	h := &VideoHandler{
		validator:     validator,
		resolver:      resolver,
		relay:         relay,
		dispatcher:    dispatcher,
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the routes for videos
func (h *VideoHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.StreamVideo)
	return r
}

// StreamVideo handles GET /video?id=<id>
func (h *VideoHandler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	raw := r.URL.Query().Get("id")
	id, err := h.validator.Validate(raw)
	if err != nil {
		slog.Debug("Rejected video id", "request_id", reqID, "video_id", raw, "error", err)
		h.metrics.RequestFinished(metrics.OutcomeBadRequest, 0)
		if errors.Is(err, videostream.ErrMissingID) {
			http.Error(w, "Missing video id", http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid video id", http.StatusBadRequest)
		return
	}

	record, err := h.resolve(ctx, id)
	if err != nil {
		h.writeError(w, r, id, err)
		return
	}
	slog.Info("Translated id to path", "request_id", reqID, "video_id", id, "path", record.Locator)

	result, err := h.relay.Relay(ctx, record.Locator, r.Header, w)
	if err != nil {
		if result.HeadersWritten {
			// The response is committed; nothing can be sent to the client anymore.
			slog.Warn("Video stream aborted", "request_id", reqID, "video_id", id, "bytes", result.Bytes, "error", err)
			h.metrics.RequestFinished(metrics.OutcomeAborted, result.Bytes)
			return
		}
		h.writeError(w, r, id, err)
		return
	}

	if result.Status < 200 || result.Status > 299 {
		slog.Info("Storage returned non-success status", "request_id", reqID, "video_id", id, "status", result.Status)
		h.metrics.RequestFinished(metrics.OutcomeUpstream, result.Bytes)
		return
	}

	h.metrics.RequestFinished(metrics.OutcomeCompleted, result.Bytes)
	h.dispatcher.Dispatch(videostream.NewViewedEvent(id))
}

func (h *VideoHandler) resolve(ctx context.Context, id videostream.ResourceID) (*videostream.Record, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, h.lookupTimeout)
	defer cancel()

	start := time.Now()
	record, err := h.resolver.Resolve(lookupCtx, id)
	h.metrics.LookupObserved(time.Since(start).Seconds())
	return record, err
}

// writeError maps a failure that happened before any byte was written to a
// status code.
func (h *VideoHandler) writeError(w http.ResponseWriter, r *http.Request, id videostream.ResourceID, err error) {
	reqID := middleware.GetReqID(r.Context())

	var lookupErr *videostream.LookupError
	var upstreamErr *videostream.UpstreamError

	switch {
	case videostream.IsNotFound(err):
		slog.Info("Video not found", "request_id", reqID, "video_id", id, "error", err)
		h.metrics.RequestFinished(metrics.OutcomeNotFound, 0)
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.As(err, &lookupErr):
		slog.Error("Metadata lookup failed", "request_id", reqID, "video_id", id, "error", err)
		h.metrics.RequestFinished(metrics.OutcomeLookupError, 0)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	case errors.As(err, &upstreamErr):
		slog.Error("Video storage unavailable", "request_id", reqID, "video_id", id, "locator", upstreamErr.Locator, "error", upstreamErr.Err)
		h.metrics.RequestFinished(metrics.OutcomeUpstream, 0)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	default:
		slog.Error("Unexpected error streaming video", "request_id", reqID, "video_id", id, "error", err)
		h.metrics.RequestFinished(metrics.OutcomeError, 0)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
