package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/video-streaming/pkg/videostream"
	"github.com/tendant/video-streaming/pkg/videostream/metrics"
	"github.com/tendant/video-streaming/pkg/videostream/relay"
	memoryresolver "github.com/tendant/video-streaming/pkg/videostream/resolver/memory"
	memorystorage "github.com/tendant/video-streaming/pkg/videostream/storage/memory"
)

const (
	videoA = "5d9e690ad76fe06a3d7ae416"
	videoB = "5d9e6a6bd76fe06a3d7ae417"
)

type spyResolver struct {
	mu    sync.Mutex
	calls int
	next  videostream.Resolver
	err   error
}

func (s *spyResolver) Resolve(ctx context.Context, id videostream.ResourceID) (*videostream.Record, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.next.Resolve(ctx, id)
}

func (s *spyResolver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type spyDispatcher struct {
	mu     sync.Mutex
	events []videostream.AccessEvent
}

func (s *spyDispatcher) Dispatch(event videostream.AccessEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *spyDispatcher) Events() []videostream.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]videostream.AccessEvent(nil), s.events...)
}

type spyRelay struct {
	calls  int
	result videostream.RelayResult
	err    error
	write  func(w http.ResponseWriter)
}

func (s *spyRelay) Relay(ctx context.Context, locator string, header http.Header, w http.ResponseWriter) (videostream.RelayResult, error) {
	s.calls++
	if s.write != nil {
		s.write(w)
	}
	return s.result, s.err
}

type videoTest struct {
	resolver   *spyResolver
	dispatcher *spyDispatcher
	router     http.Handler
}

func setupVideoTest(t *testing.T, r videostream.Relay, opts ...VideoHandlerOption) *videoTest {
	t.Helper()

	resolver := &spyResolver{next: memoryresolver.New(map[string]string{
		videoA: "videos/a.mp4",
		videoB: "videos/b.mp4",
	})}
	dispatcher := &spyDispatcher{}
	handler := NewVideoHandler(videostream.NewObjectIDValidator(), resolver, r, dispatcher, opts...)

	return &videoTest{
		resolver:   resolver,
		dispatcher: dispatcher,
		router:     NewRouter(handler, NewHealthHandler(), nil),
	}
}

func (vt *videoTest) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	vt.router.ServeHTTP(rec, req)
	return rec
}

func newUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *relay.Proxy) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().(*net.TCPAddr)
	p, err := relay.NewProxy(relay.ProxyConfig{Host: addr.IP.String(), Port: addr.Port, Timeout: time.Second})
	require.NoError(t, err)
	return srv, p
}

func TestStreamVideo_RejectsBadIDs(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantBody string
	}{
		{"no query", "/video", "Missing video id\n"},
		{"empty id", "/video?id=", "Missing video id\n"},
		{"other param", "/video?video=" + videoA, "Missing video id\n"},
		{"short", "/video?id=abc", "Invalid video id\n"},
		{"non hex", "/video?id=5d9e690ad76fe06a3d7ae41z", "Invalid video id\n"},
		{"integer", "/video?id=1", "Invalid video id\n"},
		{"injection", "/video?id=%7B%22%24ne%22%3A1%7D", "Invalid video id\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &spyRelay{}
			vt := setupVideoTest(t, r)

			rec := vt.get(tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Zero(t, vt.resolver.Calls(), "resolver must not be called")
			assert.Zero(t, r.calls, "relay must not be called")
			assert.Empty(t, vt.dispatcher.Events())
		})
	}
}

func TestStreamVideo_NotFound(t *testing.T) {
	r := &spyRelay{}
	vt := setupVideoTest(t, r)

	rec := vt.get("/video?id=000000000000000000000000")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found\n", rec.Body.String())
	assert.Equal(t, 1, vt.resolver.Calls())
	assert.Zero(t, r.calls)
	assert.Empty(t, vt.dispatcher.Events())
}

func TestStreamVideo_LookupError(t *testing.T) {
	r := &spyRelay{}
	vt := setupVideoTest(t, r)
	vt.resolver.err = &videostream.LookupError{ID: videoA, Err: errors.New("no reachable servers")}

	rec := vt.get("/video?id=" + videoA)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error\n", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "no reachable servers")
	assert.Zero(t, r.calls)
	assert.Empty(t, vt.dispatcher.Events())
}

type blockingResolver struct{}

func (blockingResolver) Resolve(ctx context.Context, id videostream.ResourceID) (*videostream.Record, error) {
	<-ctx.Done()
	return nil, &videostream.LookupError{ID: id, Err: ctx.Err()}
}

func TestStreamVideo_LookupTimeout(t *testing.T) {
	dispatcher := &spyDispatcher{}
	handler := NewVideoHandler(videostream.NewObjectIDValidator(), blockingResolver{}, &spyRelay{}, dispatcher, WithLookupTimeout(20*time.Millisecond))

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		handler.StreamVideo(rec, httptest.NewRequest(http.MethodGet, "/video?id="+videoA, nil))
		done <- rec
	}()

	select {
	case rec := <-done:
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup was not bounded by the timeout")
	}
	assert.Empty(t, dispatcher.Events())
}

func TestStreamVideo_ProxyRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)

	var gotPath, gotAgent string
	_, proxy := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Query().Get("path")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Header().Set("X-Storage-Node", "node-1")
		w.Write(payload)
	})
	vt := setupVideoTest(t, proxy)

	ts := httptest.NewServer(vt.router)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/video?id="+videoA, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "video-player/1.0")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	assert.Equal(t, "node-1", resp.Header.Get("X-Storage-Node"))
	assert.Equal(t, int64(len(payload)), resp.ContentLength)
	assert.True(t, bytes.Equal(payload, body), "body differs from upstream")

	assert.Equal(t, "videos/a.mp4", gotPath)
	assert.Equal(t, "video-player/1.0", gotAgent)

	assert.Equal(t, []videostream.AccessEvent{videostream.NewViewedEvent(videoA)}, vt.dispatcher.Events())
}

func TestStreamVideo_UpstreamUnavailable(t *testing.T) {
	srv, proxy := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	vt := setupVideoTest(t, proxy)

	rec := vt.get("/video?id=" + videoA)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Bad Gateway\n", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Empty(t, vt.dispatcher.Events())
}

func TestStreamVideo_UpstreamErrorStatusIsRelayed(t *testing.T) {
	_, proxy := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file missing on storage", http.StatusNotFound)
	})
	vt := setupVideoTest(t, proxy)

	rec := vt.get("/video?id=" + videoA)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "file missing on storage\n", rec.Body.String())
	assert.Empty(t, vt.dispatcher.Events())
}

func TestStreamVideo_ConcurrentRequestsAreIsolated(t *testing.T) {
	payloads := map[string][]byte{
		"videos/a.mp4": bytes.Repeat([]byte("A"), 256*1024),
		"videos/b.mp4": bytes.Repeat([]byte("B"), 256*1024),
	}

	_, proxy := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		data := payloads[r.URL.Query().Get("path")]
		w.Header().Set("Content-Type", "video/mp4")
		for off := 0; off < len(data); off += 16 * 1024 {
			w.Write(data[off : off+16*1024])
			w.(http.Flusher).Flush()
			time.Sleep(time.Millisecond)
		}
	})
	vt := setupVideoTest(t, proxy)
	ts := httptest.NewServer(vt.router)
	defer ts.Close()

	ids := map[string]string{videoA: "videos/a.mp4", videoB: "videos/b.mp4"}
	bodies := make(map[string][]byte)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			resp, err := http.Get(ts.URL + "/video?id=" + id)
			if err != nil {
				t.Errorf("request %s: %v", id, err)
				return
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Errorf("read %s: %v", id, err)
				return
			}
			mu.Lock()
			bodies[id] = body
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	for id, locator := range ids {
		assert.True(t, bytes.Equal(payloads[locator], bodies[id]), fmt.Sprintf("body for %s was mixed up", id))
	}
	assert.ElementsMatch(t, []videostream.AccessEvent{
		videostream.NewViewedEvent(videoA),
		videostream.NewViewedEvent(videoB),
	}, vt.dispatcher.Events())
}

func TestStreamVideo_Direct(t *testing.T) {
	store := memorystorage.New()
	store.Put("videos/a.mp4", []byte("mp4 bytes"), "")
	vt := setupVideoTest(t, relay.NewDirect(store))

	t.Run("Found", func(t *testing.T) {
		rec := vt.get("/video?id=" + videoA)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
		assert.Equal(t, "9", rec.Header().Get("Content-Length"))
		assert.Equal(t, "mp4 bytes", rec.Body.String())
	})

	t.Run("MissingBlob", func(t *testing.T) {
		rec := vt.get("/video?id=" + videoB)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	assert.Equal(t, []videostream.AccessEvent{videostream.NewViewedEvent(videoA)}, vt.dispatcher.Events())
}

func TestStreamVideo_AbortAfterHeaders(t *testing.T) {
	r := &spyRelay{
		result: videostream.RelayResult{Status: http.StatusOK, Bytes: 4, HeadersWritten: true},
		err:    io.ErrUnexpectedEOF,
		write: func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("part"))
		},
	}
	vt := setupVideoTest(t, r)

	rec := vt.get("/video?id=" + videoA)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "part", rec.Body.String())
	assert.Empty(t, vt.dispatcher.Events())
}

func TestStreamVideo_UnexpectedRelayError(t *testing.T) {
	vt := setupVideoTest(t, &spyRelay{err: errors.New("permission denied")})

	rec := vt.get("/video?id=" + videoA)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "permission denied")
	assert.Empty(t, vt.dispatcher.Events())
}

type panickingResolver struct{}

func (panickingResolver) Resolve(ctx context.Context, id videostream.ResourceID) (*videostream.Record, error) {
	panic("boom")
}

func TestStreamVideo_PanicIsRecovered(t *testing.T) {
	handler := NewVideoHandler(videostream.NewObjectIDValidator(), panickingResolver{}, &spyRelay{}, &spyDispatcher{})
	router := NewRouter(handler, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video?id="+videoA, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestStreamVideo_AllowList(t *testing.T) {
	store := memorystorage.New()
	store.Put("SampleVideo_1280x720_1mb.mp4", []byte("sample"), "")
	resolver := memoryresolver.New(map[string]string{"1": "SampleVideo_1280x720_1mb.mp4", "2": "missing.mp4"})
	dispatcher := &spyDispatcher{}

	handler := NewVideoHandler(videostream.NewAllowListValidator("1", "2"), resolver, relay.NewDirect(store), dispatcher)
	router := NewRouter(handler, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video?id=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sample", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video?id=3", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []videostream.AccessEvent{{VideoID: "1", Event: "viewed-1"}}, dispatcher.Events())
}

func TestStreamVideo_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := memorystorage.New()
	store.Put("videos/a.mp4", []byte("abc"), "")
	vt := setupVideoTest(t, relay.NewDirect(store), WithMetrics(metrics.New(reg)))

	vt.get("/video?id=" + videoA)
	vt.get("/video?id=bad")

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "video_streaming_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{metrics.OutcomeCompleted: 1, metrics.OutcomeBadRequest: 1}, counts)
}
