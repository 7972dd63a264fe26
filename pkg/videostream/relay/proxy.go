package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tendant/video-streaming/pkg/videostream"
)

// DefaultUpstreamTimeout bounds dialing the storage service and waiting for
// its response headers.
const DefaultUpstreamTimeout = 10 * time.Second

// ProxyConfig configures the upstream storage service
type ProxyConfig struct {
	Host    string
	Port    int
	Timeout time.Duration // Dial and response header timeout; the body is not bounded

	// Client overrides the HTTP client, mainly for tests
	Client *http.Client
}

// Proxy relays videos from an upstream storage service exposing
// GET /video?path=<locator>.
type Proxy struct {
	baseURL url.URL
	client  *http.Client
}

// NewProxy creates a relay for the configured storage service
func NewProxy(config ProxyConfig) (*Proxy, error) {
	if config.Host == "" {
		return nil, errors.New("storage host is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid storage port %d", config.Port)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultUpstreamTimeout
	}

	client := config.Client
	if client == nil {
		client = newUpstreamClient(config.Timeout)
	}

	return &Proxy{
		baseURL: url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
			Path:   "/video",
		},
		client: client,
	}, nil
}

func newUpstreamClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		// Bodies are relayed as-is, never decoded.
		DisableCompression:  true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// URL returns the upstream URL for locator
func (p *Proxy) URL(locator string) string {
	u := p.baseURL
	u.RawQuery = url.Values{"path": {locator}}.Encode()
	return u.String()
}

// Relay forwards the request to the storage service and copies its status,
// headers and body to w. Connection failures are returned as
// *videostream.UpstreamError before anything is written.
func (p *Proxy) Relay(ctx context.Context, locator string, header http.Header, w http.ResponseWriter) (videostream.RelayResult, error) {
	var result videostream.RelayResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(locator), nil)
	if err != nil {
		return result, fmt.Errorf("failed to build upstream request: %w", err)
	}
	copyHeader(req.Header, header)
	removeHopHeaders(req.Header)

	resp, err := p.client.Do(req)
	if err != nil {
		return result, &videostream.UpstreamError{Locator: locator, Err: err}
	}
	defer resp.Body.Close()

	dst := w.Header()
	copyHeader(dst, resp.Header)
	removeHopHeaders(dst)
	if resp.ContentLength >= 0 && dst.Get("Content-Length") == "" {
		dst.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	w.WriteHeader(resp.StatusCode)
	result.Status = resp.StatusCode
	result.HeadersWritten = true

	n, err := copyBody(ctx, w, resp.Body)
	result.Bytes = n
	if err != nil {
		return result, fmt.Errorf("failed to relay upstream body after %d bytes: %w", n, err)
	}
	return result, nil
}
