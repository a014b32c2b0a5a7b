package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultDialTimeout  = 5 * time.Second
	maxDocumentSize     = 32 << 20
	defaultMaxIdleConns = 8
)

// ErrUnexpectedStatus is wrapped when the catalog server answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// ErrDocumentTooLarge is returned when a response exceeds the document size limit.
var ErrDocumentTooLarge = errors.New("catalog document too large")

// HTTPSource fetches catalog documents over HTTP(S).
type HTTPSource struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSource returns an HTTPSource. userAgent is optional; a non-positive
// timeout selects the default.
func NewHTTPSource(userAgent string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{client: newHTTPClient(timeout), userAgent: userAgent}
}

// NewHTTPSourceWithClient returns an HTTPSource that uses client as is.
func NewHTTPSourceWithClient(client *http.Client, userAgent string) *HTTPSource {
	return &HTTPSource{client: client, userAgent: userAgent}
}

// Fetch GETs url and returns the response body.
func (s *HTTPSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "application/json, audio/x-mpegurl;q=0.9, */*;q=0.5")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, ErrUnexpectedStatus)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	if len(body) > maxDocumentSize {
		return nil, ErrDocumentTooLarge
	}
	return body, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dial := timeout
	if dial > defaultDialTimeout {
		dial = defaultDialTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: dial, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        defaultMaxIdleConns,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: dial,
		},
	}
}
