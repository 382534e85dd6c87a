package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"thumbsmith/internal/services"
)

// Fetcher retrieves raw asset bytes for a URL. Errors are tagged with the
// services sentinels so the scheduler can decide whether to retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches assets over HTTP with a per-attempt timeout.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

// NewHTTPFetcher builds a fetcher. The timeout bounds each individual attempt;
// retries are the scheduler's concern.
func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Fetch downloads url and returns the response body. Timeouts and 5xx
// responses are transient; 404 and 410 will never succeed and are tagged
// invalid so the scheduler fails them without retrying.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidAsset, "fetch", "request", "build request for "+url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "request", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := classifyStatus(resp.StatusCode, url); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "read", url, err)
	}
	return body, nil
}

func classifyStatus(code int, url string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return services.Wrap(
			services.ErrInvalidAsset, "fetch", "status",
			fmt.Sprintf("%s returned %d", url, code), nil,
		)
	case code == http.StatusTooManyRequests, code >= 500:
		return services.Wrap(
			services.ErrTransient, "fetch", "status",
			fmt.Sprintf("%s returned %d", url, code), nil,
		)
	default:
		return services.Wrap(
			services.ErrInvalidAsset, "fetch", "status",
			fmt.Sprintf("%s returned %d", url, code), nil,
		)
	}
}
