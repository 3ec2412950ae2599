package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/openspace-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RateLimit is the request rate across all hosts; 0 means 5/s.
	RateLimit float64
	Retry     resilience.RetryConfig
}

// HTTPFetcher downloads over http(s) with rate limiting and retries.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "openspace-cli/1.0"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}
}

// Download implements Fetcher.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	body, _, _, err := f.DownloadIfChanged(ctx, rawURL, "")
	return body, err
}

// DownloadIfChanged sends If-None-Match when etag is set. On 304 it returns
// changed=false and a nil body; otherwise the body and the new ETag.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL, etag string) (io.ReadCloser, string, bool, error) {
	cfg := f.opts.Retry
	cfg.OnRetry = resilience.RetryLogger("http", rawURL)

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		return f.get(ctx, rawURL, etag)
	})
	if err != nil {
		return nil, "", false, eris.Wrapf(err, "fetcher: download %s", rawURL)
	}
	if resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		zap.L().Debug("fetcher: not modified", zap.String("url", rawURL), zap.String("etag", etag))
		return nil, etag, false, nil
	}
	return resp.Body, resp.Header.Get("ETag"), true, nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL, etag string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}
	if err := resilience.CheckStatus(resp, "fetcher"); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}
