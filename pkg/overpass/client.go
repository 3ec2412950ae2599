package overpass

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/openspace-cli/internal/resilience"
)

// DefaultURL is the public Overpass interpreter.
const DefaultURL = "https://overpass-api.de/api/interpreter"

// Client runs Overpass queries.
type Client interface {
	// Fetch runs q over box and returns the decoded response.
	Fetch(ctx context.Context, q Query, box BBox) (*Response, error)
}

// Option configures the client.
type Option func(*client)

// WithURL overrides DefaultURL.
func WithURL(u string) Option {
	return func(c *client) { c.url = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetry sets the retry policy for throttled or failed queries.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) { c.retry = cfg }
}

// WithTimeout sets the server-side query timeout in seconds.
func WithTimeout(secs int) Option {
	return func(c *client) { c.timeoutSecs = secs }
}

type client struct {
	url         string
	httpClient  *http.Client
	limiter     *rate.Limiter
	retry       resilience.RetryConfig
	timeoutSecs int
}

// NewClient creates a Client.
func NewClient(opts ...Option) Client {
	c := &client{
		url:        DefaultURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		// The public instance allows about one query per second per client.
		limiter: rate.NewLimiter(1, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) Fetch(ctx context.Context, q Query, box BBox) (*Response, error) {
	if box.South >= box.North || box.West >= box.East {
		return nil, eris.Errorf("overpass: degenerate bbox %s", box)
	}
	if q.TimeoutSecs == 0 {
		q.TimeoutSecs = c.timeoutSecs
	}
	ql := q.Build(box)

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("overpass", "interpreter")

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		return c.do(ctx, ql)
	})
	if err != nil {
		return nil, err
	}
	if strings.Contains(resp.Remark, "runtime error") {
		return nil, eris.Errorf("overpass: %s", resp.Remark)
	}
	zap.L().Debug("overpass: query complete",
		zap.String("bbox", box.String()),
		zap.Int("elements", len(resp.Elements)),
	)
	return resp, nil
}

func (c *client) do(ctx context.Context, ql string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+url.Values{"data": {ql}}.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp, "overpass"); err != nil {
		return nil, err
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	return &out, nil
}
