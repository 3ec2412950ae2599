// Package arcgis exports rasters from ArcGIS ImageServer services.
package arcgis

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/openspace-cli/internal/resilience"
)

// DefaultBaseURL is the European Environment Agency image server.
const DefaultBaseURL = "https://image.discomap.eea.europa.eu"

// Interpolation names accepted by exportImage.
const (
	NearestNeighbor = "RSP_NearestNeighbor"
	Bilinear        = "RSP_BilinearInterpolation"
)

// BBox is an envelope in the request spatial reference.
type BBox struct {
	XMin, YMin, XMax, YMax float64
}

// ExportRequest describes one exportImage call.
type ExportRequest struct {
	// Service is the path below /arcgis/rest/services, ending in ImageServer.
	Service string
	BBox    BBox
	// BBoxSR and ImageSR are EPSG codes.
	BBoxSR  int
	ImageSR int
	// PixelSize is the target cell size in ImageSR units.
	PixelSize     float64
	Interpolation string
}

// Size returns the image dimensions that give PixelSize cells over BBox.
func (r ExportRequest) Size() (int, int) {
	w := int(math.Round((r.BBox.XMax - r.BBox.XMin) / r.PixelSize))
	h := int(math.Round((r.BBox.YMax - r.BBox.YMin) / r.PixelSize))
	return w, h
}

// Client exports images.
type Client interface {
	// ExportImage returns the TIFF bytes of the requested area.
	ExportImage(ctx context.Context, req ExportRequest) ([]byte, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1)) }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) { c.retry = cfg }
}

type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a Client.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(2, 2),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// exportURL builds the exportImage URL for req.
func (c *client) exportURL(req ExportRequest) (string, error) {
	if req.Service == "" {
		return "", eris.New("arcgis: empty service")
	}
	if !(req.PixelSize > 0) {
		return "", eris.Errorf("arcgis: pixel size %g", req.PixelSize)
	}
	w, h := req.Size()
	if w <= 0 || h <= 0 {
		return "", eris.Errorf("arcgis: bbox yields %dx%d image", w, h)
	}
	interp := req.Interpolation
	if interp == "" {
		interp = NearestNeighbor
	}
	params := url.Values{
		"bbox":                 {joinFloats(req.BBox.XMin, req.BBox.YMin, req.BBox.XMax, req.BBox.YMax)},
		"bboxSR":               {strconv.Itoa(req.BBoxSR)},
		"imageSR":              {strconv.Itoa(req.ImageSR)},
		"size":                 {fmt.Sprintf("%d,%d", w, h)},
		"format":               {"tiff"},
		"pixelType":            {"UNKNOWN"},
		"noDataInterpretation": {"esriNoDataMatchAny"},
		"interpolation":        {interp},
		"f":                    {"image"},
	}
	service := strings.Trim(req.Service, "/")
	return c.baseURL + "/arcgis/rest/services/" + service + "/exportImage?" + params.Encode(), nil
}

func joinFloats(vs ...float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ExportImage downloads the image, retrying transient failures.
func (c *client) ExportImage(ctx context.Context, req ExportRequest) ([]byte, error) {
	reqURL, err := c.exportURL(req)
	if err != nil {
		return nil, err
	}
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("arcgis", "exportImage")

	zap.L().Debug("arcgis: export image", zap.String("service", req.Service), zap.String("url", reqURL))
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, reqURL)
	})
}

func (c *client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arcgis: rate limit")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: build request")
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp, "arcgis"); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: read body")
	}
	// Service errors come back as JSON with a 200 status.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "json") || strings.HasPrefix(strings.TrimSpace(string(body[:min(len(body), 16)])), "{") {
		return nil, eris.Errorf("arcgis: service error: %s", truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
