package overpass

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openspace-cli/internal/resilience"
)

const sampleResponse = `{
  "version": 0.6,
  "generator": "Overpass API",
  "elements": [
    {"type": "way", "id": 1, "tags": {"highway": "primary", "lanes": "2"},
     "geometry": [{"lat": 40.60, "lon": 22.90}, {"lat": 40.61, "lon": 22.91}]},
    {"type": "way", "id": 2, "tags": {"leisure": "park"},
     "geometry": [{"lat": 40.60, "lon": 22.90}, {"lat": 40.60, "lon": 22.91}, {"lat": 40.61, "lon": 22.91}, {"lat": 40.60, "lon": 22.90}]}
  ]
}`

func testClient(url string) Client {
	return NewClient(
		WithURL(url),
		WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	)
}

func TestFetch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Fetch(context.Background(), OpenSpaceQuery(), BBox{South: 40.6, West: 22.9, North: 40.7, East: 23})
	require.NoError(t, err)
	require.Len(t, resp.Elements, 2)
	assert.Equal(t, 6.0, resp.Elements[0].Width(3))
	assert.Empty(t, resp.Elements[0].Rings())
	assert.Len(t, resp.Elements[1].Rings(), 1)
	assert.True(t, strings.Contains(gotQuery, `(40.6,22.9,40.7,23)`))
}

func TestFetch_RetriesOnThrottle(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"elements": []}`)
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Fetch(context.Background(), RoadQuery(), BBox{South: 0, West: 0, North: 1, East: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Elements)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_RuntimeRemark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"elements": [], "remark": "runtime error: Query timed out in \"query\" at line 1"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), RoadQuery(), BBox{South: 0, West: 0, North: 1, East: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Query timed out")
}

func TestFetch_DegenerateBBox(t *testing.T) {
	_, err := NewClient().Fetch(context.Background(), RoadQuery(), BBox{South: 1, West: 0, North: 1, East: 1})
	assert.Error(t, err)
}
