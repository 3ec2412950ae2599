package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openspace-cli/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		Retry:     resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})
}

func TestHTTPFetcher_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "ncols 2")
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL+"/lc.asc")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ncols 2", string(data))
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL+"/missing.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcher_DownloadIfChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, "raster")
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, etag, changed, err := f.DownloadIfChanged(context.Background(), srv.URL, "")
	require.NoError(t, err)
	require.True(t, changed)
	_ = body.Close()
	assert.Equal(t, `"v1"`, etag)

	body, etag, changed, err = f.DownloadIfChanged(context.Background(), srv.URL, `"v1"`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, body)
	assert.Equal(t, `"v1"`, etag)
}

func TestCache_Get(t *testing.T) {
	var gets, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		if r.Header.Get("If-None-Match") == `"abc"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		_, _ = io.WriteString(w, "ncols 4")
	}))
	defer srv.Close()

	c := &Cache{Dir: t.TempDir(), Fetcher: &Mux{HTTP: newTestFetcher(), FTP: NewFTPFetcher(FTPOptions{})}}
	url := srv.URL + "/data/clc.asc"

	p1, err := c.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, ".asc", filepath.Ext(p1))
	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "ncols 4", string(data))

	p2, err := c.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, int32(2), gets.Load())
	assert.Equal(t, int32(1), notModified.Load())
}

func TestMux_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lc.asc")
	require.NoError(t, writeTestFile(path, "local"))

	m := &Mux{}
	for _, u := range []string{path, "file://" + path} {
		body, err := m.Download(context.Background(), u)
		require.NoError(t, err, u)
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		_ = body.Close()
		assert.Equal(t, "local", string(data))
	}

	_, err := m.Download(context.Background(), "s3://bucket/lc.tif")
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestDownloadToFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.asc")
	require.NoError(t, writeTestFile(src, "grid"))
	dst := filepath.Join(t.TempDir(), "nested", "dst.asc")

	n, err := DownloadToFile(context.Background(), &Mux{}, src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed after rename")
}
