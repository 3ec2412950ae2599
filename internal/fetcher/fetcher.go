// Package fetcher downloads prepared raster files over http(s), ftp or from
// the local filesystem.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a single remote file.
type Fetcher interface {
	// Download returns the body of rawURL. The caller closes it.
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// ConditionalFetcher downloads only when the remote ETag differs from etag.
// On a match it returns changed=false and a nil body.
type ConditionalFetcher interface {
	DownloadIfChanged(ctx context.Context, rawURL, etag string) (body io.ReadCloser, newETag string, changed bool, err error)
}

// Mux dispatches by URL scheme. A missing scheme or "file" reads locally.
type Mux struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewMux returns a Mux with default HTTP and FTP fetchers.
func NewMux(httpOpts HTTPOptions, ftpOpts FTPOptions) *Mux {
	return &Mux{HTTP: NewHTTPFetcher(httpOpts), FTP: NewFTPFetcher(ftpOpts)}
}

// Download implements Fetcher.
func (m *Mux) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return m.HTTP.Download(ctx, rawURL)
	case "ftp":
		return m.FTP.Download(ctx, rawURL)
	case "", "file":
		path := u.Path
		if u.Scheme == "" {
			path = rawURL
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		return f, nil
	}
	return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
}

// DownloadIfChanged implements ConditionalFetcher. Sources without ETag
// support always report a change.
func (m *Mux) DownloadIfChanged(ctx context.Context, rawURL, etag string) (io.ReadCloser, string, bool, error) {
	if cf, ok := m.HTTP.(ConditionalFetcher); ok && isHTTP(rawURL) {
		return cf.DownloadIfChanged(ctx, rawURL, etag)
	}
	body, err := m.Download(ctx, rawURL)
	if err != nil {
		return nil, "", false, err
	}
	return body, "", true, nil
}

func isHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

// DownloadToFile copies the body of rawURL into path, creating parent
// directories. It returns the number of bytes written.
func DownloadToFile(ctx context.Context, f Fetcher, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return writeFile(path, body)
}

// writeFile writes r to path through a temp file so a failed download never
// leaves a truncated raster behind.
func writeFile(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "fetcher: create directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	n, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return n, eris.Wrap(err, "fetcher: write file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return n, eris.Wrap(err, "fetcher: rename file")
	}
	return n, nil
}
