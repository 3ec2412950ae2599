package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache keeps downloaded files under Dir, revalidating http(s) entries with
// their ETag before reuse.
type Cache struct {
	Dir     string
	Fetcher Fetcher
}

// Path returns the local file for rawURL: a hash prefix keeps names from
// different hosts apart while the base name keeps the extension.
func (c *Cache) Path(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	base := "download"
	if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		base = path.Base(u.Path)
	}
	return filepath.Join(c.Dir, hex.EncodeToString(sum[:6])+"-"+base)
}

// Get returns the local path of rawURL, downloading it when absent or when
// a conditional fetcher reports a new ETag.
func (c *Cache) Get(ctx context.Context, rawURL string) (string, error) {
	dst := c.Path(rawURL)
	etagPath := dst + ".etag"
	log := zap.L().With(zap.String("component", "fetcher.cache"), zap.String("url", rawURL))

	_, statErr := os.Stat(dst)
	cached := statErr == nil

	if cf, ok := c.Fetcher.(ConditionalFetcher); ok && isHTTP(rawURL) {
		var etag string
		if cached {
			if b, err := os.ReadFile(etagPath); err == nil {
				etag = strings.TrimSpace(string(b))
			}
		}
		body, newETag, changed, err := cf.DownloadIfChanged(ctx, rawURL, etag)
		if err != nil {
			return "", err
		}
		if !changed {
			log.Debug("cache hit", zap.String("path", dst))
			return dst, nil
		}
		defer body.Close() //nolint:errcheck
		n, err := writeFile(dst, body)
		if err != nil {
			return "", err
		}
		if newETag != "" {
			if err := os.WriteFile(etagPath, []byte(newETag), 0o644); err != nil {
				return "", eris.Wrap(err, "fetcher: write etag")
			}
		}
		log.Info("downloaded", zap.String("path", dst), zap.Int64("bytes", n))
		return dst, nil
	}

	if cached {
		log.Debug("cache hit", zap.String("path", dst))
		return dst, nil
	}
	n, err := DownloadToFile(ctx, c.Fetcher, rawURL, dst)
	if err != nil {
		return "", err
	}
	log.Info("downloaded", zap.String("path", dst), zap.Int64("bytes", n))
	return dst, nil
}
