package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// rasterExts are the raster formats a prepared archive may carry, in order
// of preference.
var rasterExts = []string{".asc", ".tif", ".tiff"}

// ExtractRaster unpacks a prepared land-cover archive into destDir and
// returns the path of its raster. Sidecar files such as world files are
// extracted next to it.
func ExtractRaster(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: open archive")
	}
	defer r.Close() //nolint:errcheck

	var rasters []string
	for _, f := range r.File {
		path, err := extractEntry(f, destDir)
		if err != nil {
			return "", err
		}
		if path != "" && slices.Contains(rasterExts, strings.ToLower(filepath.Ext(path))) {
			rasters = append(rasters, path)
		}
	}
	if len(rasters) == 0 {
		return "", eris.Errorf("fetcher: no raster in %s", filepath.Base(zipPath))
	}
	slices.SortFunc(rasters, func(a, b string) int {
		return slices.Index(rasterExts, strings.ToLower(filepath.Ext(a))) - slices.Index(rasterExts, strings.ToLower(filepath.Ext(b)))
	})
	return rasters[0], nil
}

// extractEntry writes one archive entry under destDir and returns its path,
// or "" for directories.
func extractEntry(f *zip.File, destDir string) (string, error) {
	dest := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(dest), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("fetcher: illegal archive path %q", f.Name)
	}
	if f.FileInfo().IsDir() {
		return "", eris.Wrap(os.MkdirAll(dest, 0o755), "fetcher: create directory")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "fetcher: open archive entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create file")
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrap(err, "fetcher: write file")
	}
	return dest, eris.Wrap(out.Close(), "fetcher: close file")
}
