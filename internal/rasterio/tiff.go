package rasterio

import (
	"bufio"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/image/tiff"

	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// Placement georeferences an image of the given pixel size.
type Placement func(width, height int) (raster.Transform, error)

// FromBBox spreads the image evenly over b with a top-left origin, the way
// an export service fills a requested envelope.
func FromBBox(b vector.BBox) Placement {
	return func(width, height int) (raster.Transform, error) {
		if b.IsEmpty() {
			return raster.Transform{}, eris.New("rasterio: empty placement envelope")
		}
		return raster.Transform{
			OriginX:     b.MinX,
			PixelWidth:  b.Width() / float64(width),
			OriginY:     b.MaxY,
			PixelHeight: -b.Height() / float64(height),
		}, nil
	}
}

// FromTransform uses a known transform.
func FromTransform(t raster.Transform) Placement {
	return func(int, int) (raster.Transform, error) { return t, nil }
}

// ReadTIFF decodes a single-band TIFF. Gray, Gray16 and paletted images are
// supported; paletted images yield their palette indices.
func ReadTIFF(r io.Reader, place Placement, crs vector.CRS, dtype raster.DType, opts ...raster.Option) (*raster.Grid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, eris.Wrap(err, "rasterio: decode tiff")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cells := make([]int32, 0, w*h)

	switch m := img.(type) {
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				cells = append(cells, int32(m.GrayAt(x, y).Y))
			}
		}
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				cells = append(cells, int32(m.Gray16At(x, y).Y))
			}
		}
	case *image.Paletted:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				cells = append(cells, int32(m.ColorIndexAt(x, y)))
			}
		}
	default:
		return nil, eris.Errorf("rasterio: unsupported tiff pixel type %T", img)
	}

	tr, err := place(w, h)
	if err != nil {
		return nil, err
	}
	g, err := raster.New(w, h, tr, crs, dtype, cells, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "rasterio: tiff grid")
	}
	return g, nil
}

// worldFileExts lists sidecar extensions tried next to a TIFF.
var worldFileExts = []string{".tfw", ".tifw", ".wld"}

// WorldFile returns the world file next to path, if one exists.
func WorldFile(path string) (string, bool) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range worldFileExts {
		for _, cand := range []string{base + ext, base + strings.ToUpper(ext)} {
			if _, err := os.Stat(cand); err == nil {
				return cand, true
			}
		}
	}
	return "", false
}

// ReadWorldFile parses the six-line world file format. Its translation terms
// refer to the centre of the top-left pixel.
func ReadWorldFile(path string) (raster.Transform, error) {
	f, err := os.Open(path)
	if err != nil {
		return raster.Transform{}, eris.Wrapf(err, "rasterio: open world file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var v []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(v) < 6 {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return raster.Transform{}, eris.Wrapf(err, "rasterio: world file %s line %d", path, len(v)+1)
		}
		v = append(v, n)
	}
	if len(v) != 6 {
		return raster.Transform{}, eris.Errorf("rasterio: world file %s has %d terms", path, len(v))
	}
	a, d, b, e, c, fy := v[0], v[1], v[2], v[3], v[4], v[5]
	return raster.Transform{
		OriginX:     c - a/2 - b/2,
		PixelWidth:  a,
		RotX:        b,
		OriginY:     fy - d/2 - e/2,
		RotY:        d,
		PixelHeight: e,
	}, nil
}

// Open reads an ASCII grid, or a TIFF with a world file, choosing by extension.
func Open(path string, crs vector.CRS, dtype raster.DType, opts ...raster.Option) (*raster.Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc":
		g, err := ReadASCIIFile(path, crs, dtype)
		if err != nil {
			return nil, err
		}
		return withOptions(g, opts)
	case ".tif", ".tiff":
		wf, ok := WorldFile(path)
		if !ok {
			return nil, eris.Errorf("rasterio: %s has no world file", path)
		}
		tr, err := ReadWorldFile(wf)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "rasterio: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadTIFF(f, FromTransform(tr), crs, dtype, opts...)
	}
	return nil, eris.Errorf("rasterio: unsupported raster format %q", filepath.Ext(path))
}

// withOptions rebuilds g when opts override its header, e.g. a nodata value
// the file did not declare.
func withOptions(g *raster.Grid, opts []raster.Option) (*raster.Grid, error) {
	if len(opts) == 0 {
		return g, nil
	}
	if g.HasNoData {
		opts = append([]raster.Option{raster.WithNoData(g.NoData)}, opts...)
	}
	return raster.New(g.Width, g.Height, g.Transform, g.CRS, g.DType, g.Cells(), opts...)
}
