// Package rasterio reads and writes grids: ESRI ASCII grids for artifacts and
// TIFF images georeferenced by a request envelope or a world file.
package rasterio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// WriteASCII encodes g as an ESRI ASCII grid. The grid must be north-up with
// square pixels since the format carries a single cell size.
func WriteASCII(w io.Writer, g *raster.Grid) error {
	t := g.Transform
	if t.Rotated() || t.PixelHeight >= 0 || math.Abs(t.PixelWidth) != math.Abs(t.PixelHeight) {
		return eris.Errorf("rasterio: ascii grid needs square north-up pixels, got %gx%g", t.PixelWidth, t.PixelHeight)
	}
	bw := bufio.NewWriter(w)
	b := g.Bounds()
	fmt.Fprintf(bw, "ncols %d\n", g.Width)
	fmt.Fprintf(bw, "nrows %d\n", g.Height)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(b.MinX))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(b.MinY))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(t.PixelWidth))
	if g.HasNoData {
		fmt.Fprintf(bw, "NODATA_value %d\n", g.NoData)
	}
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if col > 0 {
				_ = bw.WriteByte(' ')
			}
			_, _ = bw.WriteString(strconv.FormatInt(int64(g.At(col, row)), 10))
		}
		_ = bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "rasterio: write ascii grid")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteASCIIFile writes g to path.
func WriteASCIIFile(path string, g *raster.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "rasterio: create %s", path)
	}
	if err := WriteASCII(f, g); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "rasterio: close %s", path)
}

// ReadASCII decodes an ESRI ASCII grid. Cell values are rounded to integers.
func ReadASCII(r io.Reader, crs vector.CRS, dtype raster.DType) (*raster.Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<30)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64, 6)
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("rasterio: ascii header %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "rasterio: ascii header %q", key)
		}
		header[key] = v
	}

	ncols, nrows := int(header["ncols"]), int(header["nrows"])
	cell, ok := header["cellsize"]
	if ncols <= 0 || nrows <= 0 || !ok || cell <= 0 {
		return nil, eris.New("rasterio: ascii header needs ncols, nrows and cellsize")
	}
	x0, xCorner := header["xllcorner"]
	y0, yCorner := header["yllcorner"]
	if !xCorner {
		x0 = header["xllcenter"] - cell/2
	}
	if !yCorner {
		y0 = header["yllcenter"] - cell/2
	}

	cells := make([]int32, 0, ncols*nrows)
	parse := func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return eris.Wrapf(err, "rasterio: ascii cell %d", len(cells))
		}
		cells = append(cells, int32(math.Round(v)))
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, err
		}
	}
	for len(cells) < ncols*nrows && sc.Scan() {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "rasterio: read ascii grid")
	}
	if len(cells) != ncols*nrows {
		return nil, eris.Errorf("rasterio: ascii grid has %d of %d cells", len(cells), ncols*nrows)
	}

	var opts []raster.Option
	if nd, ok := header["nodata_value"]; ok {
		opts = append(opts, raster.WithNoData(int32(math.Round(nd))))
	}
	tr := raster.NorthUp(x0, y0+float64(nrows)*cell, cell)
	g, err := raster.New(ncols, nrows, tr, crs, dtype, cells, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "rasterio: ascii grid")
	}
	return g, nil
}

// ReadASCIIFile reads an ESRI ASCII grid from path.
func ReadASCIIFile(path string, crs vector.CRS, dtype raster.DType) (*raster.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rasterio: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadASCII(f, crs, dtype)
}
