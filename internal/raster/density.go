package raster

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
)

// maxKernelSide keeps kernelSize² within int32.
const maxKernelSide = 46340

// KernelSize returns the side, in cells, of the square window approximating a
// neighbourhood of areaKm2 at the given pixel size in metres. The side is the
// half-diagonal construction r*sqrt(2) of the equal-area circle's radius r.
func KernelSize(areaKm2, pixelM float64) (int, error) {
	if areaKm2 <= 0 || pixelM <= 0 || math.IsNaN(areaKm2) || math.IsNaN(pixelM) {
		return 0, eris.Wrapf(geoerr.ErrInvalidKernel, "raster: kernel for area %g km2 at %g m", areaKm2, pixelM)
	}
	r := math.Sqrt(areaKm2 / math.Pi)
	side := r * math.Sqrt2 * 1000
	k := math.Round(side / pixelM)
	if k < 1 || k > maxKernelSide {
		return 0, eris.Wrapf(geoerr.ErrInvalidKernel, "raster: kernel size %.0f out of range", k)
	}
	return int(k), nil
}

// Density counts, for every cell, the built-up cells in the surrounding
// kernelSize×kernelSize window with zero padding outside the grid. For even
// kernels the window extends one cell further towards higher indices.
// It returns the count grid and the kernel size used.
func Density(ctx context.Context, g *Grid, areaKm2 float64, opts ...RunOption) (*Grid, int, error) {
	if g.DType != DTypeBinary {
		return nil, 0, eris.Wrapf(geoerr.ErrDTypeMismatch, "raster: density of %s grid", g.DType)
	}
	t := g.Transform
	if t.Rotated() || math.Abs(t.PixelWidth) != math.Abs(t.PixelHeight) {
		return nil, 0, eris.Wrapf(geoerr.ErrNonSquarePixels, "raster: density pixel %gx%g", t.PixelWidth, t.PixelHeight)
	}
	if g.CRS.IsGeographic() {
		return nil, 0, eris.Errorf("raster: density needs metric pixels, grid is in %s", g.CRS)
	}
	k, err := KernelSize(areaKm2, math.Abs(t.PixelWidth))
	if err != nil {
		return nil, 0, err
	}

	w, h := g.Width, g.Height
	sat := integral(g)
	stride := w + 1
	before := (k - 1) / 2
	out := make([]int32, w*h)

	err = forRows(ctx, h, collectOptions(opts).workers, func(row int) error {
		r0 := max(row-before, 0)
		r1 := min(row-before+k, h)
		for col := 0; col < w; col++ {
			c0 := max(col-before, 0)
			c1 := min(col-before+k, w)
			sum := sat[r1*stride+c1] - sat[r0*stride+c1] - sat[r1*stride+c0] + sat[r0*stride+c0]
			out[row*w+col] = int32(sum)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return g.derive(DTypeCount, out), k, nil
}

// integral builds the summed-area table of cells equal to 1. Entry
// (r, c) of the (h+1)×(w+1) table holds the count over rows < r, cols < c.
func integral(g *Grid) []int64 {
	w, h := g.Width, g.Height
	stride := w + 1
	sat := make([]int64, stride*(h+1))
	for r := 0; r < h; r++ {
		var run int64
		for c := 0; c < w; c++ {
			if g.cells[r*w+c] == 1 {
				run++
			}
			sat[(r+1)*stride+c+1] = sat[r*stride+c+1] + run
		}
	}
	return sat
}
