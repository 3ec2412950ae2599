package raster

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// Clip crops g to the cells covering poly's envelope and sets every cell
// whose centre lies outside poly to nodata. The source nodata value is kept
// when g declares one, otherwise DefaultNoData is used.
func Clip(g *Grid, poly vector.Polygon) (*Grid, error) {
	if g.CRS != poly.CRS {
		return nil, eris.Wrapf(geoerr.ErrCRSMismatch, "raster: clip %s grid with %s polygon", g.CRS, poly.CRS)
	}
	if g.Transform.Rotated() {
		return nil, eris.New("raster: clip of rotated grid")
	}
	box := poly.Bounds().Intersection(g.Bounds())
	if box.IsEmpty() {
		return nil, eris.Wrap(geoerr.ErrEmptyIntersection, "raster: clip")
	}

	c0, r0, c1, r1 := g.window(box)
	if c1 <= c0 || r1 <= r0 {
		return nil, eris.Wrap(geoerr.ErrEmptyIntersection, "raster: clip window")
	}

	nodata := DefaultNoData
	if g.HasNoData {
		nodata = g.NoData
	}
	w, h := c1-c0, r1-r0
	out := make([]int32, w*h)
	var xs []float64
	for row := 0; row < h; row++ {
		_, cy := g.CellCenter(c0, r0+row)
		xs = poly.Crossings(cy, xs)
		for col := 0; col < w; col++ {
			cx, _ := g.CellCenter(c0+col, r0+row)
			if sort.SearchFloat64s(xs, cx)%2 == 1 {
				out[row*w+col] = g.cells[(r0+row)*g.Width+c0+col]
			} else {
				out[row*w+col] = nodata
			}
		}
	}

	ox, oy := g.Transform.Apply(float64(c0), float64(r0))
	tr := g.Transform
	tr.OriginX, tr.OriginY = ox, oy
	return &Grid{
		Width:     w,
		Height:    h,
		Transform: tr,
		CRS:       g.CRS,
		NoData:    nodata,
		HasNoData: true,
		DType:     g.DType,
		cells:     out,
	}, nil
}

// window returns the cell range [c0, c1) x [r0, r1) covering box, snapped
// outward to whole cells and limited to the grid.
func (g *Grid) window(box vector.BBox) (c0, r0, c1, r1 int) {
	ax, ay := g.Transform.Invert(box.MinX, box.MinY)
	bx, by := g.Transform.Invert(box.MaxX, box.MaxY)
	c0 = max(int(math.Floor(math.Min(ax, bx))), 0)
	c1 = min(int(math.Ceil(math.Max(ax, bx))), g.Width)
	r0 = max(int(math.Floor(math.Min(ay, by))), 0)
	r1 = min(int(math.Ceil(math.Max(ay, by))), g.Height)
	return c0, r0, c1, r1
}
