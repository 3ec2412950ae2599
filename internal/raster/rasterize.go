package raster

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// rasterGrid lays out a north-up grid over the layer envelope, cut to clip
// when given. ncols and nrows truncate like the reference burner.
func rasterGrid(layer vector.BBox, clip *vector.BBox, cellSize float64, crs vector.CRS) (*Grid, error) {
	if !(cellSize > 0) {
		return nil, eris.Errorf("raster: rasterize cell size %g", cellSize)
	}
	ext := layer
	if clip != nil {
		ext = layer.Intersection(*clip)
		if ext.IsEmpty() {
			ext = *clip
		}
	}
	if ext.IsEmpty() {
		return nil, eris.Wrap(geoerr.ErrEmptyIntersection, "raster: rasterize extent")
	}
	cols := max(int(ext.Width()/cellSize), 1)
	rows := max(int(ext.Height()/cellSize), 1)
	return Filled(cols, rows, NorthUp(ext.MinX, ext.MaxY, cellSize), crs, DTypeBinary, 0)
}

// RasterizePolygons burns 1 into every cell whose centre lies inside any
// polygon of set.
func RasterizePolygons(ctx context.Context, set vector.PolygonSet, cellSize float64, clip *vector.BBox, opts ...RunOption) (*Grid, error) {
	g, err := rasterGrid(set.Bounds(), clip, cellSize, set.CRS)
	if err != nil {
		return nil, err
	}
	bounds := make([]vector.BBox, len(set.Polygons))
	for i, p := range set.Polygons {
		bounds[i] = p.Bounds()
	}

	x0 := g.Transform.OriginX
	err = forRows(ctx, g.Height, collectOptions(opts).workers, func(row int) error {
		_, cy := g.CellCenter(0, row)
		var xs []float64
		base := row * g.Width
		for i, p := range set.Polygons {
			if cy < bounds[i].MinY || cy > bounds[i].MaxY {
				continue
			}
			xs = p.Crossings(cy, xs)
			for k := 0; k+1 < len(xs); k += 2 {
				from := max(int(math.Ceil((xs[k]-x0)/cellSize-0.5)), 0)
				to := min(int(math.Ceil((xs[k+1]-x0)/cellSize-0.5)), g.Width)
				for col := from; col < to; col++ {
					g.cells[base+col] = 1
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// RasterizeLines burns 1 into every cell whose centre lies within a line's
// buffer width of its centreline.
func RasterizeLines(ctx context.Context, set vector.LineSet, cellSize float64, clip *vector.BBox, opts ...RunOption) (*Grid, error) {
	g, err := rasterGrid(set.Bounds(), clip, cellSize, set.CRS)
	if err != nil {
		return nil, err
	}
	bounds := make([]vector.BBox, len(set.Lines))
	for i, l := range set.Lines {
		bounds[i] = l.Bounds()
	}

	err = forRows(ctx, g.Height, collectOptions(opts).workers, func(row int) error {
		_, cy := g.CellCenter(0, row)
		base := row * g.Width
		for i, l := range set.Lines {
			b := bounds[i]
			if cy < b.MinY || cy > b.MaxY {
				continue
			}
			c0, _, c1, _ := g.window(vector.BBox{MinX: b.MinX, MinY: cy, MaxX: b.MaxX, MaxY: cy})
			for col := c0; col < c1; col++ {
				if g.cells[base+col] == 1 {
					continue
				}
				cx, _ := g.CellCenter(col, row)
				if l.Covers(cx, cy) {
					g.cells[base+col] = 1
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
