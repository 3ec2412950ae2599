// Package raster implements the single-band grid model and the raster stages
// of the urban cluster workflow: reclassification, alignment, masking,
// density convolution, cluster separation, polygonization, clipping and
// rasterization of vector layers.
//
// Grids are immutable. Every operation returns a new grid and never touches
// its inputs, so grids may be shared freely between goroutines.
package raster

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// DType describes what the integer cells of a grid mean.
type DType int

const (
	// DTypeClass holds categorical land-use codes.
	DTypeClass DType = iota
	// DTypeBinary holds 0/1 masks.
	DTypeBinary
	// DTypeCount holds neighbourhood sums.
	DTypeCount
	// DTypeByte holds 0..255 values such as imperviousness percentages.
	DTypeByte
)

func (d DType) String() string {
	switch d {
	case DTypeClass:
		return "class"
	case DTypeBinary:
		return "binary"
	case DTypeCount:
		return "count"
	case DTypeByte:
		return "byte"
	}
	return "unknown"
}

// DefaultNoData is used for clipped cells when the source declares no nodata.
const DefaultNoData int32 = -9999

// Transform is a GDAL-ordered affine geotransform. World coordinates of the
// top-left corner of cell (col, row) are
//
//	x = OriginX + col*PixelWidth + row*RotX
//	y = OriginY + col*RotY + row*PixelHeight
type Transform struct {
	OriginX     float64 `json:"origin_x"`
	PixelWidth  float64 `json:"pixel_width"`
	RotX        float64 `json:"rot_x"`
	OriginY     float64 `json:"origin_y"`
	RotY        float64 `json:"rot_y"`
	PixelHeight float64 `json:"pixel_height"`
}

// NorthUp returns an unrotated transform with a top-left origin.
func NorthUp(originX, originY, pixelSize float64) Transform {
	return Transform{OriginX: originX, PixelWidth: pixelSize, OriginY: originY, PixelHeight: -pixelSize}
}

// Apply maps a fractional cell position to world coordinates.
func (t Transform) Apply(col, row float64) (float64, float64) {
	return t.OriginX + col*t.PixelWidth + row*t.RotX,
		t.OriginY + col*t.RotY + row*t.PixelHeight
}

// Invert maps world coordinates to a fractional cell position.
func (t Transform) Invert(x, y float64) (float64, float64) {
	dx, dy := x-t.OriginX, y-t.OriginY
	if t.RotX == 0 && t.RotY == 0 {
		return dx / t.PixelWidth, dy / t.PixelHeight
	}
	det := t.PixelWidth*t.PixelHeight - t.RotX*t.RotY
	return (dx*t.PixelHeight - dy*t.RotX) / det, (dy*t.PixelWidth - dx*t.RotY) / det
}

// Rotated reports whether the transform carries rotation terms.
func (t Transform) Rotated() bool {
	return t.RotX != 0 || t.RotY != 0
}

// Grid is a single-band raster of int32 cells stored row-major.
type Grid struct {
	Width     int
	Height    int
	Transform Transform
	CRS       vector.CRS
	NoData    int32
	HasNoData bool
	DType     DType

	cells   []int32
	southUp bool
}

// Option customizes a grid at construction.
type Option func(*Grid)

// WithNoData declares a nodata value.
func WithNoData(v int32) Option {
	return func(g *Grid) {
		g.NoData = v
		g.HasNoData = true
	}
}

// AllowSouthUp accepts a positive PixelHeight, i.e. a bottom-left origin.
func AllowSouthUp() Option {
	return func(g *Grid) { g.southUp = true }
}

// New builds a grid around cells, which are copied.
func New(width, height int, tr Transform, crs vector.CRS, dtype DType, cells []int32, opts ...Option) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, eris.Errorf("raster: invalid dimensions %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, eris.Errorf("raster: %d cells for %dx%d grid", len(cells), width, height)
	}
	if tr.PixelWidth == 0 || tr.PixelHeight == 0 {
		return nil, eris.New("raster: zero pixel size")
	}
	g := &Grid{
		Width:     width,
		Height:    height,
		Transform: tr,
		CRS:       crs,
		DType:     dtype,
		cells:     append([]int32(nil), cells...),
	}
	for _, o := range opts {
		o(g)
	}
	if tr.PixelHeight > 0 && !g.southUp {
		return nil, eris.Errorf("raster: positive pixel height %g on a north-up grid", tr.PixelHeight)
	}
	return g, nil
}

// Filled builds a grid with every cell set to v.
func Filled(width, height int, tr Transform, crs vector.CRS, dtype DType, v int32, opts ...Option) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, eris.Errorf("raster: invalid dimensions %dx%d", width, height)
	}
	cells := make([]int32, width*height)
	if v != 0 {
		for i := range cells {
			cells[i] = v
		}
	}
	return New(width, height, tr, crs, dtype, cells, opts...)
}

// derive wraps freshly computed cells with g's georeferencing. cells is
// adopted without copying.
func (g *Grid) derive(dtype DType, cells []int32) *Grid {
	return &Grid{
		Width:     g.Width,
		Height:    g.Height,
		Transform: g.Transform,
		CRS:       g.CRS,
		DType:     dtype,
		cells:     cells,
		southUp:   g.southUp,
	}
}

// At returns the cell at (col, row). It panics when out of range.
func (g *Grid) At(col, row int) int32 {
	return g.cells[row*g.Width+col]
}

// Cells returns a copy of the row-major cell values.
func (g *Grid) Cells() []int32 {
	return append([]int32(nil), g.cells...)
}

// IsNoData reports whether v is the grid's nodata value.
func (g *Grid) IsNoData(v int32) bool {
	return g.HasNoData && v == g.NoData
}

// Count returns how many cells equal v.
func (g *Grid) Count(v int32) int {
	n := 0
	for _, c := range g.cells {
		if c == v {
			n++
		}
	}
	return n
}

// MinMax returns the smallest and largest non-nodata values. ok is false when
// every cell is nodata.
func (g *Grid) MinMax() (lo, hi int32, ok bool) {
	lo, hi = math.MaxInt32, math.MinInt32
	for _, c := range g.cells {
		if g.IsNoData(c) {
			continue
		}
		ok = true
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	return lo, hi, ok
}

// IsBinary reports whether every non-nodata cell is 0 or 1.
func (g *Grid) IsBinary() bool {
	for _, c := range g.cells {
		if c != 0 && c != 1 && !g.IsNoData(c) {
			return false
		}
	}
	return true
}

// PixelArea returns the area of one cell in squared CRS units.
func (g *Grid) PixelArea() float64 {
	t := g.Transform
	return math.Abs(t.PixelWidth*t.PixelHeight - t.RotX*t.RotY)
}

// Bounds returns the world envelope of the grid.
func (g *Grid) Bounds() vector.BBox {
	b := vector.EmptyBBox()
	for _, c := range [][2]float64{{0, 0}, {float64(g.Width), 0}, {0, float64(g.Height)}, {float64(g.Width), float64(g.Height)}} {
		x, y := g.Transform.Apply(c[0], c[1])
		b = b.Extend(x, y)
	}
	return b
}

// CellCenter returns the world coordinates of the centre of (col, row).
func (g *Grid) CellCenter(col, row int) (float64, float64) {
	return g.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
}

// WorldToCell returns the cell containing (x, y). ok is false outside the grid.
func (g *Grid) WorldToCell(x, y float64) (col, row int, ok bool) {
	fc, fr := g.Transform.Invert(x, y)
	col, row = int(math.Floor(fc)), int(math.Floor(fr))
	return col, row, col >= 0 && row >= 0 && col < g.Width && row < g.Height
}

// SameGrid reports whether o shares dimensions, transform and CRS with g.
func (g *Grid) SameGrid(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height && g.Transform == o.Transform && g.CRS == o.CRS
}

func requireSameGrid(op string, a, b *Grid) error {
	if a.CRS != b.CRS {
		return eris.Wrapf(geoerr.ErrCRSMismatch, "raster: %s: %s vs %s", op, a.CRS, b.CRS)
	}
	if !a.SameGrid(b) {
		return eris.Wrapf(geoerr.ErrGridMismatch, "raster: %s: %dx%d vs %dx%d", op, a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}
