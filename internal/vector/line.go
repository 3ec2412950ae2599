package vector

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Line is a centreline with a buffer distance; points within Width of the
// line belong to its footprint.
type Line struct {
	Geom  *geom.LineString
	Width float64
}

// NewLine builds a line from at least two vertices.
func NewLine(coords []geom.Coord, width float64) (Line, error) {
	if len(coords) < 2 {
		return Line{}, eris.Errorf("vector: line has %d vertices", len(coords))
	}
	if width < 0 {
		return Line{}, eris.Errorf("vector: negative line width %f", width)
	}
	ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return Line{}, eris.Wrap(err, "vector: set line coords")
	}
	return Line{Geom: ls, Width: width}, nil
}

// Bounds returns the envelope of the buffered footprint.
func (l Line) Bounds() BBox {
	if l.Geom == nil || l.Geom.Empty() {
		return EmptyBBox()
	}
	b := l.Geom.Bounds()
	return BBox{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}.Buffer(l.Width)
}

// Distance returns the shortest planar distance from (x, y) to the centreline.
func (l Line) Distance(x, y float64) float64 {
	flat := l.Geom.FlatCoords()
	best := math.Inf(1)
	for i := 0; i+3 < len(flat); i += 2 {
		d := segmentDistance(x, y, flat[i], flat[i+1], flat[i+2], flat[i+3])
		if d < best {
			best = d
		}
	}
	return best
}

// Covers reports whether (x, y) lies in the buffered footprint.
func (l Line) Covers(x, y float64) bool {
	return l.Distance(x, y) <= l.Width
}

// Transform reprojects every vertex.
func (l Line) Transform(t Transformer) (Line, error) {
	coords := l.Geom.Coords()
	for i, c := range coords {
		x, y, err := t(c[0], c[1])
		if err != nil {
			return Line{}, eris.Wrap(err, "vector: transform line")
		}
		coords[i] = geom.Coord{x, y}
	}
	return NewLine(coords, l.Width)
}

func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// LineSet is a layer of buffered lines in one CRS.
type LineSet struct {
	CRS   CRS
	Lines []Line
}

// Bounds returns the envelope of all buffered footprints.
func (s LineSet) Bounds() BBox {
	b := EmptyBBox()
	for _, l := range s.Lines {
		b = b.Union(l.Bounds())
	}
	return b
}

// Reproject returns the set in crs.
func (s LineSet) Reproject(crs CRS) (LineSet, error) {
	if s.CRS == crs || len(s.Lines) == 0 {
		s.CRS = crs
		return s, nil
	}
	t, err := NewTransformer(s.CRS, crs)
	if err != nil {
		return LineSet{}, err
	}
	out := LineSet{CRS: crs, Lines: make([]Line, 0, len(s.Lines))}
	for _, l := range s.Lines {
		tl, err := l.Transform(t)
		if err != nil {
			return LineSet{}, err
		}
		out.Lines = append(out.Lines, tl)
	}
	return out, nil
}
