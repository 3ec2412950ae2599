// Package vector holds the polygon and line types exchanged between pipeline
// stages, plus the coordinate reference handling they need.
package vector

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Polygon is one region with its source raster value. Rings are world
// coordinates; the first ring is the shell, any further rings are holes.
type Polygon struct {
	Geom  *geom.Polygon
	Value int32
	CRS   CRS
}

// NewPolygon builds a polygon from rings. Open rings are closed.
func NewPolygon(crs CRS, value int32, rings ...[]geom.Coord) (Polygon, error) {
	if len(rings) == 0 {
		return Polygon{}, eris.New("vector: polygon needs a shell ring")
	}
	closed := make([][]geom.Coord, 0, len(rings))
	for i, ring := range rings {
		r := closeRing(ring)
		if len(r) < 4 {
			return Polygon{}, eris.Errorf("vector: ring %d has %d vertices", i, len(r))
		}
		closed = append(closed, r)
	}
	g, err := geom.NewPolygon(geom.XY).SetCoords(closed)
	if err != nil {
		return Polygon{}, eris.Wrap(err, "vector: set polygon coords")
	}
	return Polygon{Geom: g, Value: value, CRS: crs}, nil
}

func closeRing(ring []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, 0, len(ring)+1)
	for _, c := range ring {
		out = append(out, geom.Coord{c[0], c[1]})
	}
	if n := len(out); n > 0 && (out[0][0] != out[n-1][0] || out[0][1] != out[n-1][1]) {
		out = append(out, geom.Coord{out[0][0], out[0][1]})
	}
	return out
}

// Area returns the planar area in native CRS units, holes subtracted. Ring
// orientation does not matter.
func (p Polygon) Area() float64 {
	if p.Geom == nil {
		return 0
	}
	var area float64
	for i, ring := range p.Geom.Coords() {
		a := math.Abs(SignedArea(ring))
		if i == 0 {
			area += a
		} else {
			area -= a
		}
	}
	return area
}

// Bounds returns the polygon envelope.
func (p Polygon) Bounds() BBox {
	if p.Geom == nil || p.Geom.Empty() {
		return EmptyBBox()
	}
	b := p.Geom.Bounds()
	return BBox{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
}

// Rings returns a copy of the ring coordinates.
func (p Polygon) Rings() [][]geom.Coord {
	if p.Geom == nil {
		return nil
	}
	return p.Geom.Coords()
}

// Contains reports whether (x, y) is inside the polygon using the even-odd
// rule over all rings, so points inside holes are outside.
func (p Polygon) Contains(x, y float64) bool {
	if p.Geom == nil {
		return false
	}
	flat := p.Geom.FlatCoords()
	inside := false
	start := 0
	for _, end := range p.Geom.Ends() {
		for i, j := start, end-2; i < end; j, i = i, i+2 {
			xi, yi := flat[i], flat[i+1]
			xj, yj := flat[j], flat[j+1]
			if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
				inside = !inside
			}
		}
		start = end
	}
	return inside
}

// Crossings appends to buf the sorted x positions where the horizontal line
// at y crosses the polygon boundary. Pairs of consecutive crossings bound the
// inside spans under the even-odd rule.
func (p Polygon) Crossings(y float64, buf []float64) []float64 {
	buf = buf[:0]
	if p.Geom == nil {
		return buf
	}
	flat := p.Geom.FlatCoords()
	start := 0
	for _, end := range p.Geom.Ends() {
		for i := start; i+3 < end; i += 2 {
			x1, y1 := flat[i], flat[i+1]
			x2, y2 := flat[i+2], flat[i+3]
			if (y1 <= y && y < y2) || (y2 <= y && y < y1) {
				buf = append(buf, x1+(y-y1)*(x2-x1)/(y2-y1))
			}
		}
		start = end
	}
	sort.Float64s(buf)
	return buf
}

// Transform reprojects every vertex and tags the result with crs.
func (p Polygon) Transform(t Transformer, crs CRS) (Polygon, error) {
	rings := p.Rings()
	for _, ring := range rings {
		for i, c := range ring {
			x, y, err := t(c[0], c[1])
			if err != nil {
				return Polygon{}, eris.Wrap(err, "vector: transform polygon")
			}
			ring[i] = geom.Coord{x, y}
		}
	}
	out, err := NewPolygon(crs, p.Value, rings...)
	if err != nil {
		return Polygon{}, err
	}
	return out.Oriented(), nil
}

// Oriented returns a copy with a counter-clockwise shell and clockwise holes.
func (p Polygon) Oriented() Polygon {
	rings := p.Rings()
	for i, ring := range rings {
		ccw := SignedArea(ring) > 0
		if (i == 0) != ccw {
			reverse(ring)
		}
	}
	g, err := geom.NewPolygon(geom.XY).SetCoords(rings)
	if err != nil {
		return p
	}
	return Polygon{Geom: g, Value: p.Value, CRS: p.CRS}
}

// SignedArea returns the shoelace area of a closed ring; positive when
// counter-clockwise in a y-up frame.
func SignedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}

func reverse(ring []geom.Coord) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}
