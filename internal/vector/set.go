package vector

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
)

// PolygonSet is a layer of polygons sharing one CRS.
type PolygonSet struct {
	CRS      CRS
	Polygons []Polygon
}

// Len returns the number of polygons.
func (s PolygonSet) Len() int { return len(s.Polygons) }

// Bounds returns the envelope of every polygon.
func (s PolygonSet) Bounds() BBox {
	b := EmptyBBox()
	for _, p := range s.Polygons {
		b = b.Union(p.Bounds())
	}
	return b
}

// TotalArea sums polygon areas in native units.
func (s PolygonSet) TotalArea() float64 {
	var total float64
	for _, p := range s.Polygons {
		total += p.Area()
	}
	return total
}

// WithValue returns the subset whose attribute equals v.
func (s PolygonSet) WithValue(v int32) PolygonSet {
	out := PolygonSet{CRS: s.CRS}
	for _, p := range s.Polygons {
		if p.Value == v {
			out.Polygons = append(out.Polygons, p)
		}
	}
	return out
}

// Reproject returns the set in crs.
func (s PolygonSet) Reproject(crs CRS) (PolygonSet, error) {
	if s.CRS == crs || len(s.Polygons) == 0 {
		s.CRS = crs
		return s, nil
	}
	t, err := NewTransformer(s.CRS, crs)
	if err != nil {
		return PolygonSet{}, err
	}
	out := PolygonSet{CRS: crs, Polygons: make([]Polygon, 0, len(s.Polygons))}
	for _, p := range s.Polygons {
		tp, err := p.Transform(t, crs)
		if err != nil {
			return PolygonSet{}, err
		}
		out.Polygons = append(out.Polygons, tp)
	}
	return out, nil
}

// Largest returns the polygon with the greatest planar area and its index.
// Ties keep the first polygon encountered, so the lowest index wins.
func Largest(set PolygonSet) (Polygon, int, error) {
	if len(set.Polygons) == 0 {
		return Polygon{}, -1, eris.Wrap(geoerr.ErrEmptyCandidateSet, "vector: largest region")
	}
	best := 0
	bestArea := set.Polygons[0].Area()
	for i := 1; i < len(set.Polygons); i++ {
		if a := set.Polygons[i].Area(); a > bestArea {
			best, bestArea = i, a
		}
	}
	return set.Polygons[best], best, nil
}

// Reproject returns p in crs.
func Reproject(p Polygon, crs CRS) (Polygon, error) {
	if p.CRS == crs {
		return p, nil
	}
	t, err := NewTransformer(p.CRS, crs)
	if err != nil {
		return Polygon{}, err
	}
	return p.Transform(t, crs)
}
