package vector

import "math"

// BBox is an axis-aligned envelope in world coordinates.
type BBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// EmptyBBox returns an envelope that any Extend call replaces.
func EmptyBBox() BBox {
	return BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// IsEmpty reports whether the envelope has no area or was never extended.
func (b BBox) IsEmpty() bool {
	return !(b.MaxX > b.MinX) || !(b.MaxY > b.MinY)
}

// Extend grows the envelope to include (x, y).
func (b BBox) Extend(x, y float64) BBox {
	return BBox{
		MinX: math.Min(b.MinX, x),
		MinY: math.Min(b.MinY, y),
		MaxX: math.Max(b.MaxX, x),
		MaxY: math.Max(b.MaxY, y),
	}
}

// Union returns the envelope covering both b and o.
func (b BBox) Union(o BBox) BBox {
	return b.Extend(o.MinX, o.MinY).Extend(o.MaxX, o.MaxY)
}

// Intersection returns the overlap of b and o; the result may be empty.
func (b BBox) Intersection(o BBox) BBox {
	return BBox{
		MinX: math.Max(b.MinX, o.MinX),
		MinY: math.Max(b.MinY, o.MinY),
		MaxX: math.Min(b.MaxX, o.MaxX),
		MaxY: math.Min(b.MaxY, o.MaxY),
	}
}

// Intersects reports whether the two envelopes share a region of positive area.
func (b BBox) Intersects(o BBox) bool {
	return !b.Intersection(o).IsEmpty()
}

// Buffer expands the envelope by d on every side.
func (b BBox) Buffer(d float64) BBox {
	return BBox{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Width returns the x extent.
func (b BBox) Width() float64 { return b.MaxX - b.MinX }

// Height returns the y extent.
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

// Transform reprojects the envelope by transforming a densified outline and
// taking the bounds of the result.
func (b BBox) Transform(t Transformer) (BBox, error) {
	const steps = 16
	out := EmptyBBox()
	for i := 0; i <= steps; i++ {
		f := float64(i) / steps
		x := b.MinX + f*b.Width()
		y := b.MinY + f*b.Height()
		for _, p := range [][2]float64{{x, b.MinY}, {x, b.MaxY}, {b.MinX, y}, {b.MaxX, y}} {
			tx, ty, err := t(p[0], p[1])
			if err != nil {
				return BBox{}, err
			}
			out = out.Extend(tx, ty)
		}
	}
	return out, nil
}
