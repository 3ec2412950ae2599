package raster

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// PolygonizeOptions controls which cells become polygons.
type PolygonizeOptions struct {
	// MaskValue selects the cells to trace when UseMask is set.
	MaskValue int32
	UseMask   bool
	// Connectivity is 4 (edge neighbours) or 8 (edge and corner neighbours).
	// Zero means 4.
	Connectivity int
}

// Edge directions in cell index space, rows growing downward.
const (
	dirEast = iota
	dirSouth
	dirWest
	dirNorth
)

const usedShift = 4

// Polygonize traces every connected run of equal-valued cells into a polygon
// tagged with that value. Vertices sit on cell corners mapped through the
// grid transform. Shells are counter-clockwise and holes clockwise in world
// coordinates, and vertices on straight runs are dropped.
func Polygonize(g *Grid, opts PolygonizeOptions) (vector.PolygonSet, error) {
	conn := opts.Connectivity
	if conn == 0 {
		conn = 4
	}
	if conn != 4 && conn != 8 {
		return vector.PolygonSet{}, eris.Errorf("raster: polygonize connectivity %d", conn)
	}

	valid := func(v int32) bool {
		if opts.UseMask {
			return v == opts.MaskValue
		}
		return !g.IsNoData(v)
	}
	labels, values := labelComponents(g, conn, valid)
	if len(values) == 0 {
		return vector.PolygonSet{}, eris.Wrap(geoerr.ErrNoRegionsFound, "raster: polygonize")
	}

	tr := &tracer{w: g.Width, h: g.Height, labels: labels, join: conn == 8}
	tr.buildEdges()
	rings := tr.traceAll()

	shells := make([][]geom.Coord, len(values))
	holes := make([][][]geom.Coord, len(values))
	for _, r := range rings {
		world := make([]geom.Coord, len(r.corners))
		for i, v := range r.corners {
			x, y := g.Transform.Apply(float64(v[0]), float64(v[1]))
			world[i] = geom.Coord{x, y}
		}
		idx := r.label - 1
		if r.area < 0 {
			if shells[idx] != nil {
				return vector.PolygonSet{}, eris.Errorf("raster: polygonize: region %d has several outer rings", r.label)
			}
			shells[idx] = world
			continue
		}
		holes[idx] = append(holes[idx], world)
	}

	set := vector.PolygonSet{CRS: g.CRS, Polygons: make([]vector.Polygon, 0, len(values))}
	for i, shell := range shells {
		if shell == nil {
			return vector.PolygonSet{}, eris.Errorf("raster: polygonize: region %d has no outer ring", i+1)
		}
		p, err := vector.NewPolygon(g.CRS, values[i], append([][]geom.Coord{shell}, holes[i]...)...)
		if err != nil {
			return vector.PolygonSet{}, eris.Wrapf(err, "raster: polygonize region %d", i+1)
		}
		set.Polygons = append(set.Polygons, p.Oriented())
	}
	return set, nil
}

// labelComponents assigns 1-based component labels in row-major order of each
// component's first cell. values[label-1] is the component's cell value.
func labelComponents(g *Grid, conn int, valid func(int32) bool) ([]int32, []int32) {
	w, h := g.Width, g.Height
	labels := make([]int32, w*h)
	var values []int32
	var stack []int

	offsets := [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	if conn == 8 {
		offsets = append(offsets, [2]int{1, 1}, [2]int{1, -1}, [2]int{-1, 1}, [2]int{-1, -1})
	}

	for start, v := range g.cells {
		if labels[start] != 0 || !valid(v) {
			continue
		}
		values = append(values, v)
		label := int32(len(values))
		labels[start] = label
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c, r := i%w, i/w
			for _, o := range offsets {
				nc, nr := c+o[0], r+o[1]
				if nc < 0 || nr < 0 || nc >= w || nr >= h {
					continue
				}
				j := nr*w + nc
				if labels[j] == 0 && g.cells[j] == v && valid(g.cells[j]) {
					labels[j] = label
					stack = append(stack, j)
				}
			}
		}
	}
	return labels, values
}

// tracer walks the directed boundary edges between labelled cells. An edge
// is keyed by its start corner and direction and keeps its cell on the left.
type tracer struct {
	w, h   int
	labels []int32
	join   bool
	// flags holds, per corner, a present bit per direction in the low nibble
	// and a visited bit per direction in the high nibble.
	flags []uint8
}

type ring struct {
	label   int32
	corners [][2]int
	area    int
}

func (t *tracer) label(c, r int) int32 {
	if c < 0 || r < 0 || c >= t.w || r >= t.h {
		return 0
	}
	return t.labels[r*t.w+c]
}

func (t *tracer) vertex(c, r int) int { return r*(t.w+1) + c }

func (t *tracer) buildEdges() {
	t.flags = make([]uint8, (t.w+1)*(t.h+1))
	for r := 0; r < t.h; r++ {
		for c := 0; c < t.w; c++ {
			l := t.labels[r*t.w+c]
			if l == 0 {
				continue
			}
			if t.label(c, r-1) != l {
				t.flags[t.vertex(c+1, r)] |= 1 << dirWest
			}
			if t.label(c-1, r) != l {
				t.flags[t.vertex(c, r)] |= 1 << dirSouth
			}
			if t.label(c, r+1) != l {
				t.flags[t.vertex(c, r+1)] |= 1 << dirEast
			}
			if t.label(c+1, r) != l {
				t.flags[t.vertex(c+1, r+1)] |= 1 << dirNorth
			}
		}
	}
}

// owner returns the label of the cell an edge belongs to.
func (t *tracer) owner(c, r, dir int) int32 {
	switch dir {
	case dirEast:
		return t.label(c, r-1)
	case dirSouth:
		return t.label(c, r)
	case dirWest:
		return t.label(c-1, r)
	default:
		return t.label(c-1, r-1)
	}
}

func step(c, r, dir int) (int, int) {
	switch dir {
	case dirEast:
		return c + 1, r
	case dirSouth:
		return c, r + 1
	case dirWest:
		return c - 1, r
	default:
		return c, r - 1
	}
}

// next picks the outgoing edge at (c, r) continuing a ring of label that
// arrived heading dir. At corners where two cells of the ring touch only
// diagonally both turns are available: joining takes the right turn to cross
// to the other cell, otherwise the left turn stays with the current cell.
func (t *tracer) next(c, r, dir int, label int32) (int, bool) {
	left, right := (dir+3)%4, (dir+1)%4
	order := [3]int{left, dir, right}
	if t.join {
		order = [3]int{right, dir, left}
	}
	f := t.flags[t.vertex(c, r)]
	for _, d := range order {
		if f&(1<<d) != 0 && t.owner(c, r, d) == label {
			return d, true
		}
	}
	return 0, false
}

func (t *tracer) traceAll() []ring {
	var rings []ring
	for r := 0; r <= t.h; r++ {
		for c := 0; c <= t.w; c++ {
			for d := 0; d < 4; d++ {
				f := t.flags[t.vertex(c, r)]
				if f&(1<<d) == 0 || f&(1<<(d+usedShift)) != 0 {
					continue
				}
				rings = append(rings, t.trace(c, r, d))
			}
		}
	}
	return rings
}

func (t *tracer) trace(c0, r0, d0 int) ring {
	label := t.owner(c0, r0, d0)
	type visit struct{ c, r, dir int }
	var path []visit

	c, r, d := c0, r0, d0
	for {
		t.flags[t.vertex(c, r)] |= 1 << (d + usedShift)
		path = append(path, visit{c, r, d})
		c, r = step(c, r, d)
		nd, ok := t.next(c, r, d, label)
		if !ok || (c == c0 && r == r0 && nd == d0) {
			break
		}
		d = nd
	}

	out := ring{label: label}
	for i, v := range path {
		prev := path[(i+len(path)-1)%len(path)]
		if prev.dir != v.dir {
			out.corners = append(out.corners, [2]int{v.c, v.r})
		}
	}
	n := len(out.corners)
	for i, p := range out.corners {
		q := out.corners[(i+1)%n]
		out.area += p[0]*q[1] - q[0]*p[1]
	}
	return out
}
