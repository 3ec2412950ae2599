package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/vector"
)

var maskOne = PolygonizeOptions{MaskValue: 1, UseMask: true}

func binaryFromOnes(t *testing.T, w, h int, pixel float64, ones [][2]int) *Grid {
	t.Helper()
	cells := make([]int32, w*h)
	for _, p := range ones {
		cells[p[1]*w+p[0]] = 1
	}
	return mustGrid(t, w, h, pixel, DTypeBinary, cells)
}

func TestPolygonize_FullForeground(t *testing.T) {
	set, err := Polygonize(onesGrid(t, 100, 100, 10), maskOne)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	p := set.Polygons[0]
	assert.Equal(t, int32(1), p.Value)
	assert.InEpsilon(t, 1_000_000.0, p.Area(), 0.01)
	rings := p.Rings()
	require.Len(t, rings, 1)
	assert.Len(t, rings[0], 5, "straight runs collapse to four corners")
	assert.Greater(t, vector.SignedArea(rings[0]), 0.0)
	assert.Equal(t, vector.BBox{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 1000}, p.Bounds())
}

func TestPolygonize_Hole(t *testing.T) {
	cells := make([]int32, 25)
	for i := range cells {
		cells[i] = 1
	}
	cells[12] = 0
	g := mustGrid(t, 5, 5, 10, DTypeBinary, cells)

	set, err := Polygonize(g, maskOne)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	p := set.Polygons[0]
	assert.InDelta(t, 2400.0, p.Area(), 1e-6)
	rings := p.Rings()
	require.Len(t, rings, 2)
	assert.Greater(t, vector.SignedArea(rings[0]), 0.0)
	assert.Less(t, vector.SignedArea(rings[1]), 0.0)
	assert.False(t, p.Contains(25, 25))
	assert.True(t, p.Contains(5, 5))

	all, err := Polygonize(g, PolygonizeOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, all.Len())
	assert.Equal(t, int32(1), all.Polygons[0].Value)
	assert.Equal(t, int32(0), all.Polygons[1].Value)
	assert.InDelta(t, 100.0, all.Polygons[1].Area(), 1e-6)
	assert.InDelta(t, 2500.0, all.TotalArea(), 1e-6)
}

func TestPolygonize_Connectivity(t *testing.T) {
	g := binaryFromOnes(t, 2, 2, 10, [][2]int{{0, 0}, {1, 1}})

	four, err := Polygonize(g, maskOne)
	require.NoError(t, err)
	assert.Equal(t, 2, four.Len())
	for _, p := range four.Polygons {
		assert.InDelta(t, 100.0, p.Area(), 1e-9)
	}

	eight, err := Polygonize(g, PolygonizeOptions{MaskValue: 1, UseMask: true, Connectivity: 8})
	require.NoError(t, err)
	require.Equal(t, 1, eight.Len())
	assert.InDelta(t, 200.0, eight.Polygons[0].Area(), 1e-9)
}

func TestPolygonize_PinchedLoop(t *testing.T) {
	// A loop closed only through a corner contact at (2, 2).
	ones := [][2]int{{1, 1}, {2, 2}, {0, 1}, {0, 2}, {0, 3}, {1, 3}, {2, 3}}
	g := binaryFromOnes(t, 4, 5, 10, ones)

	four, err := Polygonize(g, maskOne)
	require.NoError(t, err)
	require.Equal(t, 1, four.Len())
	assert.Len(t, four.Polygons[0].Rings(), 1)
	assert.InDelta(t, 700.0, four.Polygons[0].Area(), 1e-9)

	eight, err := Polygonize(g, PolygonizeOptions{MaskValue: 1, UseMask: true, Connectivity: 8})
	require.NoError(t, err)
	require.Equal(t, 1, eight.Len())
	assert.Len(t, eight.Polygons[0].Rings(), 2, "enclosed cell becomes a hole")
	assert.InDelta(t, 700.0, eight.Polygons[0].Area(), 1e-9)
}

func TestPolygonize_SingleCellWorldCoordinates(t *testing.T) {
	g, err := New(3, 3, NorthUp(100, 200, 10), vector.LAEAEur, DTypeBinary, []int32{
		1, 0, 0,
		0, 0, 0,
		0, 0, 0,
	})
	require.NoError(t, err)

	set, err := Polygonize(g, maskOne)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.Equal(t, vector.BBox{MinX: 100, MinY: 190, MaxX: 110, MaxY: 200}, set.Polygons[0].Bounds())
	assert.Equal(t, vector.LAEAEur, set.CRS)
}

func TestPolygonize_SkipsNoData(t *testing.T) {
	g := mustGrid(t, 3, 1, 10, DTypeClass, []int32{-1, 5, -1}, WithNoData(-1))
	set, err := Polygonize(g, PolygonizeOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	assert.Equal(t, int32(5), set.Polygons[0].Value)
}

func TestPolygonize_Errors(t *testing.T) {
	empty := mustGrid(t, 3, 3, 10, DTypeBinary, make([]int32, 9))
	_, err := Polygonize(empty, maskOne)
	assert.ErrorIs(t, err, geoerr.ErrNoRegionsFound)

	_, err = Polygonize(empty, PolygonizeOptions{Connectivity: 6})
	assert.Error(t, err)
}

func TestPolygonize_RegionsDoNotOverlap(t *testing.T) {
	cells := []int32{
		1, 1, 0, 2,
		0, 1, 2, 2,
		3, 0, 0, 1,
	}
	g := mustGrid(t, 4, 3, 10, DTypeClass, cells)
	set, err := Polygonize(g, PolygonizeOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 1200.0, set.TotalArea(), 1e-9)

	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			x, y := g.CellCenter(col, row)
			hits := 0
			for _, p := range set.Polygons {
				if p.Contains(x, y) {
					hits++
					assert.Equal(t, g.At(col, row), p.Value)
				}
			}
			assert.Equal(t, 1, hits, "cell %d,%d", col, row)
		}
	}
}
