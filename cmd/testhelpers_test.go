package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/store"
	"github.com/sells-group/openspace-cli/internal/vector"
)

const side = 40

// fakeLoader serves a 40x40 scene at 100 m whose built-up area is the block
// of cells 10..29 on both axes, with one park and one road inside it.
type fakeLoader struct {
	t       *testing.T
	impErr  error
	noBuilt bool
}

func (f *fakeLoader) grids() (lc, imp *raster.Grid) {
	cls := make([]int32, side*side)
	pct := make([]int32, side*side)
	for r := 0; r < side; r++ {
		for c := 0; c < side; c++ {
			i := r*side + c
			cls[i] = 20
			if r >= 10 && r < 30 && c >= 10 && c < 30 {
				cls[i] = int32(1 + (r+c)%3)
				if !f.noBuilt {
					pct[i] = 50
				}
			}
		}
	}
	tr := raster.NorthUp(0, 4000, 100)
	var err error
	lc, err = raster.New(side, side, tr, vector.LAEAEur, raster.DTypeClass, cls)
	require.NoError(f.t, err)
	imp, err = raster.New(side, side, tr, vector.LAEAEur, raster.DTypeByte, pct, raster.WithNoData(255))
	require.NoError(f.t, err)
	return lc, imp
}

func (f *fakeLoader) Imperviousness(_ context.Context, _ vector.Polygon) (*raster.Grid, error) {
	if f.impErr != nil {
		return nil, f.impErr
	}
	_, imp := f.grids()
	return imp, nil
}

func (f *fakeLoader) LandCover(_ context.Context, _ vector.Polygon) (*raster.Grid, error) {
	lc, _ := f.grids()
	return lc, nil
}

func (f *fakeLoader) OpenSpaces(_ context.Context, _ vector.Polygon) (vector.PolygonSet, error) {
	park, err := vector.NewPolygon(vector.LAEAEur, 1, []geom.Coord{{1800, 1800}, {2200, 1800}, {2200, 2200}, {1800, 2200}})
	require.NoError(f.t, err)
	return vector.PolygonSet{CRS: vector.LAEAEur, Polygons: []vector.Polygon{park}}, nil
}

func (f *fakeLoader) Roads(_ context.Context, _ vector.Polygon) (vector.LineSet, error) {
	road, err := vector.NewLine([]geom.Coord{{1500, 2000}, {2500, 2000}}, 5)
	require.NoError(f.t, err)
	return vector.LineSet{CRS: vector.LAEAEur, Lines: []vector.Line{road}}, nil
}

func testAOI(t *testing.T) vector.Polygon {
	t.Helper()
	aoi, err := vector.NewPolygon(vector.LAEAEur, 0, []geom.Coord{{0, 0}, {4000, 0}, {4000, 4000}, {0, 4000}})
	require.NoError(t, err)
	return aoi
}

func testOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.CellSize = 10
	opts.Workers = 3
	return opts
}

// wantIndex is the indicator of the fake scene: a 0.16 km2 park, a road of
// 101 cells at 10 m and 387 built-up cells at 100 m.
const wantIndex = (0.16 + 0.0101) / 3.87 * 100

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}
