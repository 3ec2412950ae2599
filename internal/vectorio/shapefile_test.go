package vectorio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/openspace-cli/internal/vector"
)

func squareWithHole(t *testing.T) vector.Polygon {
	t.Helper()
	p, err := vector.NewPolygon(vector.LAEAEur, 1,
		[]geom.Coord{{0, 0}, {100, 0}, {100, 100}, {0, 100}},
		[]geom.Coord{{40, 40}, {40, 60}, {60, 60}, {60, 40}},
	)
	require.NoError(t, err)
	return p.Oriented()
}

func TestShapefile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "6-polygonized.shp")
	other, err := vector.NewPolygon(vector.LAEAEur, 1, []geom.Coord{{200, 0}, {210, 0}, {210, 10}, {200, 10}})
	require.NoError(t, err)
	set := vector.PolygonSet{CRS: vector.LAEAEur, Polygons: []vector.Polygon{squareWithHole(t), other}}

	require.NoError(t, WriteShapefile(path, set))
	cpg, err := os.ReadFile(filepath.Join(filepath.Dir(path), "6-polygonized.cpg"))
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", string(cpg))

	features, err := ReadShapefile(path, vector.LAEAEur)
	require.NoError(t, err)
	require.Len(t, features, 2)

	first := features[0]
	require.Len(t, first.Polygons, 1)
	assert.InDelta(t, 9600.0, first.Polygons[0].Area(), 1e-9)
	assert.Len(t, first.Polygons[0].Rings(), 2)
	assert.Equal(t, "1", first.Attrs["dn"])
	assert.InDelta(t, 100.0, features[1].Polygons[0].Area(), 1e-9)
}

func TestToShape_ClockwiseShell(t *testing.T) {
	s := toShape(squareWithHole(t))
	require.Equal(t, int32(2), s.NumParts)
	shell := make([]geom.Coord, 0, 5)
	for _, pt := range s.Points[:s.Parts[1]] {
		shell = append(shell, geom.Coord{pt.X, pt.Y})
	}
	assert.Less(t, vector.SignedArea(shell), 0.0)
	assert.Equal(t, shp.Box{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}, s.Box)
}

func TestReadShapefile_Codepage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aoi.shp")

	enc, err := htmlindex.Get("windows-1253")
	require.NoError(t, err)
	name, err := enc.NewEncoder().String("Θεσσαλονίκη")
	require.NoError(t, err)

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 50)}))
	p, err := vector.NewPolygon(vector.WGS84, 0, []geom.Coord{{22.9, 40.6}, {23.0, 40.6}, {23.0, 40.7}, {22.9, 40.7}})
	require.NoError(t, err)
	row := w.Write(toShape(p))
	require.NoError(t, w.WriteAttribute(int(row), 0, name))
	w.Close()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aoi.cpg"), []byte("windows-1253\n"), 0o644))

	aoi, aoiName, err := ReadAOI(path, vector.WGS84, "NAME")
	require.NoError(t, err)
	assert.Equal(t, "Θεσσαλονίκη", aoiName)
	assert.Equal(t, vector.WGS84, aoi.CRS)
	assert.InDelta(t, 0.01, aoi.Area(), 1e-9)
}

func TestReadAOI_Errors(t *testing.T) {
	_, _, err := ReadAOI(filepath.Join(t.TempDir(), "aoi.kml"), vector.WGS84, "name")
	assert.Error(t, err)

	_, err = ReadShapefile(filepath.Join(t.TempDir(), "missing.shp"), vector.WGS84)
	assert.Error(t, err)
}
