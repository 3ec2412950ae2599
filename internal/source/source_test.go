package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"golang.org/x/image/tiff"

	"github.com/sells-group/openspace-cli/internal/fetcher"
	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/rasterio"
	"github.com/sells-group/openspace-cli/internal/vector"
	"github.com/sells-group/openspace-cli/pkg/arcgis"
	"github.com/sells-group/openspace-cli/pkg/overpass"
)

type fakeExporter struct {
	got   []arcgis.ExportRequest
	value uint8
}

func (f *fakeExporter) ExportImage(_ context.Context, req arcgis.ExportRequest) ([]byte, error) {
	f.got = append(f.got, req)
	w, h := req.Size()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = f.value
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type fakeOverpass struct {
	resp *overpass.Response
	box  overpass.BBox
}

func (f *fakeOverpass) Fetch(_ context.Context, _ overpass.Query, box overpass.BBox) (*overpass.Response, error) {
	f.box = box
	return f.resp, nil
}

func rect(t *testing.T, crs vector.CRS, x0, y0, x1, y1 float64) vector.Polygon {
	t.Helper()
	p, err := vector.NewPolygon(crs, 1, []geom.Coord{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}})
	require.NoError(t, err)
	return p
}

func TestImperviousness_ArcGIS(t *testing.T) {
	exp := &fakeExporter{value: 42}
	l := New(Options{
		ArcGIS: exp,
		Imperviousness: RasterSource{
			Kind: KindArcGIS, Service: "HRL/IMD/ImageServer", CRS: vector.LAEAEur, PixelSize: 10,
		},
	})

	g, err := l.Imperviousness(context.Background(), rect(t, vector.LAEAEur, 1005, 2003, 1095, 2047))
	require.NoError(t, err)

	require.Len(t, exp.got, 1)
	req := exp.got[0]
	assert.Equal(t, arcgis.BBox{XMin: 1000, YMin: 2000, XMax: 1100, YMax: 2050}, req.BBox)
	assert.Equal(t, 3035, req.BBoxSR)
	assert.Equal(t, 3035, req.ImageSR)
	assert.Equal(t, arcgis.Bilinear, req.Interpolation)

	assert.Equal(t, 10, g.Width)
	assert.Equal(t, 5, g.Height)
	assert.Equal(t, raster.NorthUp(1000, 2050, 10), g.Transform)
	assert.True(t, g.IsNoData(ImperviousNoData))
	assert.Equal(t, 50, g.Count(42))
}

func writeClassGrid(t *testing.T, dir string) string {
	t.Helper()
	cells := make([]int32, 100)
	for i := range cells {
		cells[i] = int32(i%3 + 1)
	}
	g, err := raster.New(10, 10, raster.NorthUp(0, 1000, 100), vector.LAEAEur, raster.DTypeClass, cells)
	require.NoError(t, err)
	path := filepath.Join(dir, "clc.asc")
	require.NoError(t, rasterio.WriteASCIIFile(path, g))
	return path
}

func TestLandCover_FileClippedToAOI(t *testing.T) {
	path := writeClassGrid(t, t.TempDir())
	l := New(Options{LandCover: RasterSource{Kind: KindFile, Path: path, CRS: vector.LAEAEur}})

	g, err := l.LandCover(context.Background(), rect(t, vector.LAEAEur, 0, 0, 500, 500))
	require.NoError(t, err)
	assert.Equal(t, 5, g.Width)
	assert.Equal(t, 5, g.Height)
	assert.Equal(t, raster.NorthUp(0, 500, 100), g.Transform)
	assert.Equal(t, 0, g.Count(raster.DefaultNoData))
}

func TestLandCover_OutsideAOI(t *testing.T) {
	path := writeClassGrid(t, t.TempDir())
	l := New(Options{LandCover: RasterSource{Kind: KindFile, Path: path, CRS: vector.LAEAEur}})

	_, err := l.LandCover(context.Background(), rect(t, vector.LAEAEur, 5000, 5000, 6000, 6000))
	assert.True(t, errors.Is(err, geoerr.ErrEmptyIntersection))
}

func TestLandCover_URL(t *testing.T) {
	data, err := os.ReadFile(writeClassGrid(t, t.TempDir()))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := New(Options{
		Cache:     &fetcher.Cache{Dir: t.TempDir(), Fetcher: &fetcher.Mux{HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RateLimit: 100})}},
		LandCover: RasterSource{Kind: KindURL, URL: srv.URL + "/clc.asc", CRS: vector.LAEAEur},
	})
	g, err := l.LandCover(context.Background(), rect(t, vector.LAEAEur, 0, 0, 1000, 1000))
	require.NoError(t, err)
	assert.Equal(t, 10, g.Width)
}

func TestUnknownSource(t *testing.T) {
	l := New(Options{})
	aoi := rect(t, vector.LAEAEur, 0, 0, 10, 10)
	_, err := l.Imperviousness(context.Background(), aoi)
	assert.Error(t, err)
	_, err = l.LandCover(context.Background(), aoi)
	assert.Error(t, err)
}

func osmResponse() *overpass.Response {
	return &overpass.Response{Elements: []overpass.Element{
		{Type: "way", ID: 1, Tags: map[string]string{"leisure": "park"}, Geometry: []overpass.Point{
			{Lat: 40.600, Lon: 22.950}, {Lat: 40.600, Lon: 22.951}, {Lat: 40.601, Lon: 22.951}, {Lat: 40.600, Lon: 22.950},
		}},
		{Type: "way", ID: 2, Tags: map[string]string{"place": "square"}, Geometry: []overpass.Point{
			{Lat: 40.600, Lon: 22.950}, {Lat: 40.601, Lon: 22.951},
		}},
		{Type: "way", ID: 3, Tags: map[string]string{"highway": "primary", "lanes": "2"}, Geometry: []overpass.Point{
			{Lat: 40.600, Lon: 22.950}, {Lat: 40.601, Lon: 22.951},
		}},
	}}
}

func TestOpenSpacesAndRoads(t *testing.T) {
	op := &fakeOverpass{resp: osmResponse()}
	l := New(Options{Overpass: op, LaneWidth: 3})
	aoi := rect(t, vector.WGS84, 22.94, 40.59, 22.96, 40.61)

	parks, err := l.OpenSpaces(context.Background(), aoi)
	require.NoError(t, err)
	assert.Equal(t, vector.EPSG(32634), parks.CRS)
	// Two-point ways cannot bound an area.
	require.Equal(t, 1, parks.Len())
	assert.Greater(t, parks.Polygons[0].Area(), 1000.0)
	assert.InDelta(t, 40.59, op.box.South, 1e-9)
	assert.InDelta(t, 22.96, op.box.East, 1e-9)

	roads, err := l.Roads(context.Background(), aoi)
	require.NoError(t, err)
	assert.Equal(t, vector.EPSG(32634), roads.CRS)
	require.Len(t, roads.Lines, 3)
	assert.Equal(t, 3.0, roads.Lines[0].Width)
	assert.Equal(t, 6.0, roads.Lines[2].Width)

	crs, err := VectorCRS(aoi)
	require.NoError(t, err)
	assert.Equal(t, vector.EPSG(32634), crs)
}
