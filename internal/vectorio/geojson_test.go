package vectorio

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openspace-cli/internal/vector"
)

func TestWriteGeoJSON(t *testing.T) {
	set := vector.PolygonSet{CRS: vector.LAEAEur, Polygons: []vector.Polygon{squareWithHole(t)}}

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, set))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string        `json:"type"`
				Coordinates [][][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "Polygon", doc.Features[0].Geometry.Type)
	assert.Len(t, doc.Features[0].Geometry.Coordinates, 2)
	assert.Equal(t, 1.0, doc.Features[0].Properties[ValueField])
	assert.Equal(t, "EPSG:3035", doc.Features[0].Properties["crs"])
}

func TestReadGeoJSON(t *testing.T) {
	src := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"name":"Old Town"},"geometry":{"type":"MultiPolygon","coordinates":[
	    [[[0,0],[0,1],[1,1],[1,0],[0,0]]],
	    [[[5,5],[5,8],[8,8],[8,5],[5,5]]]
	  ]}},
	  {"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}
	]}`
	features, err := ReadGeoJSON(strings.NewReader(src), vector.WGS84)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "Old Town", features[0].Attrs["name"])
	require.Len(t, features[0].Polygons, 2)
	assert.Greater(t, vector.SignedArea(features[0].Polygons[0].Rings()[0]), 0.0)

	_, err = ReadGeoJSON(strings.NewReader(`{"type":"FeatureCollection","features":[]}`), vector.WGS84)
	assert.Error(t, err)
}

func TestReadAOI_GeoJSONPicksLargestAndFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kalamaria.geojson")
	src := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[
	    [[[0,0],[0,1],[1,1],[1,0],[0,0]]],
	    [[[5,5],[5,8],[8,8],[8,5],[5,5]]]
	  ]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	aoi, name, err := ReadAOI(path, vector.WGS84, "name")
	require.NoError(t, err)
	assert.Equal(t, "kalamaria", name)
	assert.InDelta(t, 9.0, aoi.Area(), 1e-12)
}
