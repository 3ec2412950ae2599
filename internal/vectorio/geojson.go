package vectorio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/openspace-cli/internal/vector"
)

// WriteGeoJSON encodes set as a FeatureCollection with a DN property per
// feature. Coordinates are written as-is in the set's CRS.
func WriteGeoJSON(w io.Writer, set vector.PolygonSet) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, set.Len())}
	for i, p := range set.Polygons {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprint(i),
			Geometry: p.Geom,
			Properties: map[string]interface{}{
				ValueField: p.Value,
				"crs":      set.CRS.String(),
			},
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "vectorio: marshal geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "vectorio: write geojson")
	}
	return nil
}

// WriteGeoJSONFile writes set to path.
func WriteGeoJSONFile(path string, set vector.PolygonSet) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "vectorio: create %s", path)
	}
	if err := WriteGeoJSON(f, set); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "vectorio: close %s", path)
}

// ReadGeoJSON decodes Polygon and MultiPolygon features from a
// FeatureCollection. String properties become attributes.
func ReadGeoJSON(r io.Reader, crs vector.CRS) ([]Feature, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "vectorio: decode geojson")
	}

	var features []Feature
	for i, f := range fc.Features {
		var polys []*geom.Polygon
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			polys = append(polys, g)
		case *geom.MultiPolygon:
			for j := 0; j < g.NumPolygons(); j++ {
				polys = append(polys, g.Polygon(j))
			}
		default:
			continue
		}

		feat := Feature{Attrs: make(map[string]string, len(f.Properties))}
		for k, v := range f.Properties {
			if s, ok := v.(string); ok {
				feat.Attrs[k] = s
			}
		}
		for _, gp := range polys {
			p, err := vector.NewPolygon(crs, 0, gp.Coords()...)
			if err != nil {
				return nil, eris.Wrapf(err, "vectorio: geojson feature %d", i)
			}
			feat.Polygons = append(feat.Polygons, p.Oriented())
		}
		features = append(features, feat)
	}
	if len(features) == 0 {
		return nil, eris.New("vectorio: geojson has no polygon features")
	}
	return features, nil
}

// ReadGeoJSONFile reads polygon features from path.
func ReadGeoJSONFile(path string, crs vector.CRS) ([]Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vectorio: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadGeoJSON(f, crs)
}
