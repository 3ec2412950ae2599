// Package vectorio reads area-of-interest boundaries and writes polygon
// layers as shapefiles, GeoJSON and EWKB.
package vectorio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/openspace-cli/internal/vector"
)

// ValueField is the attribute written for each polygon's source cell value.
const ValueField = "DN"

// Feature is one shapefile record.
type Feature struct {
	Polygons []vector.Polygon
	Attrs    map[string]string
}

// ReadShapefile reads every polygon record of shpPath. Attribute text is
// decoded with the codepage named in the .cpg sidecar when present.
func ReadShapefile(shpPath string, crs vector.CRS) ([]Feature, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "vectorio: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	dec := codepageDecoder(shpPath)
	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	var features []Feature
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil || poly.NumParts == 0 {
			skipped++
			continue
		}
		polys, err := polygonsFromShape(poly, crs)
		if err != nil {
			return nil, eris.Wrapf(err, "vectorio: record %d", n)
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if dec != nil {
				if s, err := dec.String(val); err == nil {
					val = s
				}
			}
			attrs[name] = val
		}
		features = append(features, Feature{Polygons: polys, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("vectorio: skipped non-polygon shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	if len(features) == 0 {
		return nil, eris.Errorf("vectorio: %s has no polygon records", shpPath)
	}
	return features, nil
}

// codepageDecoder returns the decoder named by the .cpg sidecar, or nil.
func codepageDecoder(shpPath string) *encoding.Decoder {
	data, err := os.ReadFile(strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".cpg")
	if err != nil {
		return nil
	}
	label := strings.TrimSpace(string(data))
	enc, err := htmlindex.Get(label)
	if err != nil {
		zap.L().Debug("vectorio: unknown codepage", zap.String("codepage", label))
		return nil
	}
	return enc.NewDecoder()
}

// polygonsFromShape splits shapefile parts into polygons. Clockwise parts are
// shells and counter-clockwise parts are holes of the shell containing them.
func polygonsFromShape(p *shp.Polygon, crs vector.CRS) ([]vector.Polygon, error) {
	var shells [][]geom.Coord
	var holes [][][]geom.Coord
	var orphans [][]geom.Coord

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		if len(ring) < 4 {
			continue
		}
		if vector.SignedArea(ring) < 0 {
			shells = append(shells, ring)
			holes = append(holes, nil)
		} else {
			orphans = append(orphans, ring)
		}
	}

	// Files written with the opposite winding have no clockwise parts.
	if len(shells) == 0 {
		for _, r := range orphans {
			shells = append(shells, r)
			holes = append(holes, nil)
		}
		orphans = nil
	}

	shellPolys := make([]vector.Polygon, len(shells))
	for i, s := range shells {
		sp, err := vector.NewPolygon(crs, 0, s)
		if err != nil {
			return nil, err
		}
		shellPolys[i] = sp
	}
	for _, h := range orphans {
		for i, sp := range shellPolys {
			if sp.Contains(h[0][0], h[0][1]) || i == len(shellPolys)-1 {
				holes[i] = append(holes[i], h)
				break
			}
		}
	}

	out := make([]vector.Polygon, 0, len(shells))
	for i, s := range shells {
		poly, err := vector.NewPolygon(crs, 0, append([][]geom.Coord{s}, holes[i]...)...)
		if err != nil {
			return nil, err
		}
		out = append(out, poly.Oriented())
	}
	return out, nil
}

// ReadAOI reads the area of interest: the largest polygon of the first
// record, plus the value of nameField when the record carries it.
func ReadAOI(path string, crs vector.CRS, nameField string) (vector.Polygon, string, error) {
	var features []Feature
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		features, err = ReadShapefile(path, crs)
	case ".geojson", ".json":
		features, err = ReadGeoJSONFile(path, crs)
	default:
		err = eris.Errorf("vectorio: unsupported boundary format %q", filepath.Ext(path))
	}
	if err != nil {
		return vector.Polygon{}, "", err
	}

	first := features[0]
	aoi, _, err := vector.Largest(vector.PolygonSet{CRS: crs, Polygons: first.Polygons})
	if err != nil {
		return vector.Polygon{}, "", eris.Wrapf(err, "vectorio: boundary %s", path)
	}
	name := first.Attrs[strings.ToLower(nameField)]
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return aoi, name, nil
}

// WriteShapefile writes set as a polygon shapefile with a DN attribute. Rings
// follow the shapefile winding: clockwise shells, counter-clockwise holes.
func WriteShapefile(shpPath string, set vector.PolygonSet) error {
	w, err := shp.Create(shpPath, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "vectorio: create shapefile %s", shpPath)
	}
	if err := w.SetFields([]shp.Field{shp.NumberField(ValueField, 10)}); err != nil {
		w.Close()
		return eris.Wrap(err, "vectorio: set shapefile fields")
	}

	for i, p := range set.Polygons {
		row := w.Write(toShape(p))
		if err := w.WriteAttribute(int(row), 0, int(p.Value)); err != nil {
			w.Close()
			return eris.Wrapf(err, "vectorio: write attribute %d", i)
		}
	}
	w.Close()

	cpg := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".cpg"
	if err := os.WriteFile(cpg, []byte("UTF-8"), 0o644); err != nil {
		return eris.Wrapf(err, "vectorio: write %s", cpg)
	}
	return nil
}

func toShape(p vector.Polygon) *shp.Polygon {
	rings := p.Oriented().Rings()
	out := &shp.Polygon{NumParts: int32(len(rings))}
	box := vector.EmptyBBox()
	for _, ring := range rings {
		out.Parts = append(out.Parts, int32(len(out.Points)))
		for i := len(ring) - 1; i >= 0; i-- {
			out.Points = append(out.Points, shp.Point{X: ring[i][0], Y: ring[i][1]})
			box = box.Extend(ring[i][0], ring[i][1])
		}
	}
	out.NumPoints = int32(len(out.Points))
	out.Box = shp.Box{MinX: box.MinX, MinY: box.MinY, MaxX: box.MaxX, MaxY: box.MaxY}
	return out
}
