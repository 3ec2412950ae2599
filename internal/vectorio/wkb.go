package vectorio

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/openspace-cli/internal/vector"
)

// EncodeWKB converts a polygon to little-endian EWKB carrying its EPSG code
// as SRID. A polygon without a CRS is written with SRID 0.
func EncodeWKB(p vector.Polygon) ([]byte, error) {
	if p.Geom == nil {
		return nil, nil
	}
	srid, err := p.CRS.Code()
	if err != nil {
		srid = 0
	}
	g := geom.NewPolygonFlat(geom.XY, p.Geom.FlatCoords(), p.Geom.Ends()).SetSRID(srid)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "vectorio: encode WKB")
	}
	return data, nil
}

// DecodeWKB parses EWKB produced by EncodeWKB.
func DecodeWKB(data []byte) (vector.Polygon, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return vector.Polygon{}, eris.Wrap(err, "vectorio: decode WKB")
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return vector.Polygon{}, eris.Errorf("vectorio: WKB holds %T, want polygon", g)
	}
	crs := vector.NoCRS
	if poly.SRID() != 0 {
		crs = vector.EPSG(poly.SRID())
	}
	return vector.NewPolygon(crs, 0, poly.Coords()...)
}
