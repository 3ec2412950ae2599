package source

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/openspace-cli/internal/vector"
	"github.com/sells-group/openspace-cli/pkg/overpass"
)

// VectorCRS returns the UTM zone containing the AOI centre, the metric CRS
// in which OSM layers are buffered and rasterized.
func VectorCRS(aoi vector.Polygon) (vector.CRS, error) {
	geo, err := vector.Reproject(aoi, vector.WGS84)
	if err != nil {
		return vector.NoCRS, eris.Wrap(err, "source: reproject aoi to wgs84")
	}
	b := geo.Bounds()
	return vector.UTMZone((b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2), nil
}

func (l *Loader) query(ctx context.Context, aoi vector.Polygon, q overpass.Query) (*overpass.Response, vector.CRS, error) {
	if l.opts.Overpass == nil {
		return nil, vector.NoCRS, eris.New("source: no overpass client configured")
	}
	geo, err := vector.Reproject(aoi, vector.WGS84)
	if err != nil {
		return nil, vector.NoCRS, eris.Wrap(err, "source: reproject aoi to wgs84")
	}
	b := geo.Bounds()
	resp, err := l.opts.Overpass.Fetch(ctx, q, overpass.BBox{South: b.MinY, West: b.MinX, North: b.MaxY, East: b.MaxX})
	if err != nil {
		return nil, vector.NoCRS, eris.Wrap(err, "source: overpass")
	}
	utm := vector.UTMZone((b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2)
	return resp, utm, nil
}

func coords(pts []overpass.Point) []geom.Coord {
	out := make([]geom.Coord, len(pts))
	for i, p := range pts {
		out[i] = geom.Coord{p.Lon, p.Lat}
	}
	return out
}

// OpenSpaces returns public open-space areas inside the AOI envelope, in the
// AOI's UTM zone.
func (l *Loader) OpenSpaces(ctx context.Context, aoi vector.Polygon) (vector.PolygonSet, error) {
	resp, utm, err := l.query(ctx, aoi, overpass.OpenSpaceQuery())
	if err != nil {
		return vector.PolygonSet{}, err
	}
	set := vector.PolygonSet{CRS: vector.WGS84}
	skipped := 0
	for _, el := range resp.Elements {
		for _, ring := range el.Rings() {
			p, err := vector.NewPolygon(vector.WGS84, 1, coords(ring))
			if err != nil {
				skipped++
				continue
			}
			set.Polygons = append(set.Polygons, p)
		}
	}
	out, err := set.Reproject(utm)
	if err != nil {
		return vector.PolygonSet{}, eris.Wrap(err, "source: reproject open spaces")
	}
	l.log.Info("open spaces loaded",
		zap.Int("elements", len(resp.Elements)),
		zap.Int("polygons", out.Len()),
		zap.Int("skipped", skipped),
		zap.String("crs", utm.String()),
	)
	return out, nil
}

// Roads returns the street network inside the AOI envelope as buffered lines
// in the AOI's UTM zone.
func (l *Loader) Roads(ctx context.Context, aoi vector.Polygon) (vector.LineSet, error) {
	resp, utm, err := l.query(ctx, aoi, overpass.RoadQuery())
	if err != nil {
		return vector.LineSet{}, err
	}
	set := vector.LineSet{CRS: vector.WGS84}
	for _, el := range resp.Elements {
		if el.Type != "way" || len(el.Geometry) < 2 {
			continue
		}
		line, err := vector.NewLine(coords(el.Geometry), el.Width(l.opts.LaneWidth))
		if err != nil {
			continue
		}
		set.Lines = append(set.Lines, line)
	}
	out, err := set.Reproject(utm)
	if err != nil {
		return vector.LineSet{}, eris.Wrap(err, "source: reproject roads")
	}
	l.log.Info("roads loaded",
		zap.Int("elements", len(resp.Elements)),
		zap.Int("lines", len(out.Lines)),
		zap.String("crs", utm.String()),
	)
	return out, nil
}
