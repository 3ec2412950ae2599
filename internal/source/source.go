// Package source loads the pipeline's input layers for an area of interest:
// imperviousness and land-cover rasters from an image service or prepared
// files, and open-space and road vectors from OpenStreetMap.
package source

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openspace-cli/internal/fetcher"
	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/rasterio"
	"github.com/sells-group/openspace-cli/internal/vector"
	"github.com/sells-group/openspace-cli/pkg/arcgis"
	"github.com/sells-group/openspace-cli/pkg/overpass"
)

// Kinds of raster source.
const (
	KindArcGIS = "arcgis"
	KindURL    = "url"
	KindFile   = "file"
)

// ImperviousNoData marks cells outside the imperviousness product.
const ImperviousNoData = 255

// RasterSource describes where one raster layer comes from.
type RasterSource struct {
	Kind      string
	Service   string
	URL       string
	Path      string
	CRS       vector.CRS
	PixelSize float64
}

// Options wires the remote clients and layer sources.
type Options struct {
	ArcGIS         arcgis.Client
	Overpass       overpass.Client
	Cache          *fetcher.Cache
	Imperviousness RasterSource
	LandCover      RasterSource
	// LaneWidth is the buffer per road lane in metres.
	LaneWidth float64
}

// Loader fetches input layers.
type Loader struct {
	opts Options
	log  *zap.Logger
}

// New creates a Loader.
func New(opts Options) *Loader {
	if opts.LaneWidth <= 0 {
		opts.LaneWidth = 3
	}
	return &Loader{opts: opts, log: zap.L().With(zap.String("component", "source"))}
}

// Imperviousness returns the imperviousness density raster (0-100 %) covering
// the AOI envelope, with nodata 255.
func (l *Loader) Imperviousness(ctx context.Context, aoi vector.Polygon) (*raster.Grid, error) {
	src := l.opts.Imperviousness
	switch src.Kind {
	case KindArcGIS:
		return l.export(ctx, src, aoi, raster.DTypeByte, arcgis.Bilinear, raster.WithNoData(ImperviousNoData))
	case KindFile, KindURL:
		return l.prepared(ctx, src, aoi, raster.DTypeByte, raster.WithNoData(ImperviousNoData))
	}
	return nil, eris.Errorf("source: unknown imperviousness source %q", src.Kind)
}

// LandCover returns the land-cover class raster clipped to the AOI.
func (l *Loader) LandCover(ctx context.Context, aoi vector.Polygon) (*raster.Grid, error) {
	src := l.opts.LandCover
	var (
		g   *raster.Grid
		err error
	)
	switch src.Kind {
	case KindArcGIS:
		g, err = l.export(ctx, src, aoi, raster.DTypeClass, arcgis.NearestNeighbor)
	case KindFile, KindURL:
		g, err = l.prepared(ctx, src, aoi, raster.DTypeClass)
	default:
		return nil, eris.Errorf("source: unknown land cover source %q", src.Kind)
	}
	if err != nil {
		return nil, err
	}
	local, err := vector.Reproject(aoi, g.CRS)
	if err != nil {
		return nil, eris.Wrap(err, "source: reproject aoi to land cover")
	}
	clipped, err := raster.Clip(g, local)
	if err != nil {
		return nil, eris.Wrap(err, "source: clip land cover")
	}
	return clipped, nil
}

// export requests the AOI envelope, snapped outward to whole pixels, from
// the image service.
func (l *Loader) export(ctx context.Context, src RasterSource, aoi vector.Polygon, dtype raster.DType, interp string, opts ...raster.Option) (*raster.Grid, error) {
	if l.opts.ArcGIS == nil {
		return nil, eris.New("source: no image service client configured")
	}
	code, err := src.CRS.Code()
	if err != nil {
		return nil, eris.Wrap(err, "source: raster crs")
	}
	local, err := vector.Reproject(aoi, src.CRS)
	if err != nil {
		return nil, eris.Wrap(err, "source: reproject aoi")
	}
	box := snap(local.Bounds(), src.PixelSize)

	l.log.Info("exporting raster",
		zap.String("service", src.Service),
		zap.Float64("pixel_size", src.PixelSize),
		zap.Float64s("bbox", []float64{box.MinX, box.MinY, box.MaxX, box.MaxY}),
	)
	body, err := l.opts.ArcGIS.ExportImage(ctx, arcgis.ExportRequest{
		Service:       src.Service,
		BBox:          arcgis.BBox{XMin: box.MinX, YMin: box.MinY, XMax: box.MaxX, YMax: box.MaxY},
		BBoxSR:        code,
		ImageSR:       code,
		PixelSize:     src.PixelSize,
		Interpolation: interp,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: export %s", src.Service)
	}
	g, err := rasterio.ReadTIFF(bytes.NewReader(body), rasterio.FromBBox(box), src.CRS, dtype, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "source: decode %s", src.Service)
	}
	return g, nil
}

// prepared opens a local raster or downloads one through the cache. Zip
// archives are unpacked next to the download.
func (l *Loader) prepared(ctx context.Context, src RasterSource, aoi vector.Polygon, dtype raster.DType, opts ...raster.Option) (*raster.Grid, error) {
	path := src.Path
	if src.Kind == KindURL {
		if l.opts.Cache == nil {
			return nil, eris.New("source: no download cache configured")
		}
		p, err := l.opts.Cache.Get(ctx, src.URL)
		if err != nil {
			return nil, eris.Wrapf(err, "source: download %s", src.URL)
		}
		path = p
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		p, err := fetcher.ExtractRaster(path, strings.TrimSuffix(path, filepath.Ext(path)))
		if err != nil {
			return nil, eris.Wrap(err, "source: unpack raster")
		}
		path = p
	}
	l.log.Info("reading raster", zap.String("path", path))
	g, err := rasterio.Open(path, src.CRS, dtype, opts...)
	if err != nil {
		return nil, err
	}
	local, err := vector.Reproject(aoi, g.CRS)
	if err != nil {
		return nil, eris.Wrap(err, "source: reproject aoi")
	}
	if !local.Bounds().Intersects(g.Bounds()) {
		return nil, eris.Wrapf(geoerr.ErrEmptyIntersection, "source: aoi outside %s", filepath.Base(path))
	}
	return g, nil
}

// snap grows b outward to multiples of pixel so the exported image has
// exactly pixel-sized cells.
func snap(b vector.BBox, pixel float64) vector.BBox {
	if pixel <= 0 {
		return b
	}
	return vector.BBox{
		MinX: math.Floor(b.MinX/pixel) * pixel,
		MinY: math.Floor(b.MinY/pixel) * pixel,
		MaxX: math.Ceil(b.MaxX/pixel) * pixel,
		MaxY: math.Ceil(b.MaxY/pixel) * pixel,
	}
}
