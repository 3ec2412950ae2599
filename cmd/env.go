package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/config"
	"github.com/sells-group/openspace-cli/internal/fetcher"
	"github.com/sells-group/openspace-cli/internal/resilience"
	"github.com/sells-group/openspace-cli/internal/source"
	"github.com/sells-group/openspace-cli/internal/store"
	"github.com/sells-group/openspace-cli/internal/vector"
	"github.com/sells-group/openspace-cli/internal/vectorio"
	"github.com/sells-group/openspace-cli/pkg/arcgis"
	"github.com/sells-group/openspace-cli/pkg/overpass"
)

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "openspace.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs, 2, 0.25)
}

// rasterSource converts one raster section of the config. CRS strings were
// checked by Validate.
func rasterSource(kind, service, url, path, crs string, pixel float64) source.RasterSource {
	parsed, _ := vector.ParseCRS(crs)
	return source.RasterSource{
		Kind:      kind,
		Service:   service,
		URL:       url,
		Path:      path,
		CRS:       parsed,
		PixelSize: pixel,
	}
}

// newLoader wires the remote clients behind the layer loader.
func newLoader(c *config.Config) *source.Loader {
	retry := retryConfig(c)

	arc := arcgis.NewClient(
		arcgis.WithBaseURL(c.ArcGIS.BaseURL),
		arcgis.WithHTTPClient(&http.Client{Timeout: time.Duration(c.ArcGIS.TimeoutSecs) * time.Second}),
		arcgis.WithRateLimit(c.ArcGIS.RateLimit),
		arcgis.WithRetry(retry),
	)
	osm := overpass.NewClient(
		overpass.WithURL(c.Overpass.URL),
		overpass.WithTimeout(c.Overpass.TimeoutSecs),
		overpass.WithRateLimit(c.Overpass.RateLimit),
		overpass.WithRetry(retry),
	)
	mux := fetcher.NewMux(fetcher.HTTPOptions{Retry: retry}, fetcher.FTPOptions{})

	return source.New(source.Options{
		ArcGIS:   arc,
		Overpass: osm,
		Cache:    &fetcher.Cache{Dir: c.Output.CacheDir, Fetcher: mux},
		Imperviousness: rasterSource(c.Imperviousness.Source, c.ArcGIS.ImperviousnessService,
			c.Imperviousness.URL, c.Imperviousness.Path, c.Imperviousness.CRS, c.Imperviousness.PixelSizeM),
		LandCover: rasterSource(c.LandCover.Source, c.ArcGIS.LandCoverService,
			c.LandCover.URL, c.LandCover.Path, c.LandCover.CRS, c.LandCover.PixelSizeM),
		LaneWidth: c.Overpass.LaneWidthM,
	})
}

// readAOI loads the area of interest named by path, falling back to the
// configured aoi.path.
func readAOI(c *config.Config, path string) (vector.Polygon, store.AOI, error) {
	if path == "" {
		path = c.AOI.Path
	}
	if path == "" {
		return vector.Polygon{}, store.AOI{}, eris.New("an area of interest is required (--aoi or OPENSPACE_AOI_PATH)")
	}
	crs, err := vector.ParseCRS(c.AOI.CRS)
	if err != nil {
		return vector.Polygon{}, store.AOI{}, eris.Wrap(err, "aoi crs")
	}
	aoi, name, err := vectorio.ReadAOI(path, crs, c.AOI.NameField)
	if err != nil {
		return vector.Polygon{}, store.AOI{}, err
	}
	return aoi, store.AOI{Name: name, Path: path}, nil
}
