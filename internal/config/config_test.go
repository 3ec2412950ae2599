package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "openspace.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, []string{"json", "text"}, cfg.Output.Formats)
	assert.Equal(t, "EPSG:4326", cfg.AOI.CRS)
	assert.Equal(t, "https://image.discomap.eea.europa.eu", cfg.ArcGIS.BaseURL)
	assert.Equal(t, 3035, cfg.ArcGIS.BBoxSR)
	assert.Equal(t, "arcgis", cfg.Imperviousness.Source)
	assert.InDelta(t, 10, cfg.Imperviousness.PixelSizeM, 0.001)
	assert.Equal(t, 1, cfg.Imperviousness.Min)
	assert.Equal(t, 100, cfg.Imperviousness.Max)
	assert.Equal(t, []int{1, 2, 3, 10, 11}, cfg.LandCover.UrbanClasses)
	assert.InDelta(t, 100, cfg.LandCover.PixelSizeM, 0.001)
	assert.InDelta(t, 3, cfg.Overpass.LaneWidthM, 0.001)
	assert.InDelta(t, 1, cfg.Cluster.NeighborhoodKm2, 0.001)
	assert.InDelta(t, 0.25, cfg.Cluster.ThresholdFraction, 0.001)
	assert.Equal(t, 4, cfg.Cluster.Connectivity)
	assert.Equal(t, 0, cfg.Cluster.Workers)
	assert.InDelta(t, 1, cfg.Rasterize.CellSizeM, 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/openspace
log:
  level: debug
  format: console
server:
  port: 9090
landcover:
  source: file
  path: /data/clc.asc
  urban_classes: [1, 2]
cluster:
  connectivity: 8
output:
  formats: [xlsx]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/openspace", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file", cfg.LandCover.Source)
	assert.Equal(t, "/data/clc.asc", cfg.LandCover.Path)
	assert.Equal(t, []int{1, 2}, cfg.LandCover.UrbanClasses)
	assert.Equal(t, 8, cfg.Cluster.Connectivity)
	assert.Equal(t, []string{"xlsx"}, cfg.Output.Formats)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.25, cfg.Cluster.ThresholdFraction, 0.001)
	assert.Equal(t, "arcgis", cfg.Imperviousness.Source)

	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unterminated"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("OPENSPACE_STORE_DRIVER", "sqlite")
	t.Setenv("OPENSPACE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("OPENSPACE_SERVER_PORT", "3000")
	t.Setenv("OPENSPACE_CLUSTER_THRESHOLD_FRACTION", "0.5")
	t.Setenv("OPENSPACE_IMPERVIOUSNESS_PATH", "/data/imd.tif")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 0.5, cfg.Cluster.ThresholdFraction, 0.001)
	assert.Equal(t, "/data/imd.tif", cfg.Imperviousness.Path)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Output.Dir = "out"
	cfg.Output.Formats = []string{"json"}
	cfg.AOI.CRS = "EPSG:4326"
	cfg.Imperviousness.Source = "arcgis"
	cfg.Imperviousness.CRS = "EPSG:3035"
	cfg.Imperviousness.PixelSizeM = 10
	cfg.Imperviousness.Min = 1
	cfg.Imperviousness.Max = 100
	cfg.LandCover.Source = "arcgis"
	cfg.LandCover.CRS = "EPSG:3035"
	cfg.LandCover.PixelSizeM = 100
	cfg.LandCover.UrbanClasses = []int{1, 2, 3, 10, 11}
	cfg.ArcGIS.RateLimit = 2
	cfg.Overpass.RateLimit = 1
	cfg.Overpass.LaneWidthM = 3
	cfg.Cluster.NeighborhoodKm2 = 1
	cfg.Cluster.ThresholdFraction = 0.25
	cfg.Cluster.Connectivity = 4
	cfg.Rasterize.CellSizeM = 1
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver"},
		{name: "no output dir", mutate: func(c *Config) { c.Output.Dir = "" }, wantErr: "output.dir is required"},
		{name: "unknown format", mutate: func(c *Config) { c.Output.Formats = []string{"csv"} }, wantErr: `unknown format "csv"`},
		{name: "bad aoi crs", mutate: func(c *Config) { c.AOI.CRS = "WGS84" }, wantErr: "aoi.crs"},
		{name: "unknown source", mutate: func(c *Config) { c.Imperviousness.Source = "s3" }, wantErr: "imperviousness.source"},
		{name: "file without path", mutate: func(c *Config) { c.LandCover.Source = "file" }, wantErr: "landcover.path is required"},
		{name: "url without url", mutate: func(c *Config) { c.Imperviousness.Source = "url" }, wantErr: "imperviousness.url is required"},
		{name: "url with url", mutate: func(c *Config) {
			c.LandCover.Source = "url"
			c.LandCover.URL = "https://example.com/clc.zip"
		}},
		{name: "min above max", mutate: func(c *Config) { c.Imperviousness.Min = 101 }, wantErr: "imperviousness.min 101 exceeds max 100"},
		{name: "no urban classes", mutate: func(c *Config) { c.LandCover.UrbanClasses = nil }, wantErr: "urban_classes"},
		{name: "zero neighborhood", mutate: func(c *Config) { c.Cluster.NeighborhoodKm2 = 0 }, wantErr: "neighborhood_km2"},
		{name: "zero fraction", mutate: func(c *Config) { c.Cluster.ThresholdFraction = 0 }, wantErr: "threshold_fraction"},
		{name: "fraction one", mutate: func(c *Config) { c.Cluster.ThresholdFraction = 1 }},
		{name: "fraction above one", mutate: func(c *Config) { c.Cluster.ThresholdFraction = 1.5 }, wantErr: "threshold_fraction"},
		{name: "connectivity 6", mutate: func(c *Config) { c.Cluster.Connectivity = 6 }, wantErr: "connectivity must be 4 or 8"},
		{name: "connectivity 8", mutate: func(c *Config) { c.Cluster.Connectivity = 8 }},
		{name: "negative workers", mutate: func(c *Config) { c.Cluster.Workers = -1 }, wantErr: "workers"},
		{name: "zero cell size", mutate: func(c *Config) { c.Rasterize.CellSizeM = 0 }, wantErr: "cell_size_m"},
		{name: "zero arcgis rate", mutate: func(c *Config) { c.ArcGIS.RateLimit = 0 }, wantErr: "arcgis.rate_limit"},
		{name: "zero lane width", mutate: func(c *Config) { c.Overpass.LaneWidthM = 0 }, wantErr: "lane_width_m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Output.Dir = ""
	cfg.Cluster.Connectivity = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.dir is required")
	assert.Contains(t, err.Error(), "connectivity")
}
