package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/openspace-cli/internal/vector"
)

// Config holds the full application configuration.
type Config struct {
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	Output         OutputConfig         `yaml:"output" mapstructure:"output"`
	AOI            AOIConfig            `yaml:"aoi" mapstructure:"aoi"`
	ArcGIS         ArcGISConfig         `yaml:"arcgis" mapstructure:"arcgis"`
	Imperviousness ImperviousnessConfig `yaml:"imperviousness" mapstructure:"imperviousness"`
	LandCover      LandCoverConfig      `yaml:"landcover" mapstructure:"landcover"`
	Overpass       OverpassConfig       `yaml:"overpass" mapstructure:"overpass"`
	Cluster        ClusterConfig        `yaml:"cluster" mapstructure:"cluster"`
	Rasterize      RasterizeConfig      `yaml:"rasterize" mapstructure:"rasterize"`
	Retry          RetryConfig          `yaml:"retry" mapstructure:"retry"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig selects the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig controls where artifacts go and which report formats are written.
type OutputConfig struct {
	Dir      string   `yaml:"dir" mapstructure:"dir"`
	Formats  []string `yaml:"formats" mapstructure:"formats"`
	CacheDir string   `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// AOIConfig locates the area of interest.
type AOIConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	CRS       string `yaml:"crs" mapstructure:"crs"`
	NameField string `yaml:"name_field" mapstructure:"name_field"`
}

// ArcGISConfig configures the image export service.
type ArcGISConfig struct {
	BaseURL               string  `yaml:"base_url" mapstructure:"base_url"`
	ImperviousnessService string  `yaml:"imperviousness_service" mapstructure:"imperviousness_service"`
	LandCoverService      string  `yaml:"landcover_service" mapstructure:"landcover_service"`
	BBoxSR                int     `yaml:"bbox_sr" mapstructure:"bbox_sr"`
	TimeoutSecs           int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit             float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ImperviousnessConfig locates the imperviousness density raster.
type ImperviousnessConfig struct {
	Source     string  `yaml:"source" mapstructure:"source"`
	URL        string  `yaml:"url" mapstructure:"url"`
	Path       string  `yaml:"path" mapstructure:"path"`
	CRS        string  `yaml:"crs" mapstructure:"crs"`
	PixelSizeM float64 `yaml:"pixel_size_m" mapstructure:"pixel_size_m"`
	Min        int     `yaml:"min" mapstructure:"min"`
	Max        int     `yaml:"max" mapstructure:"max"`
}

// LandCoverConfig locates the land-cover raster and its urban classes.
type LandCoverConfig struct {
	Source       string  `yaml:"source" mapstructure:"source"`
	URL          string  `yaml:"url" mapstructure:"url"`
	Path         string  `yaml:"path" mapstructure:"path"`
	CRS          string  `yaml:"crs" mapstructure:"crs"`
	PixelSizeM   float64 `yaml:"pixel_size_m" mapstructure:"pixel_size_m"`
	UrbanClasses []int   `yaml:"urban_classes" mapstructure:"urban_classes"`
}

// OverpassConfig configures OpenStreetMap queries.
type OverpassConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	LaneWidthM  float64 `yaml:"lane_width_m" mapstructure:"lane_width_m"`
}

// ClusterConfig tunes urban cluster delineation.
type ClusterConfig struct {
	NeighborhoodKm2   float64 `yaml:"neighborhood_km2" mapstructure:"neighborhood_km2"`
	ThresholdFraction float64 `yaml:"threshold_fraction" mapstructure:"threshold_fraction"`
	Connectivity      int     `yaml:"connectivity" mapstructure:"connectivity"`
	// Workers bounds row parallelism; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RasterizeConfig sets the resolution open spaces and roads are burned at.
type RasterizeConfig struct {
	CellSizeM float64 `yaml:"cell_size_m" mapstructure:"cell_size_m"`
}

// RetryConfig configures retries of remote calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// Known option values.
var (
	rasterSources = []string{"arcgis", "url", "file"}
	reportFormats = []string{"json", "yaml", "xlsx", "text"}
	storeDrivers  = []string{"sqlite", "postgres"}
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPENSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "openspace.db")
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.formats", []string{"json", "text"})
	v.SetDefault("output.cache_dir", ".cache")
	v.SetDefault("aoi.path", "")
	v.SetDefault("aoi.crs", "EPSG:4326")
	v.SetDefault("aoi.name_field", "name")
	v.SetDefault("arcgis.base_url", "https://image.discomap.eea.europa.eu")
	v.SetDefault("arcgis.imperviousness_service", "GioLandPublic/HRL_ImperviousnessDensity_2018/ImageServer")
	v.SetDefault("arcgis.landcover_service", "Corine/CLC2018_raster/ImageServer")
	v.SetDefault("arcgis.bbox_sr", 3035)
	v.SetDefault("arcgis.timeout_secs", 120)
	v.SetDefault("arcgis.rate_limit", 2)
	v.SetDefault("imperviousness.source", "arcgis")
	v.SetDefault("imperviousness.url", "")
	v.SetDefault("imperviousness.path", "")
	v.SetDefault("imperviousness.crs", "EPSG:3035")
	v.SetDefault("imperviousness.pixel_size_m", 10)
	v.SetDefault("imperviousness.min", 1)
	v.SetDefault("imperviousness.max", 100)
	v.SetDefault("landcover.source", "arcgis")
	v.SetDefault("landcover.url", "")
	v.SetDefault("landcover.path", "")
	v.SetDefault("landcover.crs", "EPSG:3035")
	v.SetDefault("landcover.pixel_size_m", 100)
	v.SetDefault("landcover.urban_classes", []int{1, 2, 3, 10, 11})
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 180)
	v.SetDefault("overpass.rate_limit", 1)
	v.SetDefault("overpass.lane_width_m", 3)
	v.SetDefault("cluster.neighborhood_km2", 1)
	v.SetDefault("cluster.threshold_fraction", 0.25)
	v.SetDefault("cluster.connectivity", 4)
	v.SetDefault("cluster.workers", 0)
	v.SetDefault("rasterize.cell_size_m", 1)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("server.port", 8080)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	check(slices.Contains(storeDrivers, c.Store.Driver), "store.driver %q must be one of %v", c.Store.Driver, storeDrivers)
	check(c.Output.Dir != "", "output.dir is required")
	for _, f := range c.Output.Formats {
		check(slices.Contains(reportFormats, f), "output.formats: unknown format %q", f)
	}
	for key, crs := range map[string]string{
		"aoi.crs":            c.AOI.CRS,
		"imperviousness.crs": c.Imperviousness.CRS,
		"landcover.crs":      c.LandCover.CRS,
	} {
		_, err := vector.ParseCRS(crs)
		check(err == nil, "%s %q is not an EPSG code", key, crs)
	}

	check(slices.Contains(rasterSources, c.Imperviousness.Source), "imperviousness.source %q must be one of %v", c.Imperviousness.Source, rasterSources)
	check(c.Imperviousness.Source != "file" || c.Imperviousness.Path != "", "imperviousness.path is required for source file")
	check(c.Imperviousness.Source != "url" || c.Imperviousness.URL != "", "imperviousness.url is required for source url")
	check(c.Imperviousness.PixelSizeM > 0, "imperviousness.pixel_size_m must be positive")
	check(c.Imperviousness.Min <= c.Imperviousness.Max, "imperviousness.min %d exceeds max %d", c.Imperviousness.Min, c.Imperviousness.Max)

	check(slices.Contains(rasterSources, c.LandCover.Source), "landcover.source %q must be one of %v", c.LandCover.Source, rasterSources)
	check(c.LandCover.Source != "url" || c.LandCover.URL != "", "landcover.url is required for source url")
	check(c.LandCover.Source != "file" || c.LandCover.Path != "", "landcover.path is required for source file")
	check(c.LandCover.PixelSizeM > 0, "landcover.pixel_size_m must be positive")
	check(len(c.LandCover.UrbanClasses) > 0, "landcover.urban_classes must not be empty")

	check(c.ArcGIS.RateLimit > 0, "arcgis.rate_limit must be positive")
	check(c.Overpass.RateLimit > 0, "overpass.rate_limit must be positive")
	check(c.Overpass.LaneWidthM > 0, "overpass.lane_width_m must be positive")
	check(c.Cluster.NeighborhoodKm2 > 0, "cluster.neighborhood_km2 must be positive")
	check(c.Cluster.ThresholdFraction > 0 && c.Cluster.ThresholdFraction <= 1, "cluster.threshold_fraction %g outside (0, 1]", c.Cluster.ThresholdFraction)
	check(c.Cluster.Connectivity == 4 || c.Cluster.Connectivity == 8, "cluster.connectivity must be 4 or 8, got %d", c.Cluster.Connectivity)
	check(c.Cluster.Workers >= 0, "cluster.workers must not be negative")
	check(c.Rasterize.CellSizeM > 0, "rasterize.cell_size_m must be positive")

	if len(errs) > 0 {
		slices.Sort(errs)
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
