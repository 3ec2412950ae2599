package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/rasterio"
	"github.com/sells-group/openspace-cli/internal/vector"
	"github.com/sells-group/openspace-cli/internal/vectorio"
)

// Files written by the fetch subcommands and read back by cluster.
const (
	imperviousnessFile = "imperviousness.asc"
	landCoverFile      = "landcover.asc"
	openSpacesFile     = "open_spaces.geojson"
)

var (
	fetchAOI string
	fetchOut string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download one input layer for an area of interest",
}

func fetchRasterCmd(use, short, file string, load func(ctx context.Context, l layerLoader, aoi vector.Polygon) (*raster.Grid, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			aoi, _, err := readAOI(cfg, fetchAOI)
			if err != nil {
				return err
			}
			g, err := load(cmd.Context(), newLoader(cfg), aoi)
			if err != nil {
				return err
			}
			path, err := writeFetchedGrid(fetchDir(), file, g)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s: %dx%d cells\n", path, g.Width, g.Height)
			return nil
		},
	}
}

var fetchOSMCmd = &cobra.Command{
	Use:   "osm",
	Short: "Download open spaces and roads from OpenStreetMap",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		aoi, _, err := readAOI(cfg, fetchAOI)
		if err != nil {
			return err
		}
		path, open, roads, err := fetchOSM(cmd.Context(), newLoader(cfg), aoi, fetchDir())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s: %d open spaces, %d roads\n", path, open, roads)
		return nil
	},
}

func init() {
	fetchCmd.PersistentFlags().StringVar(&fetchAOI, "aoi", "", "area of interest (.shp or .geojson)")
	fetchCmd.PersistentFlags().StringVar(&fetchOut, "out", "", "output directory (default from config)")

	fetchCmd.AddCommand(fetchRasterCmd("imperviousness", "Download the imperviousness density raster", imperviousnessFile,
		func(ctx context.Context, l layerLoader, aoi vector.Polygon) (*raster.Grid, error) {
			return l.Imperviousness(ctx, aoi)
		}))
	fetchCmd.AddCommand(fetchRasterCmd("landcover", "Download the land-cover raster clipped to the area", landCoverFile,
		func(ctx context.Context, l layerLoader, aoi vector.Polygon) (*raster.Grid, error) {
			return l.LandCover(ctx, aoi)
		}))
	fetchCmd.AddCommand(fetchOSMCmd)
	rootCmd.AddCommand(fetchCmd)
}

func fetchDir() string {
	if fetchOut != "" {
		return fetchOut
	}
	return cfg.Output.Dir
}

func writeFetchedGrid(dir, name string, g *raster.Grid) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, name)
	if err := rasterio.WriteASCIIFile(path, g); err != nil {
		return "", err
	}
	return path, nil
}

// fetchOSM writes the open-space polygons as GeoJSON. Roads are only
// counted since their footprint depends on the rasterization cell size.
func fetchOSM(ctx context.Context, loader layerLoader, aoi vector.Polygon, dir string) (string, int, int, error) {
	open, err := loader.OpenSpaces(ctx, aoi)
	if err != nil {
		return "", 0, 0, err
	}
	roads, err := loader.Roads(ctx, aoi)
	if err != nil {
		return "", 0, 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, 0, eris.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, openSpacesFile)
	if err := vectorio.WriteGeoJSONFile(path, open); err != nil {
		return "", 0, 0, err
	}
	zap.L().Info("osm layers fetched",
		zap.Int("open_spaces", open.Len()),
		zap.Int("roads", len(roads.Lines)),
		zap.String("crs", open.CRS.String()),
	)
	return path, open.Len(), len(roads.Lines), nil
}
