package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/rasterio"
	"github.com/sells-group/openspace-cli/internal/report"
	"github.com/sells-group/openspace-cli/internal/source"
	"github.com/sells-group/openspace-cli/internal/vector"
)

var (
	clusterLandCover      string
	clusterImperviousness string
	clusterOut            string
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Delineate the urban cluster from local rasters",
	Long:  "Reads land-cover and imperviousness rasters (.asc, or .tif with a world file), writes the built-up and cluster masks, the cluster boundary and the clipped built-up mask.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		out := clusterOut
		if out == "" {
			out = cfg.Output.Dir
		}
		lcPath := clusterLandCover
		if lcPath == "" {
			lcPath = filepath.Join(out, landCoverFile)
		}
		impPath := clusterImperviousness
		if impPath == "" {
			impPath = filepath.Join(out, imperviousnessFile)
		}

		lcCRS, _ := vector.ParseCRS(cfg.LandCover.CRS)
		impCRS, _ := vector.ParseCRS(cfg.Imperviousness.CRS)
		lc, err := rasterio.Open(lcPath, lcCRS, raster.DTypeClass)
		if err != nil {
			return eris.Wrap(err, "read land cover")
		}
		imp, err := rasterio.Open(impPath, impCRS, raster.DTypeByte, raster.WithNoData(source.ImperviousNoData))
		if err != nil {
			return eris.Wrap(err, "read imperviousness")
		}

		c, paths, err := delineateToDir(cmd.Context(), lc, imp, pipeline.OptionsFromConfig(cfg), out)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "kernel %d, otsu level %d, cluster %.3f km2, %d artifacts in %s\n",
			c.KernelSize, c.Separation.OtsuLevel, c.Boundary.Area()/1e6, len(paths), out)
		return nil
	},
}

func init() {
	clusterCmd.Flags().StringVar(&clusterLandCover, "landcover", "", "land-cover raster (default <out>/"+landCoverFile+")")
	clusterCmd.Flags().StringVar(&clusterImperviousness, "imperviousness", "", "imperviousness raster (default <out>/"+imperviousnessFile+")")
	clusterCmd.Flags().StringVar(&clusterOut, "out", "", "artifact directory (default from config)")
	rootCmd.AddCommand(clusterCmd)
}

func delineateToDir(ctx context.Context, lc, imp *raster.Grid, opts pipeline.Options, dir string) (*pipeline.Cluster, []string, error) {
	c, _, err := pipeline.Delineate(ctx, lc, imp, opts)
	if err != nil {
		return nil, nil, err
	}
	paths, err := report.WriteCluster(dir, c)
	if err != nil {
		return nil, nil, err
	}
	return c, paths, nil
}
