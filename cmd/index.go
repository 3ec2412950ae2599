package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/report"
	"github.com/sells-group/openspace-cli/internal/vector"
)

var indexDir string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Compute the indicator from cluster artifacts",
	Long:  "Reads the cluster boundary and clipped built-up mask written by cluster, fetches open spaces and roads inside the boundary and writes the results.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		dir := indexDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		crs, _ := vector.ParseCRS(cfg.Imperviousness.CRS)
		rep, err := indexFromDir(cmd.Context(), newLoader(cfg), dir, crs, pipeline.OptionsFromConfig(cfg), cfg.Output.Formats)
		if err != nil {
			return err
		}
		return report.WriteText(os.Stdout, rep)
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDir, "dir", "", "artifact directory (default from config)")
	rootCmd.AddCommand(indexCmd)
}

// indexFromDir measures the layers inside the stored boundary. The boundary
// doubles as the area of interest for the OpenStreetMap queries.
func indexFromDir(ctx context.Context, loader layerLoader, dir string, crs vector.CRS, opts pipeline.Options, formats []string) (report.Report, error) {
	boundary, bua, err := report.ReadCluster(dir, crs)
	if err != nil {
		return report.Report{}, err
	}
	open, err := loader.OpenSpaces(ctx, boundary)
	if err != nil {
		return report.Report{}, eris.Wrap(err, "fetch open spaces")
	}
	roads, err := loader.Roads(ctx, boundary)
	if err != nil {
		return report.Report{}, eris.Wrap(err, "fetch roads")
	}
	res, err := pipeline.Measure(ctx, boundary, bua, open, roads, opts)
	if err != nil {
		return report.Report{}, err
	}
	rep := report.FromResult("", dir, res)
	if _, err := report.Write(dir, rep, formats); err != nil {
		return report.Report{}, err
	}
	return rep, nil
}
