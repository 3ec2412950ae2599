package main

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/report"
	"github.com/sells-group/openspace-cli/internal/store"
	"github.com/sells-group/openspace-cli/internal/vector"
	"github.com/sells-group/openspace-cli/internal/vectorio"
)

// stageFetch labels failures while loading input layers.
const stageFetch = "fetch"

// layerLoader fetches the four input layers of a run.
type layerLoader interface {
	Imperviousness(ctx context.Context, aoi vector.Polygon) (*raster.Grid, error)
	LandCover(ctx context.Context, aoi vector.Polygon) (*raster.Grid, error)
	OpenSpaces(ctx context.Context, aoi vector.Polygon) (vector.PolygonSet, error)
	Roads(ctx context.Context, aoi vector.Polygon) (vector.LineSet, error)
}

var (
	runAOI string
	runOut string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch inputs, delineate the urban cluster and compute the indicator",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(); err != nil {
			return err
		}

		aoi, ref, err := readAOI(cfg, runAOI)
		if err != nil {
			return err
		}
		outDir := runOut
		if outDir == "" {
			outDir = cfg.Output.Dir
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rep, err := executeRun(ctx, st, newLoader(cfg), aoi, ref, pipeline.OptionsFromConfig(cfg), outDir, cfg.Output.Formats)
		if err != nil {
			return err
		}
		return report.WriteText(os.Stdout, rep)
	},
}

func init() {
	runCmd.Flags().StringVar(&runAOI, "aoi", "", "area of interest (.shp or .geojson)")
	runCmd.Flags().StringVar(&runOut, "out", "", "artifact directory (default from config)")
	rootCmd.AddCommand(runCmd)
}

// executeRun records a run, loads its layers, runs the pipeline and writes
// the artifacts. Failures are recorded against the stage that caused them.
func executeRun(ctx context.Context, st store.Store, loader layerLoader, aoi vector.Polygon, ref store.AOI, opts pipeline.Options, outDir string, formats []string) (report.Report, error) {
	log := zap.L().With(zap.String("component", "run"), zap.String("aoi", ref.Name))

	run, err := st.CreateRun(ctx, ref)
	if err != nil {
		return report.Report{}, eris.Wrap(err, "create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	fail := func(stage string, runErr error) error {
		log.Error("run failed", zap.String("stage", stage), zap.Error(runErr))
		if err := st.FailRun(ctx, run.ID, stage, runErr); err != nil {
			log.Warn("record failed run", zap.Error(err))
		}
		return runErr
	}

	in, err := loadInputs(ctx, loader, aoi)
	if err != nil {
		return report.Report{}, fail(stageFetch, err)
	}

	res, err := pipeline.Run(ctx, in, opts)
	if err != nil {
		stage := "pipeline"
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		return report.Report{}, fail(stage, err)
	}

	rep := report.FromResult(run.ID, ref.Name, res)
	artifacts, err := report.WriteCluster(outDir, &res.Cluster)
	if err != nil {
		return report.Report{}, fail("artifacts", err)
	}
	results, err := report.Write(outDir, rep, formats)
	if err != nil {
		return report.Report{}, fail("artifacts", err)
	}

	boundary, err := vectorio.EncodeWKB(res.Boundary)
	if err != nil {
		return report.Report{}, fail("artifacts", err)
	}
	if err := st.CompleteRun(ctx, run.ID, &store.RunResult{
		Area:       res.Area,
		KernelSize: res.KernelSize,
		Separation: res.Separation,
		Stages:     res.Stages,
		Artifacts:  append(artifacts, results...),
		Boundary:   boundary,
	}); err != nil {
		return report.Report{}, eris.Wrap(err, "complete run")
	}

	log.Info("run complete",
		zap.Float64("index_percent", res.Area.IndexPercent),
		zap.Float64("built_up_km2", res.Area.BuiltUpKm2),
		zap.Int("artifacts", len(artifacts)+len(results)),
	)
	return rep, nil
}

// loadInputs fetches the four layers concurrently.
func loadInputs(ctx context.Context, loader layerLoader, aoi vector.Polygon) (pipeline.Inputs, error) {
	in := pipeline.Inputs{AOI: aoi}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.Imperviousness, err = loader.Imperviousness(gctx, aoi)
		return err
	})
	g.Go(func() error {
		var err error
		in.LandCover, err = loader.LandCover(gctx, aoi)
		return err
	})
	g.Go(func() error {
		var err error
		in.OpenSpaces, err = loader.OpenSpaces(gctx, aoi)
		return err
	})
	g.Go(func() error {
		var err error
		in.Roads, err = loader.Roads(gctx, aoi)
		return err
	})
	if err := g.Wait(); err != nil {
		return pipeline.Inputs{}, err
	}
	return in, nil
}
