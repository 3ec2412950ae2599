// Package pipeline delineates the urban cluster of an area of interest and
// measures how much of it is public open space and streets.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openspace-cli/internal/config"
	"github.com/sells-group/openspace-cli/internal/indicator"
	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// Options are the tunable parameters of a run.
type Options struct {
	UrbanClasses      raster.ClassSet
	ImperviousMin     int32
	ImperviousMax     int32
	NeighborhoodKm2   float64
	ThresholdFraction float64
	Connectivity      int
	Workers           int
	// CellSize is the rasterization resolution for vector layers, in metres.
	CellSize float64
}

// DefaultOptions returns the reference parameters.
func DefaultOptions() Options {
	return Options{
		UrbanClasses:      raster.DefaultUrbanClasses(),
		ImperviousMin:     1,
		ImperviousMax:     100,
		NeighborhoodKm2:   1,
		ThresholdFraction: 0.25,
		Connectivity:      4,
		CellSize:          1,
	}
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	codes := make([]int32, len(cfg.LandCover.UrbanClasses))
	for i, c := range cfg.LandCover.UrbanClasses {
		codes[i] = int32(c)
	}
	return Options{
		UrbanClasses:      raster.NewClassSet(codes...),
		ImperviousMin:     int32(cfg.Imperviousness.Min),
		ImperviousMax:     int32(cfg.Imperviousness.Max),
		NeighborhoodKm2:   cfg.Cluster.NeighborhoodKm2,
		ThresholdFraction: cfg.Cluster.ThresholdFraction,
		Connectivity:      cfg.Cluster.Connectivity,
		Workers:           cfg.Cluster.Workers,
		CellSize:          cfg.Rasterize.CellSizeM,
	}
}

// Inputs are the layers of one run.
type Inputs struct {
	AOI            vector.Polygon
	LandCover      *raster.Grid
	Imperviousness *raster.Grid
	OpenSpaces     vector.PolygonSet
	Roads          vector.LineSet
}

// Cluster is the outcome of urban cluster delineation.
type Cluster struct {
	BuiltUp        *raster.Grid
	Density        *raster.Grid
	ClusterMask    *raster.Grid
	Regions        vector.PolygonSet
	Boundary       vector.Polygon
	ClippedBuiltUp *raster.Grid
	KernelSize     int
	Separation     raster.SeparationStats
}

// Result is the outcome of a full run.
type Result struct {
	Cluster
	OpenSpaceMask *raster.Grid
	RoadMask      *raster.Grid
	Area          indicator.AreaResult
	Stages        []StageTiming
}

// Run delineates the urban cluster and aggregates the indicator.
func Run(ctx context.Context, in Inputs, opts Options) (*Result, error) {
	t := &tracker{log: zap.L().With(zap.String("component", "pipeline"))}
	c, err := delineate(ctx, t, in.LandCover, in.Imperviousness, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{Cluster: *c}
	if err := measure(ctx, t, res, in.OpenSpaces, in.Roads, opts); err != nil {
		return nil, err
	}
	res.Stages = t.timing
	return res, nil
}

// Delineate runs the raster stages only: it builds the built-up mask, finds
// the largest dense cluster and clips the built-up mask to it.
func Delineate(ctx context.Context, landCover, imperviousness *raster.Grid, opts Options) (*Cluster, []StageTiming, error) {
	t := &tracker{log: zap.L().With(zap.String("component", "pipeline"))}
	c, err := delineate(ctx, t, landCover, imperviousness, opts)
	return c, t.timing, err
}

// Measure rasterizes the vector layers inside boundary and aggregates their
// areas against the clipped built-up mask.
func Measure(ctx context.Context, boundary vector.Polygon, clippedBuiltUp *raster.Grid, open vector.PolygonSet, roads vector.LineSet, opts Options) (*Result, error) {
	t := &tracker{log: zap.L().With(zap.String("component", "pipeline"))}
	res := &Result{Cluster: Cluster{Boundary: boundary, ClippedBuiltUp: clippedBuiltUp}}
	if err := measure(ctx, t, res, open, roads, opts); err != nil {
		return nil, err
	}
	res.Stages = t.timing
	return res, nil
}

func delineate(ctx context.Context, t *tracker, landCover, imperviousness *raster.Grid, opts Options) (*Cluster, error) {
	if landCover == nil || imperviousness == nil {
		return nil, eris.New("pipeline: land cover and imperviousness rasters are required")
	}
	run := []raster.RunOption{raster.WithWorkers(opts.Workers)}
	c := &Cluster{}

	var urban, impervious, aligned *raster.Grid
	err := t.run(StageReclassify, func() ([]zap.Field, error) {
		var err error
		urban, err = raster.Reclassify(landCover, opts.UrbanClasses)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("urban_cells", urban.Count(1))}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StageBinarize, func() ([]zap.Field, error) {
		var err error
		impervious, err = raster.Binarize(imperviousness, opts.ImperviousMin, opts.ImperviousMax)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("impervious_cells", impervious.Count(1))}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StageAlign, func() ([]zap.Field, error) {
		alignOpts := run
		if impervious.CRS != urban.CRS {
			tr, err := vector.NewTransformer(impervious.CRS, urban.CRS)
			if err != nil {
				return nil, err
			}
			alignOpts = append(alignOpts, raster.WithReprojection(tr))
		}
		var err error
		aligned, err = raster.Align(ctx, impervious, urban, alignOpts...)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("width", aligned.Width), zap.Int("height", aligned.Height)}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StageCombine, func() ([]zap.Field, error) {
		var err error
		c.BuiltUp, err = raster.And(impervious, aligned)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("built_up_cells", c.BuiltUp.Count(1))}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StageDensity, func() ([]zap.Field, error) {
		var err error
		c.Density, c.KernelSize, err = raster.Density(ctx, c.BuiltUp, opts.NeighborhoodKm2, run...)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("kernel_size", c.KernelSize)}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StageSeparate, func() ([]zap.Field, error) {
		var err error
		c.ClusterMask, c.Separation, err = raster.SeparateCluster(c.Density, c.KernelSize, opts.ThresholdFraction)
		if err != nil {
			return nil, err
		}
		return []zap.Field{
			zap.Int("threshold", c.Separation.Threshold),
			zap.Int("otsu_level", c.Separation.OtsuLevel),
			zap.Int("cluster_cells", c.Separation.ClusterCells),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StagePolygonize, func() ([]zap.Field, error) {
		var err error
		c.Regions, err = raster.Polygonize(c.ClusterMask, raster.PolygonizeOptions{
			MaskValue:    1,
			UseMask:      true,
			Connectivity: opts.Connectivity,
		})
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("regions", c.Regions.Len())}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StageLargest, func() ([]zap.Field, error) {
		var (
			idx int
			err error
		)
		c.Boundary, idx, err = vector.Largest(c.Regions)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("index", idx), zap.Float64("area_km2", c.Boundary.Area()/1e6)}, nil
	})
	if err != nil {
		return nil, err
	}

	err = t.run(StageClip, func() ([]zap.Field, error) {
		var err error
		c.ClippedBuiltUp, err = raster.Clip(c.BuiltUp, c.Boundary)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("built_up_cells", c.ClippedBuiltUp.Count(1))}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// vectorCRS picks the CRS the vector layers are measured in.
func vectorCRS(open vector.PolygonSet, roads vector.LineSet, fallback vector.CRS) vector.CRS {
	switch {
	case open.CRS != vector.NoCRS:
		return open.CRS
	case roads.CRS != vector.NoCRS:
		return roads.CRS
	}
	return fallback
}

func measure(ctx context.Context, t *tracker, res *Result, open vector.PolygonSet, roads vector.LineSet, opts Options) error {
	if res.ClippedBuiltUp == nil {
		return eris.New("pipeline: clipped built-up raster is required")
	}
	run := []raster.RunOption{raster.WithWorkers(opts.Workers)}
	crs := vectorCRS(open, roads, res.Boundary.CRS)

	var (
		openMask, roadMask *raster.Grid
		boundary           vector.Polygon
	)
	err := t.run(StageRasterize, func() ([]zap.Field, error) {
		o, err := open.Reproject(crs)
		if err != nil {
			return nil, err
		}
		r, err := roads.Reproject(crs)
		if err != nil {
			return nil, err
		}
		boundary, err = vector.Reproject(res.Boundary, crs)
		if err != nil {
			return nil, err
		}
		box := boundary.Bounds()
		if openMask, err = raster.RasterizePolygons(ctx, o, opts.CellSize, &box, run...); err != nil {
			return nil, err
		}
		if roadMask, err = raster.RasterizeLines(ctx, r, opts.CellSize, &box, run...); err != nil {
			return nil, err
		}
		return []zap.Field{
			zap.String("crs", crs.String()),
			zap.Int("open_spaces", o.Len()),
			zap.Int("roads", len(r.Lines)),
		}, nil
	})
	if err != nil {
		return err
	}

	err = t.run(StageClipLayers, func() ([]zap.Field, error) {
		var err error
		if res.OpenSpaceMask, err = raster.Clip(openMask, boundary); err != nil {
			return nil, err
		}
		if res.RoadMask, err = raster.Clip(roadMask, boundary); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	return t.run(StageAggregate, func() ([]zap.Field, error) {
		var err error
		res.Area, err = indicator.Aggregate(res.OpenSpaceMask, res.RoadMask, res.ClippedBuiltUp)
		if err != nil {
			return nil, err
		}
		return []zap.Field{
			zap.Float64("open_space_km2", res.Area.OpenSpaceKm2),
			zap.Float64("road_km2", res.Area.RoadKm2),
			zap.Float64("built_up_km2", res.Area.BuiltUpKm2),
			zap.Float64("index_percent", res.Area.IndexPercent),
		}, nil
	})
}
