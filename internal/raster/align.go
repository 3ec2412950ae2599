package raster

import (
	"context"
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/vector"
)

// runOptions holds settings shared by the row-parallel operations.
type runOptions struct {
	reproject vector.Transformer
	workers   int
}

// RunOption configures Align, Density and the rasterizers.
type RunOption func(*runOptions)

// WithReprojection maps master cell centres into the slave CRS before lookup.
// Only Align uses it.
func WithReprojection(t vector.Transformer) RunOption {
	return func(o *runOptions) { o.reproject = t }
}

// WithWorkers caps the number of goroutines used. Zero means GOMAXPROCS.
func WithWorkers(n int) RunOption {
	return func(o *runOptions) { o.workers = n }
}

func collectOptions(opts []RunOption) runOptions {
	o := runOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Align resamples slave onto master's grid by nearest-neighbour lookup. Cells
// whose centre falls outside slave become slave's nodata, or 0 when slave
// declares none.
func Align(ctx context.Context, master, slave *Grid, opts ...RunOption) (*Grid, error) {
	o := collectOptions(opts)
	if master.CRS != slave.CRS && o.reproject == nil {
		return nil, eris.Wrapf(geoerr.ErrCRSMismatch, "raster: align %s onto %s", slave.CRS, master.CRS)
	}

	fill := int32(0)
	if slave.HasNoData {
		fill = slave.NoData
	}
	out := make([]int32, master.Width*master.Height)

	err := forRows(ctx, master.Height, o.workers, func(row int) error {
		base := row * master.Width
		for col := 0; col < master.Width; col++ {
			x, y := master.CellCenter(col, row)
			if o.reproject != nil {
				var err error
				x, y, err = o.reproject(x, y)
				if err != nil {
					return eris.Wrapf(err, "raster: align reproject cell %d,%d", col, row)
				}
			}
			sc, sr, ok := slave.WorldToCell(x, y)
			if !ok {
				out[base+col] = fill
				continue
			}
			out[base+col] = slave.cells[sr*slave.Width+sc]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g := master.derive(slave.DType, out)
	g.NoData, g.HasNoData = slave.NoData, slave.HasNoData
	return g, nil
}

// forRows runs fn for every row in [0, height) across a bounded set of
// goroutines, one contiguous band of rows each.
func forRows(ctx context.Context, height, workers int, fn func(row int) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	band := int(math.Ceil(float64(height) / float64(workers)))
	if band < 1 {
		band = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < height; start += band {
		end := min(start+band, height)
		g.Go(func() error {
			for row := start; row < end; row++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(row); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
