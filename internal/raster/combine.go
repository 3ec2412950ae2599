package raster

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
)

// And returns the cellwise logical AND of two masks on the same grid. Nodata
// cells count as 0.
func And(a, b *Grid) (*Grid, error) {
	if a.DType != DTypeBinary || b.DType != DTypeBinary {
		return nil, eris.Wrapf(geoerr.ErrDTypeMismatch, "raster: and %s with %s", a.DType, b.DType)
	}
	if err := requireSameGrid("and", a, b); err != nil {
		return nil, err
	}
	out := make([]int32, len(a.cells))
	for i := range out {
		if a.cells[i] == 1 && b.cells[i] == 1 {
			out[i] = 1
		}
	}
	return a.derive(DTypeBinary, out), nil
}
