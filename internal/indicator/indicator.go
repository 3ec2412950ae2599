// Package indicator turns clipped masks into the open space and streets
// indicator.
package indicator

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
	"github.com/sells-group/openspace-cli/internal/raster"
)

const m2PerKm2 = 1_000_000

// AreaResult is the outcome of one run.
type AreaResult struct {
	OpenSpaceKm2 float64 `json:"open_space_area_km2" yaml:"open_space_area_km2"`
	RoadKm2      float64 `json:"road_area_km2" yaml:"road_area_km2"`
	BuiltUpKm2   float64 `json:"built_up_area_km2" yaml:"built_up_area_km2"`
	IndexPercent float64 `json:"index_percent" yaml:"index_percent"`
}

// AreaKm2 returns the area covered by cells equal to 1, using the grid's own
// pixel size in metres.
func AreaKm2(g *raster.Grid) float64 {
	return float64(g.Count(1)) * g.PixelArea() / m2PerKm2
}

// Index returns (openSpace + road) / builtUp * 100.
func Index(openSpaceKm2, roadKm2, builtUpKm2 float64) (float64, error) {
	if builtUpKm2 == 0 {
		return 0, eris.Wrap(geoerr.ErrDivisionByZero, "indicator: built-up area is zero")
	}
	idx := (openSpaceKm2 + roadKm2) / builtUpKm2 * 100
	if math.IsNaN(idx) || math.IsInf(idx, 0) {
		return 0, eris.Wrapf(geoerr.ErrDivisionByZero, "indicator: index is %v", idx)
	}
	return idx, nil
}

// Aggregate measures the three masks and computes the index.
func Aggregate(openSpace, roads, builtUp *raster.Grid) (AreaResult, error) {
	res := AreaResult{
		OpenSpaceKm2: AreaKm2(openSpace),
		RoadKm2:      AreaKm2(roads),
		BuiltUpKm2:   AreaKm2(builtUp),
	}
	idx, err := Index(res.OpenSpaceKm2, res.RoadKm2, res.BuiltUpKm2)
	if err != nil {
		return AreaResult{}, err
	}
	res.IndexPercent = idx
	return res, nil
}
