package raster

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
)

// flt32Epsilon mirrors FLT_EPSILON, the class-weight guard of the Otsu search.
const flt32Epsilon = 1.1920928955078125e-07

// SeparationStats records the intermediate values of SeparateCluster.
type SeparationStats struct {
	Threshold      int `json:"threshold" yaml:"threshold"`
	OtsuLevel      int `json:"otsu_level" yaml:"otsu_level"`
	CandidateCells int `json:"candidate_cells" yaml:"candidate_cells"`
	ClusterCells   int `json:"cluster_cells" yaml:"cluster_cells"`
}

// SeparateCluster isolates the dense core of a density grid. Cells below
// round(kernelSize² * fraction) are dropped, the remainder is stretched to
// 0..255 and split with Otsu's threshold. Cells above the threshold form the
// returned mask.
func SeparateCluster(g *Grid, kernelSize int, fraction float64) (*Grid, SeparationStats, error) {
	var stats SeparationStats
	if g.DType != DTypeCount {
		return nil, stats, eris.Wrapf(geoerr.ErrDTypeMismatch, "raster: separate cluster of %s grid", g.DType)
	}
	if kernelSize < 1 || kernelSize > maxKernelSide {
		return nil, stats, eris.Wrapf(geoerr.ErrInvalidKernel, "raster: separate cluster kernel %d", kernelSize)
	}
	if !(fraction > 0 && fraction <= 1) {
		return nil, stats, eris.Errorf("raster: threshold fraction %g outside (0, 1]", fraction)
	}

	stats.Threshold = int(math.RoundToEven(float64(kernelSize*kernelSize) * fraction))
	thresholded := ApplyThreshold(g, int32(stats.Threshold))
	stats.CandidateCells = len(thresholded.cells) - thresholded.Count(0)

	scaled := RescaleToByte(thresholded)
	var hist [256]int
	for _, v := range scaled.cells {
		hist[v]++
	}
	stats.OtsuLevel = OtsuThreshold(hist)

	out := make([]int32, len(scaled.cells))
	level := int32(stats.OtsuLevel)
	for i, v := range scaled.cells {
		if v > level {
			out[i] = 1
			stats.ClusterCells++
		}
	}
	return g.derive(DTypeBinary, out), stats, nil
}

// ApplyThreshold zeroes cells below threshold and keeps the rest unchanged.
func ApplyThreshold(g *Grid, threshold int32) *Grid {
	out := make([]int32, len(g.cells))
	for i, v := range g.cells {
		if v >= threshold {
			out[i] = v
		}
	}
	return g.derive(g.DType, out)
}

// RescaleToByte stretches the grid's value range onto 0..255. Negative
// minimums shift the range to start at zero; the result is truncated toward
// zero. A grid whose maximum is zero maps to all zeros.
func RescaleToByte(g *Grid) *Grid {
	out := make([]int32, len(g.cells))
	lo, hi, ok := g.MinMax()
	if !ok {
		return g.derive(DTypeByte, out)
	}
	shift := int64(0)
	if lo < 0 {
		shift = -int64(lo)
	}
	top := float64(int64(hi) + shift)
	if top == 0 {
		return g.derive(DTypeByte, out)
	}
	for i, v := range g.cells {
		if g.IsNoData(v) {
			continue
		}
		out[i] = int32(uint8(float64(int64(v)+shift) / top * 255))
	}
	return g.derive(DTypeByte, out)
}

// OtsuThreshold returns the histogram level maximising the between-class
// variance. Levels whose lower or upper class weight is within FLT_EPSILON of
// zero are skipped, and the first maximum wins.
func OtsuThreshold(hist [256]int) int {
	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return 0
	}
	scale := 1.0 / float64(total)

	var mu float64
	for i, n := range hist {
		mu += float64(i) * float64(n)
	}
	mu *= scale

	var mu1, q1, maxSigma float64
	level := 0
	for i, n := range hist {
		p := float64(n) * scale
		mu1 *= q1
		q1 += p
		q2 := 1 - q1
		if math.Min(q1, q2) < flt32Epsilon || math.Max(q1, q2) > 1-flt32Epsilon {
			continue
		}
		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			level = i
		}
	}
	return level
}
