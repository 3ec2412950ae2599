package raster

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/geoerr"
)

// ClassSet is a set of land-cover codes.
type ClassSet map[int32]struct{}

// NewClassSet builds a set from codes.
func NewClassSet(codes ...int32) ClassSet {
	s := make(ClassSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// DefaultUrbanClasses are the land-cover codes treated as urban fabric.
func DefaultUrbanClasses() ClassSet {
	return NewClassSet(1, 2, 3, 10, 11)
}

// Has reports membership.
func (s ClassSet) Has(code int32) bool {
	_, ok := s[code]
	return ok
}

// Codes returns the sorted members.
func (s ClassSet) Codes() []int32 {
	out := make([]int32, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reclassify marks cells whose code belongs to classes with 1 and every other
// cell, nodata included, with 0.
func Reclassify(g *Grid, classes ClassSet) (*Grid, error) {
	if g.DType != DTypeClass && g.DType != DTypeByte {
		return nil, eris.Wrapf(geoerr.ErrDTypeMismatch, "raster: reclassify %s grid", g.DType)
	}
	out := make([]int32, len(g.cells))
	for i, c := range g.cells {
		if !g.IsNoData(c) && classes.Has(c) {
			out[i] = 1
		}
	}
	return g.derive(DTypeBinary, out), nil
}

// Binarize marks cells with min <= v <= max as 1. Nodata cells become 0.
func Binarize(g *Grid, lo, hi int32) (*Grid, error) {
	if g.DType == DTypeBinary {
		return nil, eris.Wrap(geoerr.ErrDTypeMismatch, "raster: binarize binary grid")
	}
	if lo > hi {
		return nil, eris.Errorf("raster: binarize range [%d, %d] is empty", lo, hi)
	}
	out := make([]int32, len(g.cells))
	for i, c := range g.cells {
		if !g.IsNoData(c) && c >= lo && c <= hi {
			out[i] = 1
		}
	}
	return g.derive(DTypeBinary, out), nil
}
