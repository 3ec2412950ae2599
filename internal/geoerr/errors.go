// Package geoerr defines the error taxonomy shared by the raster, vector and
// indicator packages. Every sentinel is fatal to a pipeline run; callers match
// them with errors.Is after any amount of eris wrapping.
package geoerr

import "github.com/rotisserie/eris"

var (
	// ErrCRSMismatch is returned when operands use different reference systems
	// and no explicit transformation was supplied.
	ErrCRSMismatch = eris.New("coordinate reference systems differ")

	// ErrGridMismatch is returned when two grids must share transform and
	// dimensions but do not.
	ErrGridMismatch = eris.New("grid definitions differ")

	// ErrNoRegionsFound is returned by polygonization of an all-background mask.
	ErrNoRegionsFound = eris.New("no foreground regions found")

	// ErrEmptyCandidateSet is returned when selecting from an empty polygon set.
	ErrEmptyCandidateSet = eris.New("empty candidate set")

	// ErrEmptyIntersection is returned when a clip geometry does not overlap
	// the target raster.
	ErrEmptyIntersection = eris.New("clip geometry does not intersect raster")

	// ErrDivisionByZero is returned when the built-up area is zero.
	ErrDivisionByZero = eris.New("division by zero")

	// ErrNonSquarePixels is returned by neighbourhood operations on grids
	// whose pixel width and height differ in magnitude.
	ErrNonSquarePixels = eris.New("pixels are not square")

	// ErrInvalidKernel is returned when a neighbourhood kernel cannot be built.
	ErrInvalidKernel = eris.New("invalid kernel")

	// ErrDTypeMismatch is returned when a grid has the wrong element type.
	ErrDTypeMismatch = eris.New("unexpected grid element type")
)
