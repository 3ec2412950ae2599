package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Stage names, in execution order.
const (
	StageReclassify = "reclassify"
	StageBinarize   = "binarize"
	StageAlign      = "align"
	StageCombine    = "combine"
	StageDensity    = "density"
	StageSeparate   = "separate"
	StagePolygonize = "polygonize"
	StageLargest    = "largest"
	StageClip       = "clip"
	StageRasterize  = "rasterize"
	StageClipLayers = "clip_layers"
	StageAggregate  = "aggregate"
)

// StageError identifies the stage that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageTiming records how long a stage took.
type StageTiming struct {
	Name       string `json:"name" yaml:"name"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
}

// tracker times stages and turns failures into StageErrors.
type tracker struct {
	log    *zap.Logger
	timing []StageTiming
}

func (t *tracker) run(name string, fn func() ([]zap.Field, error)) error {
	start := time.Now()
	fields, err := fn()
	ms := time.Since(start).Milliseconds()
	if err != nil {
		t.log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", ms),
			zap.Error(err),
		)
		return &StageError{Stage: name, Err: err}
	}
	t.timing = append(t.timing, StageTiming{Name: name, DurationMs: ms})
	t.log.Info("pipeline: stage complete",
		append([]zap.Field{zap.String("stage", name), zap.Int64("duration_ms", ms)}, fields...)...,
	)
	return nil
}
