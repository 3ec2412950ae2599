// Package store persists the history of indicator runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/indicator"
	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/raster"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// AOI identifies the area a run was computed for.
type AOI struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// RunResult is what a successful run records.
type RunResult struct {
	Area       indicator.AreaResult   `json:"area"`
	KernelSize int                    `json:"kernel_size"`
	Separation raster.SeparationStats `json:"separation"`
	Stages     []pipeline.StageTiming `json:"stages,omitempty"`
	Artifacts  []string               `json:"artifacts,omitempty"`
	Boundary   []byte                 `json:"-"`
}

// Run is one persisted indicator run.
type Run struct {
	ID          string     `json:"id"`
	AOI         AOI        `json:"aoi"`
	Status      RunStatus  `json:"status"`
	Result      *RunResult `json:"result,omitempty"`
	FailedStage string     `json:"failed_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  RunStatus `json:"status,omitempty"`
	AOIName string    `json:"aoi_name,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// limit returns the page size, defaulting to 100.
func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, aoi AOI) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result *RunResult) error
	FailRun(ctx context.Context, runID string, stage string, runErr error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// errorText flattens a run error for storage.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
