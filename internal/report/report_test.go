package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/openspace-cli/internal/indicator"
	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/raster"
)

func sampleReport() Report {
	return Report{
		RunID:       "run-1",
		AOI:         "Zagreb",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Area: indicator.AreaResult{
			OpenSpaceKm2: 0.5,
			RoadKm2:      0.25,
			BuiltUpKm2:   3,
			IndexPercent: 25,
		},
		KernelSize: 8,
		Separation: &raster.SeparationStats{Threshold: 16, OtsuLevel: 99, CandidateCells: 500, ClusterCells: 417},
		Stages: []pipeline.StageTiming{
			{Name: pipeline.StageReclassify, DurationMs: 3},
			{Name: pipeline.StageDensity, DurationMs: 40},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))

	want := "AREA OF INTEREST: Zagreb\n" +
		"TOTAL AREA OF OPEN AREAS: 0.5 square km\n" +
		"TOTAL AREA OF LAND ALLOCATED TO STREETS: 0.25 square km\n" +
		"TOTAL BUILT-UP AREA OF URBAN AGGLOMERATION: 3 square km\n" +
		"Value for SDG indicator 11.7.1: 25 %\n" +
		"----------\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, `"run_id": "run-1"`)
	assert.Contains(t, out, `"index_percent": 25`)
	assert.Contains(t, out, `"otsu_level": 99`)
	assert.Contains(t, out, `"name": "density"`)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, sampleReport()))

	var got struct {
		AOI  string `yaml:"aoi"`
		Area struct {
			BuiltUp float64 `yaml:"built_up_area_km2"`
			Index   float64 `yaml:"index_percent"`
		} `yaml:"area"`
		Separation struct {
			Threshold int `yaml:"threshold"`
		} `yaml:"separation"`
		Stages []pipeline.StageTiming `yaml:"stages"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Zagreb", got.AOI)
	assert.InDelta(t, 3, got.Area.BuiltUp, 1e-9)
	assert.InDelta(t, 25, got.Area.Index, 1e-9)
	assert.Equal(t, 16, got.Separation.Threshold)
	require.Len(t, got.Stages, 2)
	assert.Equal(t, int64(40), got.Stages[1].DurationMs)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteXLSX(path, sampleReport()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	results, ok := f.Sheet["results"]
	require.True(t, ok)

	values := map[string]string{}
	for _, row := range results.Rows {
		if len(row.Cells) == 2 {
			values[row.Cells[0].String()] = row.Cells[1].String()
		}
	}
	assert.Equal(t, "Zagreb", values["aoi"])
	assert.Equal(t, "run-1", values["run_id"])
	assert.Equal(t, "25", values["index_percent"])
	assert.Equal(t, "99", values["otsu_level"])

	stages, ok := f.Sheet["stages"]
	require.True(t, ok)
	assert.Len(t, stages.Rows, 3)
}

func TestWrite_AllFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Write(dir, sampleReport(), []string{FormatText, FormatJSON, FormatYAML, FormatXLSX})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "11-results.txt"),
		filepath.Join(dir, "11-results.json"),
		filepath.Join(dir, "11-results.yaml"),
		filepath.Join(dir, "11-results.xlsx"),
	}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	paths, err := Write(t.TempDir(), sampleReport(), []string{FormatJSON, "csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "csv"`)
	assert.Len(t, paths, 1)
}

func TestFromResult(t *testing.T) {
	res := &pipeline.Result{
		Cluster: pipeline.Cluster{KernelSize: 8, Separation: raster.SeparationStats{OtsuLevel: 99}},
		Area:    indicator.AreaResult{IndexPercent: 12.5},
		Stages:  []pipeline.StageTiming{{Name: pipeline.StageAggregate}},
	}
	r := FromResult("run-9", "Split", res)
	assert.Equal(t, "run-9", r.RunID)
	assert.Equal(t, "Split", r.AOI)
	assert.InDelta(t, 12.5, r.Area.IndexPercent, 1e-9)
	require.NotNil(t, r.Separation)
	assert.Equal(t, 99, r.Separation.OtsuLevel)
	assert.False(t, r.GeneratedAt.IsZero())

	measured := FromResult("", "Split", &pipeline.Result{Area: indicator.AreaResult{IndexPercent: 1}})
	assert.Nil(t, measured.Separation)
}
