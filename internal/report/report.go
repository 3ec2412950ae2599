// Package report writes run summaries and the numbered artifacts of the
// urban cluster workflow.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/openspace-cli/internal/indicator"
	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/raster"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// Report is the summary of one run.
type Report struct {
	RunID       string                  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	AOI         string                  `json:"aoi" yaml:"aoi"`
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
	Area        indicator.AreaResult    `json:"area" yaml:"area"`
	KernelSize  int                     `json:"kernel_size,omitempty" yaml:"kernel_size,omitempty"`
	Separation  *raster.SeparationStats `json:"separation,omitempty" yaml:"separation,omitempty"`
	Stages      []pipeline.StageTiming  `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// FromResult builds a report for res. A Measure-only result carries no
// separation statistics.
func FromResult(runID, aoi string, res *pipeline.Result) Report {
	r := Report{
		RunID:       runID,
		AOI:         aoi,
		GeneratedAt: time.Now().UTC(),
		Area:        res.Area,
		KernelSize:  res.KernelSize,
		Stages:      res.Stages,
	}
	if res.KernelSize > 0 {
		sep := res.Separation
		r.Separation = &sep
	}
	return r
}

// extension maps a format to its file suffix.
func extension(format string) (string, error) {
	switch format {
	case FormatText:
		return ".txt", nil
	case FormatJSON:
		return ".json", nil
	case FormatYAML:
		return ".yaml", nil
	case FormatXLSX:
		return ".xlsx", nil
	}
	return "", eris.Errorf("report: unknown format %q", format)
}

// Write stores r in dir once per format as 11-results.<ext> and returns the
// written paths.
func Write(dir string, r Report, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", dir)
	}
	var paths []string
	for _, format := range formats {
		ext, err := extension(format)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, ResultsFile+ext)
		if format == FormatXLSX {
			err = WriteXLSX(path, r)
		} else {
			err = writeFile(path, r, format)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, r Report, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	switch format {
	case FormatText:
		err = WriteText(f, r)
	case FormatJSON:
		err = WriteJSON(f, r)
	case FormatYAML:
		err = WriteYAML(f, r)
	}
	if err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteText writes the plain-text results listing.
func WriteText(w io.Writer, r Report) error {
	lines := []string{
		fmt.Sprintf("AREA OF INTEREST: %s", r.AOI),
		fmt.Sprintf("TOTAL AREA OF OPEN AREAS: %s square km", num(r.Area.OpenSpaceKm2)),
		fmt.Sprintf("TOTAL AREA OF LAND ALLOCATED TO STREETS: %s square km", num(r.Area.RoadKm2)),
		fmt.Sprintf("TOTAL BUILT-UP AREA OF URBAN AGGLOMERATION: %s square km", num(r.Area.BuiltUpKm2)),
		fmt.Sprintf("Value for SDG indicator 11.7.1: %s %%", num(r.Area.IndexPercent)),
		"----------",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return eris.Wrap(err, "report: write text")
		}
	}
	return nil
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(r), "report: encode json")
}

// WriteYAML writes r as YAML.
func WriteYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml encoder")
}

// WriteXLSX writes a workbook with a results sheet and, when timings are
// present, a stages sheet.
func WriteXLSX(path string, r Report) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}
	addRow(sheet, "metric", "value")
	addRow(sheet, "aoi", r.AOI)
	if r.RunID != "" {
		addRow(sheet, "run_id", r.RunID)
	}
	addFloatRow(sheet, "open_space_area_km2", r.Area.OpenSpaceKm2)
	addFloatRow(sheet, "road_area_km2", r.Area.RoadKm2)
	addFloatRow(sheet, "built_up_area_km2", r.Area.BuiltUpKm2)
	addFloatRow(sheet, "index_percent", r.Area.IndexPercent)
	if r.Separation != nil {
		addIntRow(sheet, "kernel_size", r.KernelSize)
		addIntRow(sheet, "threshold", r.Separation.Threshold)
		addIntRow(sheet, "otsu_level", r.Separation.OtsuLevel)
		addIntRow(sheet, "cluster_cells", r.Separation.ClusterCells)
	}

	if len(r.Stages) > 0 {
		stages, err := f.AddSheet("stages")
		if err != nil {
			return eris.Wrap(err, "report: add stages sheet")
		}
		addRow(stages, "stage", "duration_ms")
		for _, st := range r.Stages {
			row := stages.AddRow()
			row.AddCell().SetString(st.Name)
			row.AddCell().SetInt64(st.DurationMs)
		}
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addFloatRow(sheet *xlsx.Sheet, name string, v float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(name)
	row.AddCell().SetFloat(v)
}

func addIntRow(sheet *xlsx.Sheet, name string, v int) {
	row := sheet.AddRow()
	row.AddCell().SetString(name)
	row.AddCell().SetInt(v)
}
