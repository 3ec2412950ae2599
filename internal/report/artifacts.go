package report

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openspace-cli/internal/pipeline"
	"github.com/sells-group/openspace-cli/internal/raster"
	"github.com/sells-group/openspace-cli/internal/rasterio"
	"github.com/sells-group/openspace-cli/internal/vector"
	"github.com/sells-group/openspace-cli/internal/vectorio"
)

// Artifact names, numbered after the workflow step that produces them.
const (
	BuiltUpFile        = "4-built_up.asc"
	ClusterMaskFile    = "5-cluster_mask.asc"
	PolygonizedFile    = "6-polygonized"
	BoundsFile         = "7-bounds"
	ClusterBuiltUpFile = "8-urban_cluster_bua.asc"
	ResultsFile        = "11-results"
)

// WriteCluster stores the delineation artifacts of c in dir and returns the
// written paths. Grids and layers missing from c are skipped.
func WriteCluster(dir string, c *pipeline.Cluster) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", dir)
	}
	var paths []string

	grids := []struct {
		name string
		grid *raster.Grid
	}{
		{BuiltUpFile, c.BuiltUp},
		{ClusterMaskFile, c.ClusterMask},
		{ClusterBuiltUpFile, c.ClippedBuiltUp},
	}
	for _, g := range grids {
		if g.grid == nil {
			continue
		}
		path := filepath.Join(dir, g.name)
		if err := rasterio.WriteASCIIFile(path, g.grid); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	layers := []struct {
		name string
		set  vector.PolygonSet
	}{
		{PolygonizedFile, c.Regions},
		{BoundsFile, vector.PolygonSet{CRS: c.Boundary.CRS}},
	}
	if c.Boundary.Geom != nil {
		layers[1].set.Polygons = []vector.Polygon{c.Boundary}
	}
	for _, l := range layers {
		if l.set.Len() == 0 {
			continue
		}
		base := filepath.Join(dir, l.name)
		if err := vectorio.WriteShapefile(base+".shp", l.set); err != nil {
			return paths, err
		}
		if err := vectorio.WriteGeoJSONFile(base+".geojson", l.set); err != nil {
			return paths, err
		}
		paths = append(paths, base+".shp", base+".geojson")
	}
	return paths, nil
}

// ReadCluster loads the boundary and clipped built-up mask written by
// WriteCluster. Neither file carries a CRS, so the caller supplies it.
func ReadCluster(dir string, crs vector.CRS) (vector.Polygon, *raster.Grid, error) {
	boundary, _, err := vectorio.ReadAOI(filepath.Join(dir, BoundsFile+".geojson"), crs, "")
	if err != nil {
		return vector.Polygon{}, nil, eris.Wrap(err, "report: read boundary")
	}
	bua, err := rasterio.ReadASCIIFile(filepath.Join(dir, ClusterBuiltUpFile), crs, raster.DTypeBinary)
	if err != nil {
		return vector.Polygon{}, nil, eris.Wrap(err, "report: read clipped built-up")
	}
	return boundary, bua, nil
}
