package overpass

import (
	"strconv"
	"strings"
)

// Point is one vertex of an element geometry.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Member is a relation member; with "out geom" ways carry their geometry.
type Member struct {
	Type     string  `json:"type"`
	Ref      int64   `json:"ref"`
	Role     string  `json:"role"`
	Geometry []Point `json:"geometry"`
}

// Element is a way or relation from an Overpass JSON response.
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []Point           `json:"geometry"`
	Members  []Member          `json:"members"`
}

// Response is the JSON body returned by the interpreter endpoint.
type Response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	Remark    string    `json:"remark"`
	Elements  []Element `json:"elements"`
}

// minRing is the vertex count below which a way cannot bound an area.
const minRing = 3

// Rings returns the area outlines of e: the geometry of a way, or the outer
// member ways of a relation. Outlines with fewer than three vertices are
// dropped.
func (e Element) Rings() [][]Point {
	switch e.Type {
	case "way":
		if len(e.Geometry) >= minRing {
			return [][]Point{e.Geometry}
		}
	case "relation", "rel":
		var rings [][]Point
		for _, m := range e.Members {
			if m.Type == "way" && (m.Role == "outer" || m.Role == "") && len(m.Geometry) >= minRing {
				rings = append(rings, m.Geometry)
			}
		}
		return rings
	}
	return nil
}

// Lanes returns the integer lanes tag, or 0 when missing or malformed.
// Multi-valued tags such as "2;3" use the first value.
func (e Element) Lanes() int {
	raw, ok := e.Tags["lanes"]
	if !ok {
		return 0
	}
	raw, _, _ = strings.Cut(raw, ";")
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Width estimates the carriageway width: lanes times laneWidth, or a single
// laneWidth when the lane count is unknown.
func (e Element) Width(laneWidth float64) float64 {
	if n := e.Lanes(); n > 0 {
		return float64(n) * laneWidth
	}
	return laneWidth
}
