// Package overpass queries OpenStreetMap features through the Overpass API.
package overpass

import (
	"strconv"
	"strings"
)

// BBox is a WGS84 envelope in degrees.
type BBox struct {
	South, West, North, East float64
}

// String formats the box the way Overpass QL expects: "s,w,n,e".
func (b BBox) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(b.South) + "," + f(b.West) + "," + f(b.North) + "," + f(b.East)
}

// Filter selects elements whose Key tag equals one of Values.
type Filter struct {
	Key    string
	Values []string
}

// Query is a union of tag filters evaluated over a bounding box.
type Query struct {
	Filters []Filter
	// Ways and Relations select which element types are queried.
	Ways      bool
	Relations bool
	// TimeoutSecs sets the server-side timeout; 0 leaves the server default.
	TimeoutSecs int
}

// OpenSpaceQuery selects parks, squares, beaches and similar public open land.
func OpenSpaceQuery() Query {
	return Query{
		Filters: []Filter{
			{Key: "natural", Values: []string{"shingle", "sand", "beach"}},
			{Key: "leisure", Values: []string{"park", "playground", "garden", "nature_reserve"}},
			{Key: "place", Values: []string{"square"}},
			{Key: "landuse", Values: []string{"recreation_ground", "cemetery"}},
		},
		Ways:      true,
		Relations: true,
	}
}

// RoadQuery selects the street network including footways and cycle lanes.
func RoadQuery() Query {
	return Query{
		Filters: []Filter{
			{Key: "highway", Values: []string{
				"primary", "secondary", "tertiary", "unclassified", "residential",
				"primary_link", "secondary_link", "tertiary_link",
				"living_street", "service", "pedestrian", "road",
				"corridor", "footway", "steps", "path",
			}},
			{Key: "traffic_calming", Values: []string{"island"}},
			{Key: "cycleway", Values: []string{"lane", "track"}},
		},
		Ways: true,
	}
}

// Build renders the query as Overpass QL with full geometry output.
func (q Query) Build(box BBox) string {
	var types []string
	if q.Ways {
		types = append(types, "way")
	}
	if q.Relations {
		types = append(types, "rel")
	}
	area := box.String()

	var sb strings.Builder
	sb.WriteString("[out:json]")
	if q.TimeoutSecs > 0 {
		sb.WriteString("[timeout:" + strconv.Itoa(q.TimeoutSecs) + "]")
	}
	sb.WriteString(";(")
	for _, f := range q.Filters {
		for _, v := range f.Values {
			for _, t := range types {
				sb.WriteString(t + `["` + f.Key + `"="` + v + `"](` + area + ");")
			}
		}
	}
	sb.WriteString(");out geom;")
	return sb.String()
}
