package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

// CRS identifies a coordinate reference system by EPSG code, e.g. "EPSG:3035".
type CRS string

// Well-known reference systems used by the pipeline.
const (
	WGS84   CRS = "EPSG:4326"
	LAEAEur CRS = "EPSG:3035"
	WebMerc CRS = "EPSG:3857"
	NoCRS   CRS = ""
)

const epsgPref = "EPSG:"

// proj4Defs holds proj4 definitions for the fixed codes; UTM zones are generated.
var proj4Defs = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	3035: "+proj=laea +lat_0=52 +lon_0=10 +x_0=4321000 +y_0=3210000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
}

// EPSG returns the CRS for an EPSG code.
func EPSG(code int) CRS {
	return CRS(epsgPref + strconv.Itoa(code))
}

// ParseCRS accepts "EPSG:3035", "epsg:3035" or a bare "3035".
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoCRS, eris.New("vector: empty crs")
	}
	upper := strings.ToUpper(s)
	upper = strings.TrimPrefix(upper, epsgPref)
	code, err := strconv.Atoi(upper)
	if err != nil || code <= 0 {
		return NoCRS, eris.Errorf("vector: invalid crs %q", s)
	}
	return EPSG(code), nil
}

// Code returns the numeric EPSG code.
func (c CRS) Code() (int, error) {
	if !strings.HasPrefix(string(c), epsgPref) {
		return 0, eris.Errorf("vector: crs %q is not an EPSG identifier", string(c))
	}
	code, err := strconv.Atoi(strings.TrimPrefix(string(c), epsgPref))
	if err != nil {
		return 0, eris.Wrapf(err, "vector: parse crs %q", string(c))
	}
	return code, nil
}

// IsGeographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) IsGeographic() bool {
	return c == WGS84
}

func (c CRS) String() string { return string(c) }

// Proj4 returns the proj4 definition for the CRS.
func (c CRS) Proj4() (string, error) {
	code, err := c.Code()
	if err != nil {
		return "", err
	}
	if def, ok := proj4Defs[code]; ok {
		return def, nil
	}
	switch {
	case code > 32600 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), nil
	case code > 32700 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), nil
	}
	return "", eris.Errorf("vector: no projection definition for %s", string(c))
}

// UTMZone returns the WGS84 UTM zone CRS containing the given lon/lat.
func UTMZone(lon, lat float64) CRS {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	if lat < 0 {
		return EPSG(32700 + zone)
	}
	return EPSG(32600 + zone)
}

// Transformer maps a coordinate from one CRS into another.
type Transformer func(x, y float64) (float64, float64, error)

// Identity returns coordinates unchanged.
func Identity(x, y float64) (float64, float64, error) { return x, y, nil }

// NewTransformer builds a coordinate transformation between two reference systems.
func NewTransformer(from, to CRS) (Transformer, error) {
	if from == to {
		return Identity, nil
	}
	srcDef, err := from.Proj4()
	if err != nil {
		return nil, err
	}
	dstDef, err := to.Proj4()
	if err != nil {
		return nil, err
	}
	src, err := proj.Parse(srcDef)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: parse projection %s", string(from))
	}
	dst, err := proj.Parse(dstDef)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: parse projection %s", string(to))
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: transform %s -> %s", string(from), string(to))
	}
	return Transformer(t), nil
}
