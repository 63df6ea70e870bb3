// Package crs knows just enough about spatial reference identifiers to build
// and parse WMS requests: EPSG code parsing and the axis order rules that
// WMS 1.3.0 introduced for geographic systems.
package crs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	WGS84        = 4326
	WebMercator  = 3857
	Version111   = "1.1.1"
	Version130   = "1.3.0"
	epsgPrefix   = "EPSG:"
	crs84        = "CRS:84"
	unsetSRID    = -1
	maxEPSGValue = 1 << 20
)

var ErrUnknownCRS = errors.New("unknown crs")

// latLon lists geographic systems whose authority axis order is lat/lon.
// Not exhaustive; covers the codes commonly advertised by WMS servers.
var latLon = map[int]struct{}{
	4326: {},
	4258: {},
	4269: {},
	4267: {},
	4283: {},
	4171: {},
	4619: {},
	4230: {},
	4312: {},
	4617: {},
}

// Versions accepted by the request builder.
var Versions = []string{"1.0.0", "1.1.0", Version111, Version130}

func ValidVersion(v string) bool {
	for _, s := range Versions {
		if s == v {
			return true
		}
	}
	return false
}

// Parse accepts "EPSG:4326", "epsg:4326", "4326" and "CRS:84" (mapped to 4326).
func Parse(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return unsetSRID, fmt.Errorf("%w: empty", ErrUnknownCRS)
	}
	if s == crs84 {
		return WGS84, nil
	}
	s = strings.TrimPrefix(s, epsgPrefix)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > maxEPSGValue {
		return unsetSRID, fmt.Errorf("%w: %q", ErrUnknownCRS, s)
	}
	return n, nil
}

func Code(srid int) string {
	return epsgPrefix + strconv.Itoa(srid)
}

// IsLatLon reports whether the authority axis order of srid is lat/lon.
func IsLatLon(srid int) bool {
	_, ok := latLon[srid]
	return ok
}

// NeedsFlip reports whether coordinates exchanged with a server speaking
// version must be swapped to become x/y (lon/lat).
func NeedsFlip(srid int, version string) bool {
	return version == Version130 && IsLatLon(srid)
}

// ParamName is the query parameter carrying the spatial reference.
func ParamName(version string) string {
	if version == Version130 {
		return "CRS"
	}
	return "SRS"
}
