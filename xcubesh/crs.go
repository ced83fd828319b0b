package xcubesh

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	crsWGS84    = "WGS84"
	crsOGCCRS84 = "OGC:CRS84"
)

var epsgURIPattern = regexp.MustCompile(`^.*/EPSG/0/(\d+)$`)
var ogcCRS84URIPattern = regexp.MustCompile(`^.*/OGC/1\.3/CRS84$`)
var epsgShortPattern = regexp.MustCompile(`^EPSG:(\d+)$`)

// crsBaseURI is the prefix used when synthesizing a canonical URI for a
// short CRS identifier. Any prefix ending in the same suffix is accepted
// on input.
const crsBaseURI = "http://www.opengis.net/def/crs"

// knownEPSGCodes is the fixed set of EPSG codes the registry recognizes,
// outside of the two UTM zone ranges.
var knownEPSGCodes = map[int]bool{
	4326: true, 3857: true, 2154: true, 2180: true, 2193: true,
	3003: true, 3004: true, 3031: true, 3035: true, 3346: true,
	3416: true, 3765: true, 3794: true, 3844: true, 3912: true,
	3995: true, 4026: true, 5514: true, 28992: true,
}

func isKnownEPSGCode(code int) bool {
	if knownEPSGCodes[code] {
		return true
	}
	if code >= 32601 && code <= 32660 {
		return true
	}
	if code >= 32701 && code <= 32760 {
		return true
	}
	return false
}

// CrsRegistry translates between short CRS identifiers (WGS84,
// OGC:CRS84, EPSG:<code>) and their fully-qualified URIs.
type CrsRegistry struct{}

// NewCrsRegistry returns a CrsRegistry. It carries no state; the known
// CRS set is fixed at compile time.
func NewCrsRegistry() *CrsRegistry {
	return &CrsRegistry{}
}

// Canonicalize accepts either a short form or a known URI and returns
// the canonical short form.
func (CrsRegistry) Canonicalize(input string) (string, error) {
	if input == crsWGS84 || input == crsOGCCRS84 {
		return input, nil
	}
	if m := epsgShortPattern.FindStringSubmatch(input); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code == 4326 {
			return crsWGS84, nil
		}
		if isKnownEPSGCode(code) {
			return input, nil
		}
		return "", &UnknownCrsError{Input: input}
	}
	if ogcCRS84URIPattern.MatchString(input) {
		return crsOGCCRS84, nil
	}
	if m := epsgURIPattern.FindStringSubmatch(input); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code == 4326 {
			return crsWGS84, nil
		}
		if isKnownEPSGCode(code) {
			return fmt.Sprintf("EPSG:%d", code), nil
		}
	}
	return "", &UnknownCrsError{Input: input}
}

// URIOf returns the canonical URI for a short CRS identifier, which must
// already be in canonical short form (the output of Canonicalize).
func (CrsRegistry) URIOf(short string) (string, error) {
	switch short {
	case crsWGS84:
		return crsBaseURI + "/EPSG/0/4326", nil
	case crsOGCCRS84:
		return crsBaseURI + "/OGC/1.3/CRS84", nil
	}
	if m := epsgShortPattern.FindStringSubmatch(short); m != nil {
		code, _ := strconv.Atoi(m[1])
		if isKnownEPSGCode(code) {
			return fmt.Sprintf("%s/EPSG/0/%d", crsBaseURI, code), nil
		}
	}
	return "", &UnknownCrsError{Input: short}
}

// IsGeographic reports whether the given canonical short form is a
// geographic (lon/lat) CRS.
func IsGeographic(short string) bool {
	return short == crsWGS84 || short == crsOGCCRS84
}

// IsWGS84 reports whether the given canonical short form is WGS84.
func IsWGS84(short string) bool {
	return short == crsWGS84
}
