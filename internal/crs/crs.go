// Package crs parses coordinate reference system identifiers and reprojects
// geometries into WGS84 longitude/latitude (EPSG:4326).
package crs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Code is an EPSG code.
type Code int

// Supported reference frames.
const (
	Unknown      Code = 0
	WGS84        Code = 4326
	WebMercator  Code = 3857
	utmNorthBase Code = 32600
	utmSouthBase Code = 32700
)

// UTMNorth returns the EPSG code for a northern-hemisphere WGS84 UTM zone.
func UTMNorth(zone int) Code { return utmNorthBase + Code(zone) }

// UTMSouth returns the EPSG code for a southern-hemisphere WGS84 UTM zone.
func UTMSouth(zone int) Code { return utmSouthBase + Code(zone) }

// String renders the code as "EPSG:<n>".
func (c Code) String() string {
	if c == Unknown {
		return "unknown"
	}
	return fmt.Sprintf("EPSG:%d", int(c))
}

// UTMZone reports the zone and hemisphere for a WGS84 UTM code.
func (c Code) UTMZone() (zone int, north bool, ok bool) {
	switch {
	case c > utmNorthBase && c <= utmNorthBase+60:
		return int(c - utmNorthBase), true, true
	case c > utmSouthBase && c <= utmSouthBase+60:
		return int(c - utmSouthBase), false, true
	}
	return 0, false, false
}

// Supported reports whether reprojection to and from c is implemented.
func (c Code) Supported() bool {
	if c == WGS84 || c == WebMercator {
		return true
	}
	_, _, ok := c.UTMZone()
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var epsgDigits = regexp.MustCompile(`(?i)epsg:+(?:[\d.]+:)?(\d+)$`)

// Parse accepts the identifier forms found in geospatial files and config:
// "EPSG:32604", "epsg:4326", "urn:ogc:def:crs:EPSG::32604",
// "urn:ogc:def:crs:OGC:1.3:CRS84", "OGC:CRS84" and bare "4326".
// An empty string yields Unknown with no error.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown, nil
	}

	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CRS84") {
		return WGS84, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		return checked(Code(n))
	}

	m := epsgDigits.FindStringSubmatch(s)
	if m == nil {
		return Unknown, eris.Errorf("crs: unrecognised identifier %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Unknown, eris.Wrapf(err, "crs: parse code in %q", s)
	}
	return checked(Code(n))
}

func checked(c Code) (Code, error) {
	if !c.Supported() {
		return Unknown, eris.Errorf("crs: unsupported reference frame %s", c)
	}
	return c, nil
}

var (
	wktUTMZone   = regexp.MustCompile(`(?i)UTM[_ ]zone[_ ](\d{1,2})([NS])`)
	wktAuthority = regexp.MustCompile(`(?i)AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
)

// ParseWKT detects the reference frame declared by an ESRI or OGC WKT
// string such as the contents of a shapefile .prj sidecar.
func ParseWKT(wkt string) (Code, error) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return Unknown, nil
	}
	upper := strings.ToUpper(wkt)

	if strings.HasPrefix(upper, "PROJCS") || strings.HasPrefix(upper, "PROJCRS") {
		if m := wktUTMZone.FindStringSubmatch(wkt); m != nil {
			zone, _ := strconv.Atoi(m[1])
			if strings.EqualFold(m[2], "N") {
				return checked(UTMNorth(zone))
			}
			return checked(UTMSouth(zone))
		}
		if strings.Contains(upper, "MERCATOR_AUXILIARY_SPHERE") || strings.Contains(upper, "PSEUDO-MERCATOR") {
			return WebMercator, nil
		}
		// The outermost AUTHORITY node is the last one in the string.
		if all := wktAuthority.FindAllStringSubmatch(wkt, -1); len(all) > 0 {
			n, _ := strconv.Atoi(all[len(all)-1][1])
			return checked(Code(n))
		}
		return Unknown, eris.Errorf("crs: unsupported projected WKT %.60q", wkt)
	}

	if strings.HasPrefix(upper, "GEOGCS") || strings.HasPrefix(upper, "GEOGCRS") {
		if strings.Contains(upper, "WGS_1984") || strings.Contains(upper, "WGS 84") || strings.Contains(upper, "WGS84") {
			return WGS84, nil
		}
		return Unknown, eris.Errorf("crs: unsupported geographic datum in %.60q", wkt)
	}

	return Unknown, eris.Errorf("crs: unrecognised WKT %.60q", wkt)
}
