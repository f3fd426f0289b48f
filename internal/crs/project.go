package crs

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// WGS84 ellipsoid and UTM constants.
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
	utmScale   = 0.9996
	falseEast  = 500000.0
	falseNorth = 10000000.0
)

var (
	e2  = flattening * (2 - flattening)
	ep2 = e2 / (1 - e2)
)

// ToWGS84 returns a copy of g with every coordinate reprojected from the
// source frame into EPSG:4326 (x = longitude, y = latitude). A nil geometry
// is returned unchanged; callers treat it as malformed downstream.
func ToWGS84(g geom.T, from Code) (geom.T, error) {
	if from == Unknown {
		return nil, eris.New("crs: source reference frame is unknown")
	}
	return transform(g, from, inverseFunc(from))
}

// FromWGS84 projects a copy of a WGS84 geometry into the target frame.
func FromWGS84(g geom.T, to Code) (geom.T, error) {
	if to == Unknown {
		return nil, eris.New("crs: target reference frame is unknown")
	}
	return transform(g, to, forwardFunc(to))
}

type coordFunc func(x, y float64) (float64, float64)

func transform(g geom.T, frame Code, fn coordFunc) (geom.T, error) {
	if !frame.Supported() {
		return nil, eris.Errorf("crs: unsupported reference frame %s", frame)
	}
	if g == nil {
		return nil, nil
	}

	out, err := clone(g)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		flat := out.FlatCoords()
		stride := out.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			flat[i], flat[i+1] = fn(flat[i], flat[i+1])
		}
	}
	return out, nil
}

// clone deep-copies the geometry types that appear in polygon datasets and
// stamps the result with SRID 4326.
func clone(g geom.T) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return t.Clone().SetSRID(int(WGS84)), nil
	case *geom.MultiPoint:
		return t.Clone().SetSRID(int(WGS84)), nil
	case *geom.LineString:
		return t.Clone().SetSRID(int(WGS84)), nil
	case *geom.MultiLineString:
		return t.Clone().SetSRID(int(WGS84)), nil
	case *geom.Polygon:
		return t.Clone().SetSRID(int(WGS84)), nil
	case *geom.MultiPolygon:
		return t.Clone().SetSRID(int(WGS84)), nil
	default:
		return nil, eris.Errorf("crs: unsupported geometry type %T", g)
	}
}

func inverseFunc(from Code) coordFunc {
	if from == WGS84 {
		return nil
	}
	if from == WebMercator {
		return mercatorInverse
	}
	zone, north, ok := from.UTMZone()
	if !ok {
		return nil
	}
	return func(x, y float64) (float64, float64) {
		return utmInverse(x, y, zone, north)
	}
}

func forwardFunc(to Code) coordFunc {
	if to == WGS84 {
		return nil
	}
	if to == WebMercator {
		return mercatorForward
	}
	zone, north, ok := to.UTMZone()
	if !ok {
		return nil
	}
	return func(lon, lat float64) (float64, float64) {
		return utmForward(lon, lat, zone, north)
	}
}

func mercatorForward(lon, lat float64) (float64, float64) {
	x := semiMajor * radians(lon)
	y := semiMajor * math.Log(math.Tan(math.Pi/4+radians(lat)/2))
	return x, y
}

func mercatorInverse(x, y float64) (float64, float64) {
	lon := degrees(x / semiMajor)
	lat := degrees(2*math.Atan(math.Exp(y/semiMajor)) - math.Pi/2)
	return lon, lat
}

func centralMeridian(zone int) float64 {
	return float64(zone-1)*6 - 180 + 3
}

// utmForward implements the USGS (Snyder 1987) transverse Mercator series.
func utmForward(lon, lat float64, zone int, north bool) (float64, float64) {
	phi := radians(lat)
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := semiMajor / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * radians(lon-centralMeridian(zone))

	e4 := e2 * e2
	e6 := e4 * e2
	m := semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	a2 := a * a
	easting := utmScale*n*(a+(1-t+c)*a2*a/6+
		(5-18*t+t*t+72*c-58*ep2)*a2*a2*a/120) + falseEast
	northing := utmScale * (m + n*tanPhi*(a2/2+
		(5-t+9*c+4*c*c)*a2*a2/24+
		(61-58*t+t*t+600*c-330*ep2)*a2*a2*a2/720))
	if !north {
		northing += falseNorth
	}
	return easting, northing
}

func utmInverse(easting, northing float64, zone int, north bool) (float64, float64) {
	x := easting - falseEast
	y := northing
	if !north {
		y -= falseNorth
	}

	e4 := e2 * e2
	e6 := e4 * e2
	m := y / utmScale
	mu := m / (semiMajor * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sin(phi1), math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)
	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	denom := 1 - e2*sinPhi1*sinPhi1
	n1 := semiMajor / math.Sqrt(denom)
	r1 := semiMajor * (1 - e2) / math.Pow(denom, 1.5)
	d := x / (n1 * utmScale)
	d2 := d * d

	lat := phi1 - (n1*tanPhi1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d2*d2/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d2*d2*d2/720)
	lon := (d - (1+2*t1+c1)*d2*d/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d2*d2*d/120) / cosPhi1

	return centralMeridian(zone) + degrees(lon), degrees(lat)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
