// Package geo provides polygon validation and point-in-polygon tests over
// go-geom geometries.
//
// Containment is closed: a point lying exactly on an outer ring edge or vertex
// is contained. A point on the edge of a hole is also contained, because the
// hole boundary belongs to the polygon.
package geo

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// ErrMalformedGeometry marks a record whose geometry cannot take part in a
// containment test. It is counted and skipped by scanners, never fatal.
var ErrMalformedGeometry = errors.New("geo: malformed geometry")

// Location of a point relative to a ring or polygon.
type Location int

// Locations.
const (
	Exterior Location = iota
	Boundary
	Interior
)

// Validate checks that g is a non-empty Polygon or MultiPolygon whose rings
// are closed, have at least four positions, and hold finite coordinates.
func Validate(g geom.T) error {
	switch t := g.(type) {
	case *geom.Polygon:
		if t == nil {
			return eris.Wrap(ErrMalformedGeometry, "nil polygon")
		}
		return validatePolygon(t)
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return eris.Wrap(ErrMalformedGeometry, "empty multipolygon")
		}
		for i := 0; i < t.NumPolygons(); i++ {
			if err := validatePolygon(t.Polygon(i)); err != nil {
				return eris.Wrapf(err, "part %d", i)
			}
		}
		return nil
	case nil:
		return eris.Wrap(ErrMalformedGeometry, "missing geometry")
	default:
		return eris.Wrapf(ErrMalformedGeometry, "unsupported geometry type %T", g)
	}
}

func validatePolygon(p *geom.Polygon) error {
	if p.NumLinearRings() == 0 {
		return eris.Wrap(ErrMalformedGeometry, "polygon has no rings")
	}
	stride := p.Stride()
	for i := 0; i < p.NumLinearRings(); i++ {
		flat := p.LinearRing(i).FlatCoords()
		n := len(flat) / stride
		if n < 4 {
			return eris.Wrapf(ErrMalformedGeometry, "ring %d has %d positions", i, n)
		}
		for _, v := range flat {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return eris.Wrapf(ErrMalformedGeometry, "ring %d has a non-finite coordinate", i)
			}
		}
		last := (n - 1) * stride
		if flat[0] != flat[last] || flat[1] != flat[last+1] {
			return eris.Wrapf(ErrMalformedGeometry, "ring %d is not closed", i)
		}
	}
	return nil
}

// Contains reports whether the (x, y) position lies inside or on the
// boundary of g. Malformed geometries return an error wrapping
// ErrMalformedGeometry.
func Contains(g geom.T, pt geom.Coord) (bool, error) {
	loc, err := Locate(g, pt)
	if err != nil {
		return false, err
	}
	return loc != Exterior, nil
}

// Locate classifies pt against g.
func Locate(g geom.T, pt geom.Coord) (Location, error) {
	if err := Validate(g); err != nil {
		return Exterior, err
	}
	if len(pt) < 2 {
		return Exterior, eris.New("geo: point needs x and y")
	}

	switch t := g.(type) {
	case *geom.Polygon:
		return locateInPolygon(t, pt[0], pt[1]), nil
	case *geom.MultiPolygon:
		best := Exterior
		for i := 0; i < t.NumPolygons(); i++ {
			loc := locateInPolygon(t.Polygon(i), pt[0], pt[1])
			if loc == Interior {
				return Interior, nil
			}
			if loc > best {
				best = loc
			}
		}
		return best, nil
	}
	return Exterior, nil
}

func locateInPolygon(p *geom.Polygon, x, y float64) Location {
	if b := p.Bounds(); x < b.Min(0) || x > b.Max(0) || y < b.Min(1) || y > b.Max(1) {
		return Exterior
	}

	pt := geom.Coord{x, y}
	layout := p.Layout()
	outer := LocateInRing(layout, p.LinearRing(0).FlatCoords(), pt)
	if outer != Interior {
		return outer
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		switch LocateInRing(layout, p.LinearRing(i).FlatCoords(), pt) {
		case Interior:
			return Exterior
		case Boundary:
			return Boundary
		}
	}
	return Interior
}

// LocateInRing classifies pt against a closed ring given as flat
// coordinates in layout.
func LocateInRing(layout geom.Layout, flat []float64, pt geom.Coord) Location {
	if len(flat) == 0 {
		return Exterior
	}
	switch xy.LocatePointInRing(layout, pt, flat) {
	case location.Interior:
		return Interior
	case location.Boundary:
		return Boundary
	default:
		return Exterior
	}
}
