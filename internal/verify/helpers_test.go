package verify

import (
	"context"

	"github.com/twpayne/go-geom"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

var (
	lahainaPt = Coordinate{Lon: -156.6825, Lat: 20.8783}
	kulaPt    = Coordinate{Lon: -156.3300, Lat: 20.7900}
	honolulu  = Coordinate{Lon: -157.8583, Lat: 21.3069}
)

func box(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

func around(c Coordinate, half float64) *geom.Polygon {
	return box(c.Lon-half, c.Lat-half, c.Lon+half, c.Lat+half)
}

// mauiBurnScar holds Lahaina and South Maui/Upcountry, overlapping along a
// strip at longitude -156.50 to -156.45.
func mauiBurnScar() *dataset.BurnScarCollection {
	return &dataset.BurnScarCollection{
		Source: "test",
		Regions: []dataset.Region{
			{Name: "Lahaina", Ordinal: 0, Geometry: box(-156.72, 20.84, -156.45, 20.92)},
			{Name: "South Maui/Upcountry", Ordinal: 1, Geometry: box(-156.50, 20.70, -156.20, 20.90)},
		},
	}
}

func pct(f float64) *float64 { return &f }

type stubGeocoder struct {
	result *geocode.Result
	err    error
	calls  int
}

func (s *stubGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	s.calls++
	return s.result, s.err
}

func locatedAt(c Coordinate, address string) *stubGeocoder {
	return &stubGeocoder{result: &geocode.Result{
		Latitude:  c.Lat,
		Longitude: c.Lon,
		Address:   address,
		Quality:   "rooftop",
		Source:    "google",
	}}
}
