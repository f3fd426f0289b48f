package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/muw-verify/verify-cli/internal/dataset"
)

func TestClassifyBurnScar(t *testing.T) {
	coll := mauiBurnScar()
	precedence := []string{"South Maui/Upcountry", "Lahaina"}

	tests := []struct {
		name     string
		pt       Coordinate
		expected string
	}{
		{"inside lahaina", lahainaPt, "Lahaina"},
		{"inside upcountry", kulaPt, "South Maui/Upcountry"},
		{"overlap takes precedence", Coordinate{Lon: -156.47, Lat: 20.88}, "South Maui/Upcountry"},
		{"outside both", honolulu, ""},
		{"on lahaina edge", Coordinate{Lon: -156.72, Lat: 20.88}, "Lahaina"},
		{"on lahaina corner", Coordinate{Lon: -156.72, Lat: 20.84}, "Lahaina"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats, err := ClassifyBurnScar(tt.pt, coll, precedence)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Zero(t, stats.Skipped)
		})
	}
}

func TestClassifyBurnScar_PrecedenceIsConfig(t *testing.T) {
	coll := mauiBurnScar()
	overlap := Coordinate{Lon: -156.47, Lat: 20.88}

	got, _, err := ClassifyBurnScar(overlap, coll, []string{"Lahaina"})
	require.NoError(t, err)
	assert.Equal(t, "Lahaina", got)

	got, _, err = ClassifyBurnScar(overlap, coll, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lahaina", got, "unlisted regions follow source order")

	// Reversing the source file order does not change the answer.
	reversed := &dataset.BurnScarCollection{Regions: []dataset.Region{coll.Regions[1], coll.Regions[0]}}
	got, _, err = ClassifyBurnScar(overlap, reversed, []string{"South Maui/Upcountry", "Lahaina"})
	require.NoError(t, err)
	assert.Equal(t, "South Maui/Upcountry", got)
}

func TestClassifyBurnScar_MultiPolygonRegion(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(box(0, 0, 1, 1)))
	require.NoError(t, mp.Push(box(5, 5, 6, 6)))
	coll := &dataset.BurnScarCollection{Regions: []dataset.Region{{Name: "split", Geometry: mp}}}

	got, _, err := ClassifyBurnScar(Coordinate{Lon: 5.5, Lat: 5.5}, coll, nil)
	require.NoError(t, err)
	assert.Equal(t, "split", got)

	got, _, err = ClassifyBurnScar(Coordinate{Lon: 3, Lat: 3}, coll, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClassifyBurnScar_MalformedRegionSkipped(t *testing.T) {
	coll := &dataset.BurnScarCollection{Regions: []dataset.Region{
		{Name: "broken", Geometry: nil},
		{Name: "Lahaina", Geometry: around(lahainaPt, 0.01)},
	}}

	got, stats, err := ClassifyBurnScar(lahainaPt, coll, []string{"broken", "Lahaina"})
	require.NoError(t, err)
	assert.Equal(t, "Lahaina", got)
	assert.Equal(t, ScanStats{Scanned: 1, Skipped: 1}, stats)
}

func TestRegionOrder(t *testing.T) {
	coll := mauiBurnScar()

	order, err := RegionOrder(coll, []string{"South Maui/Upcountry"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, order)

	_, err = RegionOrder(coll, []string{"Kihei"})
	assert.ErrorContains(t, err, "unknown region")

	_, err = RegionOrder(coll, []string{"Lahaina", "Lahaina"})
	assert.ErrorContains(t, err, "twice")
}
