package verify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muw-verify/verify-cli/internal/dataset"
)

func buildingsFixture() *dataset.BuildingCollection {
	return &dataset.BuildingCollection{
		Sources: []string{"survey", "detections"},
		Records: []dataset.Building{
			{ID: "lahaina-1", Source: "survey", Ordinal: 0, Geometry: around(lahainaPt, 0.0005), Damaged: true, DamagePct: pct(0.75)},
			{ID: "broken", Source: "survey", Ordinal: 1, Geometry: nil},
			{ID: "kula-intact", Source: "survey", Ordinal: 2, Geometry: around(kulaPt, 0.0005), Damaged: false, DamagePct: pct(0)},
			{ID: "lahaina-overlap", Source: "detections", Ordinal: 3, Geometry: around(lahainaPt, 0.001), Damaged: true},
			{ID: "edge", Source: "detections", Ordinal: 4, Geometry: box(0, 0, 1, 1), Damaged: true},
		},
	}
}

func TestClassifyBuilding(t *testing.T) {
	coll := buildingsFixture()

	match, stats := ClassifyBuilding(lahainaPt, coll)
	require.NotNil(t, match)
	assert.Equal(t, "lahaina-1", match.Record.ID)
	assert.True(t, match.Damaged())
	got, ok := match.DamagePct()
	require.True(t, ok)
	assert.InDelta(t, 0.75, got, 1e-12)
	assert.Equal(t, 1, match.OverlapCount)
	assert.Equal(t, ScanStats{Scanned: 4, Skipped: 1}, stats)

	match, _ = ClassifyBuilding(kulaPt, coll)
	require.NotNil(t, match)
	assert.False(t, match.Damaged())
	_, ok = match.DamagePct()
	assert.False(t, ok, "zero percentage is not reported")

	match, _ = ClassifyBuilding(honolulu, coll)
	assert.Nil(t, match)
}

func TestBuildingIndex_MatchesLinearScan(t *testing.T) {
	coll := buildingsFixture()
	ix := NewBuildingIndex(coll)
	assert.Equal(t, 4, ix.Size())
	assert.Equal(t, 1, ix.Skipped())

	points := []Coordinate{
		lahainaPt,
		kulaPt,
		honolulu,
		{Lon: lahainaPt.Lon + 0.0008, Lat: lahainaPt.Lat},
		{Lon: 0, Lat: 0},
		{Lon: 1, Lat: 0.5},
		{Lon: 1.0000001, Lat: 0.5},
	}
	for _, pt := range points {
		want, _ := ClassifyBuilding(pt, coll)
		got, stats := ix.Match(pt)
		assert.Equal(t, want, got, "point=%v", pt)
		assert.Equal(t, 1, stats.Skipped)
	}
}

func TestBuildingIndex_FirstInLoadOrder(t *testing.T) {
	// Enough records to force a multi-level tree.
	coll := &dataset.BuildingCollection{}
	for i := 0; i < 300; i++ {
		x := float64(i%20) * 2
		y := float64(i/20) * 2
		coll.Records = append(coll.Records, dataset.Building{
			ID:       fmt.Sprintf("b%d", i),
			Ordinal:  i,
			Geometry: box(x, y, x+1, y+1),
		})
	}
	// Two more records covering b0, appended last.
	coll.Records = append(coll.Records,
		dataset.Building{ID: "late-a", Ordinal: 300, Geometry: box(-1, -1, 2, 2), Damaged: true},
		dataset.Building{ID: "late-b", Ordinal: 301, Geometry: box(0, 0, 0.5, 0.5), Damaged: true},
	)

	ix := NewBuildingIndex(coll)
	match, _ := ix.Match(Coordinate{Lon: 0.25, Lat: 0.25})
	require.NotNil(t, match)
	assert.Equal(t, "b0", match.Record.ID)
	assert.Equal(t, 2, match.OverlapCount)

	match, _ = ix.Match(Coordinate{Lon: 1.5, Lat: 1.5})
	require.NotNil(t, match)
	assert.Equal(t, "late-a", match.Record.ID)

	match, _ = ix.Match(Coordinate{Lon: 39, Lat: 29})
	require.NotNil(t, match)
	assert.Equal(t, "b299", match.Record.ID)
}
