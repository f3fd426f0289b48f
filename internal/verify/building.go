package verify

import (
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"
	"go.uber.org/zap"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/internal/geo"
)

// rectPad widens index rectangles so that points on a footprint's bounding
// box still intersect it; rtreego treats touching rectangles as disjoint.
const rectPad = 1e-9

// BuildingMatch is the building whose footprint contains the query point.
type BuildingMatch struct {
	Record dataset.Building `json:"record" yaml:"record"`
	// OverlapCount is the number of further records, later in load order,
	// whose footprints also contain the point.
	OverlapCount int `json:"overlap_count" yaml:"overlap_count"`
}

// Damaged reports the matched record's damaged flag.
func (m *BuildingMatch) Damaged() bool { return m.Record.Damaged }

// DamagePct returns the damage fraction when it is present and positive.
func (m *BuildingMatch) DamagePct() (float64, bool) { return m.Record.ReportablePct() }

// ClassifyBuilding scans coll in stored order and returns the first record
// whose footprint contains pt, or nil. Malformed records are skipped and
// counted.
func ClassifyBuilding(pt Coordinate, coll *dataset.BuildingCollection) (*BuildingMatch, ScanStats) {
	var (
		stats ScanStats
		match *BuildingMatch
	)
	c := pt.coord()

	for i := range coll.Records {
		in, err := geo.Contains(coll.Records[i].Geometry, c)
		if err != nil {
			stats.Skipped++
			continue
		}
		stats.Scanned++
		if !in {
			continue
		}
		if match == nil {
			match = &BuildingMatch{Record: coll.Records[i]}
			continue
		}
		match.OverlapCount++
	}
	return match, stats
}

type indexedBuilding struct {
	rect rtreego.Rect
	pos  int
}

func (b *indexedBuilding) Bounds() rtreego.Rect {
	return b.rect
}

// BuildingIndex is an R-tree over building footprints. Match gives the same
// answer as ClassifyBuilding.
type BuildingIndex struct {
	coll    *dataset.BuildingCollection
	tree    *rtreego.Rtree
	skipped int
}

// NewBuildingIndex indexes every well-formed record of coll. Malformed
// records are left out and counted.
func NewBuildingIndex(coll *dataset.BuildingCollection) *BuildingIndex {
	ix := &BuildingIndex{coll: coll}
	objs := make([]rtreego.Spatial, 0, len(coll.Records))

	for i, b := range coll.Records {
		if err := geo.Validate(b.Geometry); err != nil {
			ix.skipped++
			zap.L().Debug("verify: building record not indexed",
				zap.String("id", b.ID),
				zap.String("source", b.Source),
				zap.Error(err),
			)
			continue
		}
		bounds := b.Geometry.Bounds()
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{bounds.Min(0) - rectPad, bounds.Min(1) - rectPad},
			rtreego.Point{bounds.Max(0) + rectPad, bounds.Max(1) + rectPad},
		)
		if err != nil {
			ix.skipped++
			continue
		}
		objs = append(objs, &indexedBuilding{rect: rect, pos: i})
	}

	ix.tree = rtreego.NewTree(2, 25, 50, objs...)
	if ix.skipped > 0 {
		zap.L().Warn("verify: malformed building records skipped",
			zap.Int("skipped", ix.skipped),
			zap.Int("records", len(coll.Records)),
		)
	}
	return ix
}

// Size returns the number of indexed records.
func (ix *BuildingIndex) Size() int {
	return ix.tree.Size()
}

// Skipped returns the number of records left out of the index.
func (ix *BuildingIndex) Skipped() int {
	return ix.skipped
}

// Match returns the first record in load order whose footprint contains pt.
func (ix *BuildingIndex) Match(pt Coordinate) (*BuildingMatch, ScanStats) {
	stats := ScanStats{Skipped: ix.skipped}
	if math.IsNaN(pt.Lon) || math.IsNaN(pt.Lat) {
		return nil, stats
	}

	hits := ix.tree.SearchIntersect(rtreego.Point{pt.Lon, pt.Lat}.ToRect(rectPad))
	positions := make([]int, 0, len(hits))
	for _, h := range hits {
		positions = append(positions, h.(*indexedBuilding).pos)
	}
	slices.Sort(positions)

	var match *BuildingMatch
	c := pt.coord()
	for _, pos := range positions {
		stats.Scanned++
		in, err := geo.Contains(ix.coll.Records[pos].Geometry, c)
		if err != nil || !in {
			continue
		}
		if match == nil {
			match = &BuildingMatch{Record: ix.coll.Records[pos]}
			continue
		}
		match.OverlapCount++
	}
	return match, stats
}
