// Package verify classifies a geocoded point against the burn-scar and
// building-damage collections.
package verify

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/internal/geo"
)

// Coordinate is a WGS84 longitude/latitude pair.
type Coordinate struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

func (c Coordinate) coord() geom.Coord {
	return geom.Coord{c.Lon, c.Lat}
}

// ScanStats counts the records a classification looked at.
type ScanStats struct {
	// Scanned is the number of records tested for containment.
	Scanned int `json:"scanned" yaml:"scanned"`
	// Skipped is the number of records with malformed or empty geometry.
	Skipped int `json:"skipped" yaml:"skipped"`
}

func (s ScanStats) add(o ScanStats) ScanStats {
	return ScanStats{Scanned: s.Scanned + o.Scanned, Skipped: s.Skipped + o.Skipped}
}

// RegionOrder returns the indexes of coll's regions in check order: the
// named precedence first, then any unnamed regions in source order. Every
// precedence name must exist in coll and appear once.
func RegionOrder(coll *dataset.BurnScarCollection, precedence []string) ([]int, error) {
	index := make(map[string]int, len(coll.Regions))
	for i, r := range coll.Regions {
		index[r.Name] = i
	}

	order := make([]int, 0, len(coll.Regions))
	used := make(map[int]bool, len(coll.Regions))
	for _, name := range precedence {
		i, ok := index[name]
		if !ok {
			return nil, eris.Errorf("verify: precedence names unknown region %q (have %v)", name, coll.Names())
		}
		if used[i] {
			return nil, eris.Errorf("verify: region %q listed twice in precedence", name)
		}
		used[i] = true
		order = append(order, i)
	}
	for i := range coll.Regions {
		if !used[i] {
			order = append(order, i)
		}
	}
	return order, nil
}

// ClassifyBurnScar returns the first region, in precedence order, whose
// geometry contains pt, or "" when none does. Points on a region boundary
// are inside. Regions with malformed geometry are skipped and counted.
func ClassifyBurnScar(pt Coordinate, coll *dataset.BurnScarCollection, precedence []string) (string, ScanStats, error) {
	order, err := RegionOrder(coll, precedence)
	if err != nil {
		return "", ScanStats{}, err
	}
	name, stats := classifyBurnScar(pt, coll, order)
	return name, stats, nil
}

func classifyBurnScar(pt Coordinate, coll *dataset.BurnScarCollection, order []int) (string, ScanStats) {
	var stats ScanStats
	c := pt.coord()

	for _, i := range order {
		r := coll.Regions[i]
		in, err := geo.Contains(r.Geometry, c)
		if err != nil {
			stats.Skipped++
			zap.L().Debug("verify: burn-scar region skipped",
				zap.String("region", r.Name),
				zap.Error(err),
			)
			continue
		}
		stats.Scanned++
		if in {
			return r.Name, stats
		}
	}
	return "", stats
}
