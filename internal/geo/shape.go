package geo

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ShapeToMultiPolygon converts a shapefile polygon record to a
// geom.MultiPolygon. Shapefile rings are grouped by winding: a clockwise ring
// opens a new polygon and each following counter-clockwise ring is a hole of
// it. Returns nil for nil, empty, or non-polygon shapes.
func ShapeToMultiPolygon(s shp.Shape) *geom.MultiPolygon {
	p, ok := s.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || start >= end {
			zap.L().Debug("geo: skipping out-of-range ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		// A counter-clockwise ring with no open polygon is promoted to an outer ring.
		if !counterClockwise(flat) || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// counterClockwise reports the winding of a closed ring. Rings too short to
// have a winding count as clockwise so they open their own polygon and fail
// validation there.
func counterClockwise(flat []float64) bool {
	if len(flat) < 8 {
		return false
	}
	return xy.IsRingCounterClockwise(geom.XY, flat)
}
