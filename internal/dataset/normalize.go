package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/muw-verify/verify-cli/internal/crs"
)

// Default column names for building sources that do not configure them.
const (
	DefaultDamagedField   = "damaged"
	DefaultDamagePctField = "damage_pct"
)

// resolveFrame picks the frame to reproject from. A declared frame wins
// unless it claims WGS84 while the coordinates are clearly projected; an
// unlabeled source falls back to the assumed frame, then to WGS84 as GeoJSON
// requires.
func resolveFrame(set *FeatureSet, assumed crs.Code) (crs.Code, error) {
	declared := set.CRS
	projected := looksProjected(set)

	switch {
	case declared != crs.Unknown && !(declared == crs.WGS84 && projected):
		return declared, nil
	case assumed != crs.Unknown:
		return assumed, nil
	case projected:
		return crs.Unknown, eris.New("coordinates are outside the geographic range and no assumed frame is configured")
	default:
		return crs.WGS84, nil
	}
}

func looksProjected(set *FeatureSet) bool {
	for _, f := range set.Features {
		if f.Geometry == nil {
			continue
		}
		flat := f.Geometry.FlatCoords()
		stride := f.Geometry.Stride()
		for i := 0; i+1 < len(flat); i += stride {
			if math.Abs(flat[i]) > 180 || math.Abs(flat[i+1]) > 90 {
				return true
			}
		}
	}
	return false
}

func reproject(g geom.T, from crs.Code, log *zap.Logger, index int) geom.T {
	if g == nil {
		return nil
	}
	out, err := crs.ToWGS84(g, from)
	if err != nil {
		log.Debug("dataset: geometry not reprojected", zap.Int("feature", index), zap.Error(err))
		return nil
	}
	return out
}

// burnScarRegionCount is the number of regions in the published burn-scar
// dataset: Lahaina and South Maui/Upcountry.
const burnScarRegionCount = 2

// NormalizeBurnScar names each feature and reprojects it to WGS84. Region
// order follows the source; precedence is applied by the verifier.
func NormalizeBurnScar(set *FeatureSet, src BurnScarSource) (*BurnScarCollection, error) {
	frame, err := resolveFrame(set, src.AssumedCRS)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]string, len(src.Regions))
	for _, r := range src.Regions {
		byIndex[r.Index] = r.Name
	}

	log := zap.L().With(zap.String("component", "dataset.burn_scar"), zap.String("source", src.DisplayName()))
	coll := &BurnScarCollection{
		Source:    src.DisplayName(),
		SourceCRS: frame,
		Regions:   make([]Region, 0, len(set.Features)),
	}
	seen := make(map[string]bool, len(set.Features))

	for i, f := range set.Features {
		name := ""
		if src.NameField != "" {
			name = stringProp(f.Properties, src.NameField)
		}
		if name == "" {
			name = byIndex[i]
		}
		if name == "" {
			name = fmt.Sprintf("region %d", i)
		}
		if seen[name] {
			return nil, eris.Errorf("duplicate burn-scar region name %q", name)
		}
		seen[name] = true

		coll.Regions = append(coll.Regions, Region{
			Name:       name,
			Ordinal:    i,
			Geometry:   reproject(f.Geometry, frame, log, i),
			Properties: f.Properties,
		})
	}

	for _, r := range src.Regions {
		if r.Index < 0 || r.Index >= len(set.Features) {
			return nil, eris.Errorf("region %q refers to feature %d but the source has %d features", r.Name, r.Index, len(set.Features))
		}
	}

	if len(coll.Regions) != burnScarRegionCount {
		log.Warn("dataset: burn-scar collection does not hold the expected regions",
			zap.Int("regions", len(coll.Regions)),
			zap.Int("expected", burnScarRegionCount),
		)
	}

	log.Debug("dataset: burn-scar collection normalized",
		zap.Int("regions", len(coll.Regions)),
		zap.String("source_crs", frame.String()),
	)
	return coll, nil
}

// SourcedFeatures pairs decoded features with the source that describes
// their schema.
type SourcedFeatures struct {
	Source BuildingSource
	Set    *FeatureSet
}

// NormalizeBuildings maps every source onto the canonical building schema,
// reprojects to WGS84, and concatenates the sources in the given order.
// Normalizing the output of BuildingCollection.FeatureSet with
// CanonicalBuildingSource yields an identical collection.
func NormalizeBuildings(parts []SourcedFeatures) (*BuildingCollection, error) {
	coll := &BuildingCollection{}

	for _, part := range parts {
		src := part.Source
		name := src.DisplayName()
		log := zap.L().With(zap.String("component", "dataset.buildings"), zap.String("source", name))

		frame, err := resolveFrame(part.Set, src.AssumedCRS)
		if err != nil {
			return nil, &LoadError{Source: name, Err: err}
		}

		damagedField := src.DamagedField
		if damagedField == "" {
			damagedField = DefaultDamagedField
		}
		pctField := src.DamagePctField
		if pctField == "" {
			pctField = DefaultDamagePctField
		}

		for i, f := range part.Set.Features {
			b := Building{
				Source:   name,
				Ordinal:  len(coll.Records),
				Geometry: reproject(f.Geometry, frame, log, i),
			}

			switch {
			case src.IDField != "" && stringProp(f.Properties, src.IDField) != "":
				b.ID = stringProp(f.Properties, src.IDField)
			case f.ID != "":
				b.ID = f.ID
			default:
				b.ID = fmt.Sprintf("%s:%d", name, i)
			}
			if src.SourceField != "" {
				if s := stringProp(f.Properties, src.SourceField); s != "" {
					b.Source = s
				}
			}

			b.DamagePct = parsePct(f.Properties[pctField], log, i)

			raw, hasFlag := f.Properties[damagedField]
			switch {
			case src.DamageOnly:
				b.Damaged = true
			case hasFlag && raw != nil:
				b.Damaged = parseFlag(raw, log, i)
			default:
				_, b.Damaged = b.ReportablePct()
			}

			coll.Records = append(coll.Records, b)
		}

		coll.Sources = append(coll.Sources, name)
		log.Debug("dataset: building source normalized",
			zap.Int("records", len(part.Set.Features)),
			zap.String("source_crs", frame.String()),
			zap.Bool("damage_only", src.DamageOnly),
		)
	}

	return coll, nil
}

func stringProp(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// parseFlag reads a damaged flag from bool, numeric, or string attributes.
func parseFlag(v any, log *zap.Logger, index int) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "1", "true", "t", "yes", "y", "damaged":
			return true
		case "", "0", "false", "f", "no", "n":
			return false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0
		}
	}
	log.Debug("dataset: unrecognised damaged flag", zap.Int("feature", index), zap.Any("value", v))
	return false
}

// parsePct reads a damage percentage. Fractions in [0,1] are kept as is,
// values in (1,100] are read as percents; anything else is dropped.
func parsePct(v any, log *zap.Logger, index int) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			log.Debug("dataset: unparseable damage percentage", zap.Int("feature", index), zap.String("value", s))
			return nil
		}
		f = parsed
	default:
		log.Debug("dataset: unsupported damage percentage type", zap.Int("feature", index), zap.Any("value", v))
		return nil
	}

	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return nil
	case f > 1 && f <= 100:
		f /= 100
	case f > 100:
		log.Debug("dataset: damage percentage out of range", zap.Int("feature", index), zap.Float64("value", f))
		return nil
	}
	return &f
}
