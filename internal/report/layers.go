package report

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/internal/verify"
)

// Layer names used by the map renderer.
const (
	LayerBurnScar         = "Burn scar"
	LayerDamagedBuildings = "Damaged buildings"
	LayerIntactBuildings  = "Intact buildings"
	LayerMarker           = "Verification address"
)

// TileLayer is a raster basemap a renderer may offer.
type TileLayer struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	URL         string `json:"url" yaml:"url" mapstructure:"url"`
	Attribution string `json:"attribution" yaml:"attribution" mapstructure:"attribution"`
}

// DefaultTileLayers are the before and after imagery of the 2023 Maui fires.
func DefaultTileLayers() []TileLayer {
	return []TileLayer{
		{
			Name:        "Google Satellite Layer (before)",
			URL:         "http://mt0.google.com/vt/lyrs=y&hl=en&x={x}&y={y}&z={z}",
			Attribution: "Google Maps",
		},
		{
			Name:        "Maxar post-fire August 9",
			URL:         "https://geospatialvisualizer.z13.web.core.windows.net/tiles/10300100EB592000_tiles/{z}/{x}/{y}.png",
			Attribution: "Maxar",
		},
		{
			Name:        "SkySat post-fire August 9",
			URL:         "https://geospatialvisualizer.z13.web.core.windows.net/tiles/skysat_maui_8_10_2023_rgb_tiles/{z}/{x}/{y}.png",
			Attribution: "SkySat",
		},
	}
}

// BurnScarLayer exports every region with its name and precedence rank.
// Regions without geometry are left out.
func BurnScarLayer(coll *dataset.BurnScarCollection, precedence []string) *geojson.FeatureCollection {
	rank := make(map[string]int, len(precedence))
	for i, name := range precedence {
		rank[name] = i
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(coll.Regions))}
	for _, r := range coll.Regions {
		if r.Geometry == nil {
			continue
		}
		props := map[string]any{
			dataset.PropName: r.Name,
			"ordinal":        r.Ordinal,
			"layer":          LayerBurnScar,
		}
		if i, ok := rank[r.Name]; ok {
			props["precedence"] = i
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   r.Geometry,
			Properties: props,
		})
	}
	return fc
}

// BuildingLayer exports the records whose damaged flag equals damaged, with
// canonical properties.
func BuildingLayer(coll *dataset.BuildingCollection, damaged bool) *geojson.FeatureCollection {
	name := LayerIntactBuildings
	if damaged {
		name = LayerDamagedBuildings
	}

	records := coll.Filter(damaged)
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(records))}
	for _, b := range records {
		if b.Geometry == nil {
			continue
		}
		props := b.Properties()
		props["layer"] = name
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         b.ID,
			Geometry:   b.Geometry,
			Properties: props,
		})
	}
	return fc
}

// MarkerLayer exports the verified point with its classification.
func MarkerLayer(res *verify.Result) *geojson.FeatureCollection {
	pt := geom.NewPointFlat(geom.XY, []float64{res.Coordinate.Lon, res.Coordinate.Lat}).SetSRID(4326)

	props := map[string]any{
		"layer":     LayerMarker,
		"address":   res.Address,
		"burn_scar": res.BurnScar,
	}
	if res.Building != nil {
		props["building_id"] = res.Building.Record.ID
		props[dataset.PropDamaged] = res.Building.Damaged()
	}
	if res.DamagePct != nil {
		props[dataset.PropDamagePct] = *res.DamagePct
	}

	return &geojson.FeatureCollection{Features: []*geojson.Feature{{
		ID:         res.SessionID,
		Geometry:   pt,
		Properties: props,
	}}}
}
