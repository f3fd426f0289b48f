package dataset

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/muw-verify/verify-cli/internal/crs"
)

// Format identifies a source encoding.
type Format string

// Supported formats. FormatAuto picks by extension, then by content.
const (
	FormatAuto      Format = ""
	FormatGeoJSON   Format = "geojson"
	FormatShapefile Format = "shapefile"
)

// Source locates one geometry collection.
type Source struct {
	// Name identifies the source in logs and records; defaults to the URI base name.
	Name string `json:"name"`
	// URI is a local path or an http(s) URL.
	URI    string `json:"uri"`
	Format Format `json:"format"`
	// AssumedCRS is applied when the source does not declare a frame, or
	// declares WGS84 while carrying projected coordinates.
	AssumedCRS crs.Code `json:"assumed_crs"`
}

// DisplayName returns Name, or the last path element of URI.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return path.Base(strings.TrimRight(s.URI, "/"))
}

// RegionName assigns a name to the burn-scar feature at Index.
type RegionName struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// BurnScarSource is a Source holding named burn-scar regions.
type BurnScarSource struct {
	Source
	// NameField, if set, is the attribute holding each region's name. It wins
	// over Regions for features that carry a non-empty value.
	NameField string       `json:"name_field"`
	Regions   []RegionName `json:"regions"`
}

// Key identifies the source for caching.
func (s BurnScarSource) Key() string {
	b, _ := json.Marshal(s)
	return "burn_scar:" + string(b)
}

// BuildingSource is a Source holding building footprints, with the column
// mapping needed to reach the canonical schema.
type BuildingSource struct {
	Source
	IDField string `json:"id_field"`
	// SourceField names an attribute carrying the originating source name.
	SourceField    string `json:"source_field"`
	DamagedField   string `json:"damaged_field"`
	DamagePctField string `json:"damage_pct_field"`
	// DamageOnly marks a dataset that lists damaged buildings only; every
	// record gets damaged=true.
	DamageOnly bool `json:"damage_only"`
}

// CanonicalBuildingSource describes a collection already in canonical form,
// as produced by BuildingCollection.FeatureSet.
func CanonicalBuildingSource(name string) BuildingSource {
	return BuildingSource{
		Source:         Source{Name: name, AssumedCRS: crs.WGS84},
		IDField:        PropID,
		SourceField:    PropSource,
		DamagedField:   PropDamaged,
		DamagePctField: PropDamagePct,
	}
}

func buildingKey(srcs []BuildingSource) string {
	b, _ := json.Marshal(srcs)
	return "buildings:" + string(b)
}
