// Package dataset loads burn-scar and building-damage polygon collections
// from GeoJSON or shapefile sources, reconciles their reference frames and
// column schemas, and returns canonical collections in WGS84.
package dataset

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/muw-verify/verify-cli/internal/crs"
)

// Canonical building property names used when a normalized collection is
// exported back to features.
const (
	PropID        = "id"
	PropSource    = "source"
	PropDamaged   = "damaged"
	PropDamagePct = "damage_pct"
	PropName      = "name"
)

// Feature is one decoded record: a geometry in the source frame plus its
// attribute row.
type Feature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

// FeatureSet is the raw content of one source.
type FeatureSet struct {
	// CRS is the frame the source declares, or crs.Unknown when unlabeled.
	CRS      crs.Code
	Features []Feature
	// Undecodable counts features whose geometry could not be parsed. They
	// are kept with a nil geometry.
	Undecodable int
}

// Region is one named burn-scar polygon.
type Region struct {
	Name string `json:"name" yaml:"name"`
	// Ordinal is the position of the region in its source file.
	Ordinal    int            `json:"ordinal" yaml:"ordinal"`
	Geometry   geom.T         `json:"-" yaml:"-"`
	Properties map[string]any `json:"-" yaml:"-"`
}

// BurnScarCollection holds burn-scar regions in source order, in WGS84.
// It is read-only once loaded.
type BurnScarCollection struct {
	Source    string
	SourceCRS crs.Code
	Regions   []Region
}

// Region returns the region with the given name.
func (c *BurnScarCollection) Region(name string) (Region, bool) {
	for _, r := range c.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Names returns region names in source order.
func (c *BurnScarCollection) Names() []string {
	names := make([]string, len(c.Regions))
	for i, r := range c.Regions {
		names[i] = r.Name
	}
	return names
}

// Building is one normalized building footprint.
type Building struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	// Ordinal is the load-order position across all merged sources.
	Ordinal  int    `json:"ordinal" yaml:"ordinal"`
	Geometry geom.T `json:"-" yaml:"-"`
	Damaged  bool   `json:"damaged" yaml:"damaged"`
	// DamagePct is a fraction in [0,1]; nil when the source has none.
	DamagePct *float64 `json:"damage_pct,omitempty" yaml:"damage_pct,omitempty"`
}

// ReportablePct returns the damage percentage when one was provided and is
// greater than zero.
func (b Building) ReportablePct() (float64, bool) {
	if b.DamagePct == nil || *b.DamagePct <= 0 {
		return 0, false
	}
	return *b.DamagePct, true
}

// Properties returns the canonical attribute row for the building.
func (b Building) Properties() map[string]any {
	props := map[string]any{
		PropID:      b.ID,
		PropSource:  b.Source,
		PropDamaged: b.Damaged,
	}
	if b.DamagePct != nil {
		props[PropDamagePct] = *b.DamagePct
	}
	return props
}

// BuildingCollection is the union of all building-damage sources in load
// order, in WGS84. It is read-only once loaded.
type BuildingCollection struct {
	Sources []string
	Records []Building
}

// Filter returns the records whose damaged flag equals damaged.
func (c *BuildingCollection) Filter(damaged bool) []Building {
	var out []Building
	for _, b := range c.Records {
		if b.Damaged == damaged {
			out = append(out, b)
		}
	}
	return out
}

// FeatureSet exports the collection with canonical property names so it can
// be normalized again.
func (c *BuildingCollection) FeatureSet() *FeatureSet {
	set := &FeatureSet{CRS: crs.WGS84, Features: make([]Feature, 0, len(c.Records))}
	for _, b := range c.Records {
		set.Features = append(set.Features, Feature{
			ID:         b.ID,
			Geometry:   b.Geometry,
			Properties: b.Properties(),
		})
	}
	return set
}

// LoadError reports a required source that could not be fetched or parsed.
// It is fatal for the verification session.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dataset: load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
