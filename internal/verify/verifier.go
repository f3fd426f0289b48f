package verify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

// Datasets holds the loaded collections a Verifier checks against. It is
// read-only and safe to share between requests.
type Datasets struct {
	BurnScar  *dataset.BurnScarCollection
	Buildings *dataset.BuildingCollection
	// Precedence is the resolved region check order, by name.
	Precedence []string

	order []int
	index *BuildingIndex
}

// NewDatasets validates precedence against burn and indexes buildings.
func NewDatasets(burn *dataset.BurnScarCollection, buildings *dataset.BuildingCollection, precedence []string) (*Datasets, error) {
	if burn == nil || buildings == nil {
		return nil, eris.New("verify: both collections are required")
	}
	order, err := RegionOrder(burn, precedence)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(order))
	for i, idx := range order {
		names[i] = burn.Regions[idx].Name
	}

	return &Datasets{
		BurnScar:   burn,
		Buildings:  buildings,
		Precedence: names,
		order:      order,
		index:      NewBuildingIndex(buildings),
	}, nil
}

// Classification is the outcome of checking one point.
type Classification struct {
	// BurnScar is the matched region name, or "" for none.
	BurnScar string `json:"burn_scar" yaml:"burn_scar"`
	// Building is the matched record, or nil for none.
	Building *BuildingMatch `json:"building" yaml:"building"`
	// DamagePct is the matched record's damage fraction when positive.
	DamagePct *float64 `json:"damage_pct,omitempty" yaml:"damage_pct,omitempty"`

	BurnScarStats ScanStats `json:"burn_scar_stats" yaml:"burn_scar_stats"`
	BuildingStats ScanStats `json:"building_stats" yaml:"building_stats"`
}

// InBurnScar reports whether a region matched.
func (c Classification) InBurnScar() bool { return c.BurnScar != "" }

// Classify checks pt against both collections.
func (d *Datasets) Classify(pt Coordinate) Classification {
	var out Classification
	out.BurnScar, out.BurnScarStats = classifyBurnScar(pt, d.BurnScar, d.order)
	out.Building, out.BuildingStats = d.index.Match(pt)
	if out.Building != nil {
		if pct, ok := out.Building.DamagePct(); ok {
			out.DamagePct = &pct
		}
	}
	return out
}

// Result is the outcome of one verification request.
type Result struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	// Query is the address as typed.
	Query string `json:"query" yaml:"query"`
	// Address is the provider's canonical address.
	Address    string          `json:"address" yaml:"address"`
	Coordinate Coordinate      `json:"coordinate" yaml:"coordinate"`
	Location   *geocode.Result `json:"location" yaml:"location"`
	Classification `yaml:",inline"`
}

// Verifier geocodes addresses and classifies them against a Datasets.
type Verifier struct {
	geocoder geocode.Client
	data     *Datasets
}

// NewVerifier creates a Verifier. The geocoder carries the caller's
// credentials.
func NewVerifier(g geocode.Client, data *Datasets) *Verifier {
	return &Verifier{geocoder: g, data: data}
}

// Datasets returns the collections the verifier checks against.
func (v *Verifier) Datasets() *Datasets {
	return v.data
}

// Verify geocodes address and classifies the resulting point. When the
// address cannot be resolved the geocoder's error is returned, satisfying
// errors.Is(err, geocode.ErrAddressNotFound), and no containment check runs.
func (v *Verifier) Verify(ctx context.Context, address string) (*Result, error) {
	sessionID := uuid.NewString()
	log := zap.L().With(
		zap.String("component", "verify"),
		zap.String("session_id", sessionID),
	)
	start := time.Now()

	loc, err := v.geocoder.Geocode(ctx, address)
	if err != nil {
		log.Info("verify: address not resolved", zap.String("address", address), zap.Error(err))
		return nil, err
	}

	pt := Coordinate{Lon: loc.Longitude, Lat: loc.Latitude}
	res := &Result{
		SessionID:      sessionID,
		Query:          address,
		Address:        loc.Address,
		Coordinate:     pt,
		Location:       loc,
		Classification: v.data.Classify(pt),
	}

	if res.BurnScarStats.Skipped > 0 {
		log.Warn("verify: burn-scar regions with malformed geometry skipped", zap.Int("skipped", res.BurnScarStats.Skipped))
	}
	if res.Building != nil && res.Building.OverlapCount > 0 {
		log.Warn("verify: point lies in overlapping building footprints; first in load order wins",
			zap.String("building_id", res.Building.Record.ID),
			zap.Int("overlap_count", res.Building.OverlapCount),
		)
	}

	log.Info("verify: address classified",
		zap.String("address", res.Address),
		zap.Float64("lon", pt.Lon),
		zap.Float64("lat", pt.Lat),
		zap.String("burn_scar", res.BurnScar),
		zap.Bool("building_match", res.Building != nil),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
