// Package report renders verification results and exports the collections
// as GeoJSON layers for a map renderer.
package report

import (
	"fmt"

	"github.com/muw-verify/verify-cli/internal/verify"
)

// Disclaimer qualifies the building damage assessment.
const Disclaimer = "NOTE: Building damage detection and damage levels based on imagery from August 9. " +
	"Further damage may have occurred that is not shown here.\n" +
	"See NOAA website for latest high-res imagery: https://storms.ngs.noaa.gov/storms/2023_hawaii/index.html"

// NotFoundLine is shown when the address could not be geocoded.
const NotFoundLine = "Address not found - check that your formatting is correct."

// Lines returns the human-readable summary of res.
func Lines(res *verify.Result) []string {
	addr := res.Address
	if addr == "" {
		addr = res.Query
	}

	lines := []string{fmt.Sprintf("Found location: %s", addr)}

	if res.InBurnScar() {
		lines = append(lines, fmt.Sprintf("Address %s is inside %s burn scar area", addr, res.BurnScar))
	} else {
		lines = append(lines, fmt.Sprintf("Address %s is NOT inside either burn scar area", addr))
	}

	lines = append(lines, Disclaimer)

	if res.Building == nil {
		lines = append(lines, fmt.Sprintf("Address %s does not match any buildings in building damage detection database", addr))
		return lines
	}
	lines = append(lines, fmt.Sprintf("Address %s matches building in building damage detection database", addr))
	if res.DamagePct != nil {
		lines = append(lines, fmt.Sprintf("Estimated damage level: %f percent", *res.DamagePct*100))
	}
	return lines
}
