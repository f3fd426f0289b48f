package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/internal/geo"
	"github.com/muw-verify/verify-cli/internal/verify"
)

var datasetsYAML bool

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Load the burn-scar and building collections and report what was read",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("datasets"); err != nil {
			return err
		}

		data, err := loadDatasets(cmd.Context(), dataset.NewCache(newLoader(cfg)), cfg)
		if err != nil {
			return err
		}

		return writeDatasetSummary(cmd.OutOrStdout(), summarizeDatasets(data), datasetsYAML)
	},
}

type boundsSummary struct {
	MinLon float64 `yaml:"min_lon"`
	MinLat float64 `yaml:"min_lat"`
	MaxLon float64 `yaml:"max_lon"`
	MaxLat float64 `yaml:"max_lat"`
}

type regionSummary struct {
	Name    string `yaml:"name"`
	Ordinal int    `yaml:"ordinal"`
	Valid   bool   `yaml:"valid"`
}

type datasetSummary struct {
	BurnScar struct {
		Source     string          `yaml:"source"`
		SourceCRS  string          `yaml:"source_crs"`
		Precedence []string        `yaml:"precedence"`
		Regions    []regionSummary `yaml:"regions"`
		Skipped    int             `yaml:"skipped"`
		Bounds     *boundsSummary  `yaml:"bounds,omitempty"`
	} `yaml:"burn_scar"`
	Buildings struct {
		Sources []string       `yaml:"sources"`
		Records int            `yaml:"records"`
		Damaged int            `yaml:"damaged"`
		Skipped int            `yaml:"skipped"`
		Bounds  *boundsSummary `yaml:"bounds,omitempty"`
	} `yaml:"buildings"`
}

func summarizeDatasets(data *verify.Datasets) datasetSummary {
	var s datasetSummary

	burn := data.BurnScar
	s.BurnScar.Source = burn.Source
	s.BurnScar.SourceCRS = burn.SourceCRS.String()
	s.BurnScar.Precedence = data.Precedence
	bounds := geom.NewBounds(geom.XY)
	for _, r := range burn.Regions {
		valid := geo.Validate(r.Geometry) == nil
		if valid {
			bounds.Extend(r.Geometry)
		} else {
			s.BurnScar.Skipped++
		}
		s.BurnScar.Regions = append(s.BurnScar.Regions, regionSummary{Name: r.Name, Ordinal: r.Ordinal, Valid: valid})
	}
	s.BurnScar.Bounds = summarizeBounds(bounds)

	buildings := data.Buildings
	s.Buildings.Sources = buildings.Sources
	s.Buildings.Records = len(buildings.Records)
	bounds = geom.NewBounds(geom.XY)
	for _, b := range buildings.Records {
		if b.Damaged {
			s.Buildings.Damaged++
		}
		if geo.Validate(b.Geometry) != nil {
			s.Buildings.Skipped++
			continue
		}
		bounds.Extend(b.Geometry)
	}
	s.Buildings.Bounds = summarizeBounds(bounds)

	return s
}

func summarizeBounds(b *geom.Bounds) *boundsSummary {
	if b.IsEmpty() {
		return nil
	}
	return &boundsSummary{MinLon: b.Min(0), MinLat: b.Min(1), MaxLon: b.Max(0), MaxLat: b.Max(1)}
}

func writeDatasetSummary(w io.Writer, s datasetSummary, asYAML bool) error {
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(w, "Burn scar: %s (%s)\n", s.BurnScar.Source, s.BurnScar.SourceCRS)
	for _, r := range s.BurnScar.Regions {
		state := "ok"
		if !r.Valid {
			state = "skipped"
		}
		fmt.Fprintf(w, "  region %d: %s [%s]\n", r.Ordinal, r.Name, state)
	}
	fmt.Fprintf(w, "  precedence: %v\n", s.BurnScar.Precedence)
	writeBounds(w, s.BurnScar.Bounds)

	fmt.Fprintf(w, "Buildings: %d records from %v\n", s.Buildings.Records, s.Buildings.Sources)
	fmt.Fprintf(w, "  damaged: %d\n", s.Buildings.Damaged)
	fmt.Fprintf(w, "  skipped: %d\n", s.Buildings.Skipped)
	writeBounds(w, s.Buildings.Bounds)
	return nil
}

func writeBounds(w io.Writer, b *boundsSummary) {
	if b == nil {
		fmt.Fprintln(w, "  bounds: none")
		return
	}
	fmt.Fprintf(w, "  bounds: %.6f,%.6f %.6f,%.6f\n", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

func init() {
	datasetsCmd.Flags().BoolVar(&datasetsYAML, "yaml", false, "print the summary as YAML")
	rootCmd.AddCommand(datasetsCmd)
}
