package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/muw-verify/verify-cli/internal/config"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

const (
	lahainaLon = -156.6825
	lahainaLat = 20.8783
	kulaLon    = -156.33
	kulaLat    = 20.79
)

func ring(minX, minY, maxX, maxY float64) string {
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%f,%f],[%f,%f],[%f,%f],[%f,%f],[%f,%f]]]}`,
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY)
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// testConfig writes a two-region burn scar and a two-record building source
// in WGS84 and returns a config pointing at them.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	burn := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","properties":{},"geometry":` + ring(-156.72, 20.84, -156.60, 20.92) + `},` +
		`{"type":"Feature","properties":{},"geometry":` + ring(-156.40, 20.70, -156.20, 20.90) + `}]}`
	buildings := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","id":"b1","properties":{"damaged":1,"damage_pct":75},"geometry":` + ring(lahainaLon-0.0005, lahainaLat-0.0005, lahainaLon+0.0005, lahainaLat+0.0005) + `},` +
		`{"type":"Feature","id":"b2","properties":{"damaged":0},"geometry":` + ring(-156.30, 20.80, -156.29, 20.81) + `}]}`

	cfg := &config.Config{}
	cfg.BurnScar.Source = writeFile(t, dir, "burn.geojson", burn)
	cfg.BurnScar.Regions = []config.RegionConfig{{Index: 0, Name: "Lahaina"}, {Index: 1, Name: "South Maui/Upcountry"}}
	cfg.BurnScar.Precedence = []string{"South Maui/Upcountry", "Lahaina"}
	cfg.Buildings.Sources = []config.BuildingSourceConfig{{
		Name: "detections",
		URI:  writeFile(t, dir, "buildings.geojson", buildings),
	}}
	cfg.Buildings.Concurrency = 2
	cfg.Fetch.TempDir = dir
	return cfg
}

type stubGeocoder struct {
	lon, lat float64
	address  string
	err      error
}

func (s stubGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &geocode.Result{Latitude: s.lat, Longitude: s.lon, Address: s.address, Source: "google"}, nil
}

func decodeJSON(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(s)).Decode(&out))
	return out
}
