package dataset

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/muw-verify/verify-cli/internal/crs"
)

var (
	lahaina = geom.Coord{-156.6825, 20.8783}
	kula    = geom.Coord{-156.3300, 20.7900}
	offMaui = geom.Coord{-157.9000, 21.3000}
)

const utm4NPrj = `PROJCS["WGS_1984_UTM_Zone_4N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"]]`

// square returns a counter-clockwise WGS84 square centred on c.
func square(c geom.Coord, half float64) *geom.Polygon {
	x, y := c[0], c[1]
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{x - half, y - half}, {x + half, y - half}, {x + half, y + half}, {x - half, y + half}, {x - half, y - half},
	}})
}

func inFrame(t *testing.T, g geom.T, frame crs.Code) geom.T {
	t.Helper()
	if frame == crs.WGS84 {
		return g
	}
	out, err := crs.FromWGS84(g, frame)
	require.NoError(t, err)
	return out
}

type testFeature struct {
	id    any
	geom  geom.T
	props map[string]any
}

// writeGeoJSON writes a FeatureCollection; crsName, when set, becomes the
// collection's "crs" member.
func writeGeoJSON(t *testing.T, dir, name, crsName string, features []testFeature) string {
	t.Helper()

	feats := make([]map[string]any, 0, len(features))
	for _, f := range features {
		var rawGeom json.RawMessage = []byte("null")
		if f.geom != nil {
			b, err := geojson.Marshal(f.geom)
			require.NoError(t, err)
			rawGeom = b
		}
		feat := map[string]any{"type": "Feature", "geometry": rawGeom, "properties": f.props}
		if f.id != nil {
			feat["id"] = f.id
		}
		feats = append(feats, feat)
	}

	doc := map[string]any{"type": "FeatureCollection", "features": feats}
	if crsName != "" {
		doc["crs"] = map[string]any{"type": "name", "properties": map[string]any{"name": crsName}}
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

type shpRecord struct {
	id  string
	pct string
	geo *geom.Polygon
}

// writeShapefile writes a polygon shapefile with BLDG_ID and DMG_PCT
// columns. Geometries are given in the target frame and written clockwise.
func writeShapefile(t *testing.T, dir, name, prj string, records []shpRecord) string {
	t.Helper()

	path := filepath.Join(dir, name+".shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("BLDG_ID", 16),
		shp.StringField("DMG_PCT", 8),
	})

	for _, r := range records {
		flat := r.geo.LinearRing(0).FlatCoords()
		pts := make([]shp.Point, 0, len(flat)/2)
		for i := len(flat) - 2; i >= 0; i -= 2 {
			pts = append(pts, shp.Point{X: flat[i], Y: flat[i+1]})
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{pts}))
		n := w.Write(&poly)
		w.WriteAttribute(int(n), 0, r.id)
		w.WriteAttribute(int(n), 1, r.pct)
	}
	w.Close()
	// go-shp v0.1.1 writes the attribute table to "<base>dbf" (no dot).
	base := filepath.Join(dir, name)
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))

	if prj != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".prj"), []byte(prj), 0o644))
	}
	return path
}

// zipShapefile bundles every sidecar of shpPath into a zip archive.
func zipShapefile(t *testing.T, shpPath, zipPath string) string {
	t.Helper()

	out, err := os.Create(zipPath)
	require.NoError(t, err)
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)
	base := shpPath[:len(shpPath)-len(filepath.Ext(shpPath))]
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		src, err := os.Open(base + ext)
		if os.IsNotExist(err) {
			continue
		}
		require.NoError(t, err)
		entry, err := zw.Create("data/" + filepath.Base(base+ext))
		require.NoError(t, err)
		_, err = io.Copy(entry, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	return zipPath
}

func burnScarFeatures(t *testing.T, frame crs.Code) []testFeature {
	t.Helper()
	return []testFeature{
		{geom: inFrame(t, square(lahaina, 0.02), frame), props: map[string]any{"OBJECTID": 1}},
		{geom: inFrame(t, square(kula, 0.05), frame), props: map[string]any{"OBJECTID": 2}},
	}
}

var mauiRegions = []RegionName{
	{Index: 0, Name: "Lahaina"},
	{Index: 1, Name: "South Maui/Upcountry"},
}
