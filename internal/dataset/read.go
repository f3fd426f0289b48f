package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/muw-verify/verify-cli/internal/crs"
	"github.com/muw-verify/verify-cli/internal/fetcher"
	"github.com/muw-verify/verify-cli/internal/geo"
)

type geojsonCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type geojsonCollection struct {
	Type     string           `json:"type"`
	CRS      *geojsonCRS      `json:"crs"`
	Features []geojsonFeature `json:"features"`
}

type geojsonFeature struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// detectFormat resolves FormatAuto by extension, then by the leading bytes.
func detectFormat(path string, declared Format) (Format, bool, error) {
	switch declared {
	case FormatGeoJSON:
		return FormatGeoJSON, false, nil
	case FormatShapefile:
		zipped, err := isZip(path)
		return FormatShapefile, zipped, err
	case FormatAuto:
	default:
		return "", false, eris.Errorf("dataset: unknown format %q", declared)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FormatGeoJSON, false, nil
	case ".shp":
		return FormatShapefile, false, nil
	case ".zip":
		return FormatShapefile, true, nil
	}

	zipped, err := isZip(path)
	if err != nil {
		return "", false, err
	}
	if zipped {
		return FormatShapefile, true, nil
	}
	return FormatGeoJSON, false, nil
}

func isZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	head, err := bufio.NewReader(f).Peek(4)
	if err != nil {
		// Shorter than a zip header.
		return false, nil
	}
	return bytes.Equal(head, []byte("PK\x03\x04")), nil
}

// readFile decodes a local source file.
func readFile(path string, format Format, tempDir string) (*FeatureSet, error) {
	format, zipped, err := detectFormat(path, format)
	if err != nil {
		return nil, err
	}

	if format == FormatGeoJSON {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: read %s", path)
		}
		return decodeGeoJSON(data)
	}

	if !zipped {
		return readShapefile(path)
	}

	dir, err := os.MkdirTemp(tempDir, "shapefile-*")
	if err != nil {
		return nil, eris.Wrap(err, "dataset: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	shpPath, err := fetcher.ExtractShapefile(path, dir)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: extract shapefile archive")
	}
	return readShapefile(shpPath)
}

// decodeGeoJSON parses a FeatureCollection. A feature whose geometry does not
// decode keeps a nil geometry so the scan can count it; a document that is
// not a FeatureCollection fails as a whole.
func decodeGeoJSON(data []byte) (*FeatureSet, error) {
	var fc geojsonCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "dataset: parse geojson")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("dataset: expected FeatureCollection, got %q", fc.Type)
	}

	set := &FeatureSet{Features: make([]Feature, 0, len(fc.Features))}
	if fc.CRS != nil && fc.CRS.Properties.Name != "" {
		code, err := crs.Parse(fc.CRS.Properties.Name)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: geojson crs member")
		}
		set.CRS = code
	}

	for i, raw := range fc.Features {
		f := Feature{
			ID:         rawID(raw.ID),
			Properties: raw.Properties,
		}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}

		trimmed := bytes.TrimSpace(raw.Geometry)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			var g geom.T
			if err := geojson.Unmarshal(trimmed, &g); err != nil {
				zap.L().Debug("dataset: undecodable geometry",
					zap.Int("feature", i),
					zap.Error(err),
				)
				set.Undecodable++
			} else {
				f.Geometry = g
			}
		}
		set.Features = append(set.Features, f)
	}

	return set, nil
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// readShapefile decodes a .shp with its .dbf attributes and optional .prj.
func readShapefile(shpPath string) (*FeatureSet, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	set := &FeatureSet{}
	code, err := readPrj(shpPath)
	if err != nil {
		return nil, err
	}
	set.CRS = code

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	for reader.Next() {
		n, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		f := Feature{Properties: props}
		if mp := geo.ShapeToMultiPolygon(shape); mp != nil {
			f.Geometry = mp
		} else {
			zap.L().Debug("dataset: shapefile record without polygon geometry", zap.Int("record", n))
			set.Undecodable++
		}
		set.Features = append(set.Features, f)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "dataset: read shapefile %s", shpPath)
	}

	return set, nil
}

// readPrj parses the .prj sidecar next to a .shp. A missing sidecar leaves
// the frame unknown.
func readPrj(shpPath string) (crs.Code, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if err != nil {
			continue
		}
		code, err := crs.ParseWKT(string(data))
		if err != nil {
			return crs.Unknown, eris.Wrap(err, "dataset: shapefile .prj")
		}
		return code, nil
	}
	return crs.Unknown, nil
}
