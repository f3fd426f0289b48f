package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// shapefileMembers are the sidecar extensions a shapefile reader consults.
var shapefileMembers = map[string]bool{
	".shp": true,
	".shx": true,
	".dbf": true,
	".prj": true,
	".cpg": true,
}

// ExtractShapefile unpacks the shapefile members of a zipped dataset into
// destDir and returns the path of the first .shp in archive order. Other
// entries, and anything under a macOS resource-fork directory, are skipped.
func ExtractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var shpPath string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isShapefileMember(f.Name) {
			continue
		}
		path, err := extractMember(f, destDir)
		if err != nil {
			return "", err
		}
		if shpPath == "" && strings.EqualFold(filepath.Ext(path), ".shp") {
			shpPath = path
		}
	}

	if shpPath == "" {
		return "", eris.Errorf("zip: no .shp file in %s", filepath.Base(zipPath))
	}
	return shpPath, nil
}

func isShapefileMember(name string) bool {
	if strings.Contains(filepath.ToSlash(name), "__MACOSX/") {
		return false
	}
	return shapefileMembers[strings.ToLower(filepath.Ext(name))]
}

// extractMember writes f under destDir, refusing names that escape it.
func extractMember(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	return destPath, nil
}
