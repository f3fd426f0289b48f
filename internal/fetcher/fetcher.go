// Package fetcher materialises geometry-collection sources, local paths or
// HTTP(S) links, as local files the dataset readers can open.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// IsRemote reports whether uri is an http or https URL.
func IsRemote(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// DriveDirectURL rewrites a Google Drive share link of the form
// https://drive.google.com/file/d/<id>/view?... into the direct download
// form https://drive.google.com/uc?id=<id>. Other URIs are returned as is.
func DriveDirectURL(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || !strings.EqualFold(u.Host, "drive.google.com") {
		return uri
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "file" && parts[i+1] == "d" && parts[i+2] != "" {
			return "https://drive.google.com/uc?id=" + url.QueryEscape(parts[i+2])
		}
	}
	return uri
}

// Localize returns a local path for uri. Local paths are checked and
// returned unchanged with a no-op cleanup. Remote URIs are downloaded into a
// fresh directory under tempDir; cleanup removes it.
func Localize(ctx context.Context, f Fetcher, uri, tempDir string) (string, func(), error) {
	noop := func() {}

	if !IsRemote(uri) {
		path := strings.TrimPrefix(uri, "file://")
		if _, err := os.Stat(path); err != nil {
			return "", noop, eris.Wrapf(err, "fetcher: stat %s", path)
		}
		return path, noop, nil
	}

	if f == nil {
		return "", noop, eris.Errorf("fetcher: no fetcher configured for %s", uri)
	}

	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return "", noop, eris.Wrap(err, "fetcher: create temp dir")
		}
	}
	dir, err := os.MkdirTemp(tempDir, "source-*")
	if err != nil {
		return "", noop, eris.Wrap(err, "fetcher: create download dir")
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			zap.L().Debug("fetcher: cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}

	direct := DriveDirectURL(uri)
	dest := filepath.Join(dir, downloadName(direct))
	n, err := f.DownloadToFile(ctx, direct, dest)
	if err != nil {
		cleanup()
		return "", noop, eris.Wrapf(err, "fetcher: download %s", direct)
	}

	zap.L().Debug("fetcher: downloaded source",
		zap.String("url", direct),
		zap.Int64("bytes", n),
	)
	return dest, cleanup, nil
}

// downloadName derives a file name from the URL path, falling back to a
// generic name when the path has none (for example Drive "uc" links).
func downloadName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	base := filepath.Base(u.Path)
	if base == "." || base == "/" || base == "" || filepath.Ext(base) == "" {
		return "download"
	}
	return base
}
