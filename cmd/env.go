package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/muw-verify/verify-cli/internal/config"
	"github.com/muw-verify/verify-cli/internal/crs"
	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/internal/fetcher"
	"github.com/muw-verify/verify-cli/internal/report"
	"github.com/muw-verify/verify-cli/internal/verify"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

func parseSourceFormat(s string) (dataset.Format, error) {
	switch f := dataset.Format(strings.ToLower(strings.TrimSpace(s))); f {
	case dataset.FormatAuto, "auto":
		return dataset.FormatAuto, nil
	case dataset.FormatGeoJSON, dataset.FormatShapefile:
		return f, nil
	case "shp", "zip":
		return dataset.FormatShapefile, nil
	default:
		return "", eris.Errorf("unknown source format %q", s)
	}
}

func sourceFromConfig(name, uri, format, assumed string) (dataset.Source, error) {
	f, err := parseSourceFormat(format)
	if err != nil {
		return dataset.Source{}, err
	}
	code, err := crs.Parse(assumed)
	if err != nil {
		return dataset.Source{}, err
	}
	return dataset.Source{Name: name, URI: uri, Format: f, AssumedCRS: code}, nil
}

// burnScarSource maps the burn_scar config section onto a dataset source.
func burnScarSource(c config.BurnScarConfig) (dataset.BurnScarSource, error) {
	src, err := sourceFromConfig("burn-scar", c.Source, c.Format, c.AssumedCRS)
	if err != nil {
		return dataset.BurnScarSource{}, eris.Wrap(err, "burn_scar")
	}
	regions := make([]dataset.RegionName, len(c.Regions))
	for i, r := range c.Regions {
		regions[i] = dataset.RegionName{Index: r.Index, Name: r.Name}
	}
	return dataset.BurnScarSource{Source: src, NameField: c.NameField, Regions: regions}, nil
}

// buildingSources maps the buildings config section onto dataset sources,
// keeping their order.
func buildingSources(c config.BuildingsConfig) ([]dataset.BuildingSource, error) {
	out := make([]dataset.BuildingSource, 0, len(c.Sources))
	for i, s := range c.Sources {
		src, err := sourceFromConfig(s.Name, s.URI, s.Format, s.AssumedCRS)
		if err != nil {
			return nil, eris.Wrapf(err, "buildings.sources[%d]", i)
		}
		out = append(out, dataset.BuildingSource{
			Source:         src,
			IDField:        s.IDField,
			SourceField:    s.SourceField,
			DamagedField:   s.DamagedField,
			DamagePctField: s.DamagePctField,
			DamageOnly:     s.DamageOnly,
		})
	}
	return out, nil
}

func newLoader(c *config.Config) *dataset.Loader {
	opts := fetcher.HTTPOptions{
		UserAgent: c.Fetch.UserAgent,
		Timeout:   time.Duration(c.Fetch.TimeoutSecs) * time.Second,
	}
	if c.Fetch.RateLimit > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(c.Fetch.RateLimit), 1)
	}
	loader := dataset.NewLoader(fetcher.NewHTTPFetcher(opts), c.Fetch.TempDir)
	loader.Concurrency = c.Buildings.Concurrency
	return loader
}

// loadDatasets loads both collections concurrently through cache and
// prepares them for verification.
func loadDatasets(ctx context.Context, cache *dataset.Cache, c *config.Config) (*verify.Datasets, error) {
	burnSrc, err := burnScarSource(c.BurnScar)
	if err != nil {
		return nil, err
	}
	buildingSrcs, err := buildingSources(c.Buildings)
	if err != nil {
		return nil, err
	}

	var (
		burn      *dataset.BurnScarCollection
		buildings *dataset.BuildingCollection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		burn, err = cache.BurnScar(gctx, burnSrc)
		return err
	})
	g.Go(func() error {
		var err error
		buildings, err = cache.Buildings(gctx, buildingSrcs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := verify.NewDatasets(burn, buildings, c.BurnScar.Precedence)
	if err != nil {
		return nil, err
	}
	zap.L().Info("datasets ready",
		zap.Strings("precedence", data.Precedence),
		zap.Int("buildings", len(buildings.Records)),
	)
	return data, nil
}

// geocoderPool shares one geocoder, and so one rate limiter, across requests
// that use the configured key. Caller-supplied keys get a client scoped to
// their request, so the pool never grows with the set of keys seen.
type geocoderPool struct {
	cfg config.GeocodeConfig

	mu     sync.Mutex
	shared geocode.Client
}

func newGeocoderPool(c config.GeocodeConfig) *geocoderPool {
	return &geocoderPool{cfg: c}
}

func (p *geocoderPool) Get(key string) geocode.Client {
	if key == "" || key != p.cfg.APIKey {
		return p.newClient(key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shared == nil {
		p.shared = p.newClient(key)
	}
	return p.shared
}

func (p *geocoderPool) newClient(key string) geocode.Client {
	opts := []geocode.Option{
		geocode.WithAPIKey(key),
		geocode.WithRateLimit(p.cfg.RateLimit),
		geocode.WithTimeout(time.Duration(p.cfg.TimeoutSecs) * time.Second),
	}
	if p.cfg.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(p.cfg.UserAgent))
	}
	return geocode.NewClient(opts...)
}

func tileLayers(c config.MapConfig) []report.TileLayer {
	if len(c.TileLayers) == 0 {
		return report.DefaultTileLayers()
	}
	out := make([]report.TileLayer, len(c.TileLayers))
	for i, t := range c.TileLayers {
		out[i] = report.TileLayer{Name: t.Name, URL: t.URL, Attribution: t.Attribution}
	}
	return out
}
