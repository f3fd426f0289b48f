// Package geocode resolves free-text addresses to WGS84 coordinates using the
// Google Geocoding API.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

// ErrAddressNotFound matches every geocoding failure: no result, provider
// error, rejected credentials, or an unreachable provider.
var ErrAddressNotFound = errors.New("geocode: address not found")

// NotFoundError describes why an address could not be resolved.
type NotFoundError struct {
	Address string
	// Reason is the provider status, or a short local cause.
	Reason string
	Err    error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("geocode: address not found: %q (%s)", e.Address, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAddressNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrAddressNotFound }

func notFound(address, reason string, err error) *NotFoundError {
	return &NotFoundError{Address: address, Reason: reason, Err: err}
}

// Client geocodes a single address.
type Client interface {
	// Geocode resolves address. Failures satisfy errors.Is(err, ErrAddressNotFound).
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	// Address is the provider's canonical formatted address.
	Address string `json:"address" yaml:"address"`
	Quality string `json:"quality" yaml:"quality"` // "rooftop", "range", "centroid", "approximate"
	Source  string `json:"source" yaml:"source"`
	PlaceID string `json:"place_id,omitempty" yaml:"place_id,omitempty"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithAPIKey sets the Google Geocoding API key.
func WithAPIKey(key string) Option {
	return func(g *geocoder) {
		g.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for provider calls.
// A non-positive value disables limiting.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithTimeout bounds each Geocode call.
func WithTimeout(d time.Duration) Option {
	return func(g *geocoder) {
		g.timeout = d
	}
}

// WithUserAgent sets the User-Agent header on provider requests.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) {
		g.userAgent = ua
	}
}

type geocoder struct {
	httpClient *http.Client
	apiKey     string
	limiter    *rate.Limiter
	timeout    time.Duration
	userAgent  string
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(10, 10),
		timeout:    10 * time.Second,
		userAgent:  "MUW-Verify",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode resolves address with a single provider call. There is no retry.
func (g *geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	address = NormalizeAddress(address)
	if address == "" {
		return nil, notFound(address, "empty address", nil)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	return g.geocodeGoogle(ctx, address)
}

// NormalizeAddress applies Unicode NFC, so precomposed and combining forms
// of Hawaiian diacritics compare equal, and collapses runs of whitespace.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(norm.NFC.String(address)), " ")
}
