package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
	PlaceID          string `json:"place_id"`
}

// geocodeGoogle geocodes a single address using the Google Geocoding API.
// Every failure is returned as a *NotFoundError.
func (g *geocoder) geocodeGoogle(ctx context.Context, address string) (*Result, error) {
	if g.apiKey == "" {
		return nil, notFound(address, "api key not configured", nil)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, notFound(address, "rate limit", eris.Wrap(err, "geocode: google rate limit"))
	}

	params := url.Values{
		"address": {address},
		"key":     {g.apiKey},
	}

	reqURL := googleGeocodeURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, notFound(address, "bad request", eris.Wrap(err, "geocode: google build request"))
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, notFound(address, "provider unreachable", eris.Wrap(transportCause(err), "geocode: google request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, notFound(address, "provider error", eris.Errorf("geocode: google returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, notFound(address, "provider error", eris.Wrap(err, "geocode: google read body"))
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, notFound(address, "provider error", eris.Wrap(err, "geocode: google parse response"))
	}

	if googleResp.Status != "OK" || len(googleResp.Results) == 0 {
		zap.L().Debug("geocode: google returned no match",
			zap.String("status", googleResp.Status),
			zap.String("error_message", googleResp.ErrorMessage),
		)
		var cause error
		if googleResp.ErrorMessage != "" {
			cause = eris.New(googleResp.ErrorMessage)
		}
		status := googleResp.Status
		if status == "" {
			status = "ZERO_RESULTS"
		}
		return nil, notFound(address, status, cause)
	}

	result := googleResp.Results[0]
	formatted := result.FormattedAddress
	if formatted == "" {
		formatted = address
	}
	return &Result{
		Latitude:  result.Geometry.Location.Lat,
		Longitude: result.Geometry.Location.Lng,
		Address:   formatted,
		Quality:   googleLocationTypeToQuality(result.Geometry.LocationType),
		Source:    "google",
		PlaceID:   result.PlaceID,
	}, nil
}

// transportCause strips the request URL, which carries the API key, from a
// client error.
func transportCause(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// googleLocationTypeToQuality maps Google's location_type to our quality taxonomy.
func googleLocationTypeToQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	case "APPROXIMATE":
		return "approximate"
	default:
		return "approximate"
	}
}
