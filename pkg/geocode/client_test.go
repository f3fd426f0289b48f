package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Defaults(t *testing.T) {
	g, ok := NewClient().(*geocoder)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, g.timeout)
	assert.Equal(t, "MUW-Verify", g.userAgent)
	assert.Empty(t, g.apiKey)
	assert.NotNil(t, g.limiter)
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{}
	g := NewClient(
		WithAPIKey("k"),
		WithHTTPClient(hc),
		WithTimeout(3*time.Second),
		WithRateLimit(0),
		WithUserAgent("verify-test"),
	).(*geocoder)

	assert.Equal(t, "k", g.apiKey)
	assert.Same(t, hc, g.httpClient)
	assert.Equal(t, 3*time.Second, g.timeout)
	assert.Equal(t, "verify-test", g.userAgent)
	assert.True(t, g.limiter.Allow())
}

func TestGeocode_NormalizesAddress(t *testing.T) {
	var got string
	g := newGoogleStub(t, http.StatusOK, lahainaOK, func(r *http.Request) {
		got = r.URL.Query().Get("address")
	})

	// Lahaina spelled with combining macrons.
	_, err := g.Geocode(context.Background(), "  123  Front St,\tLa\u0304haina\u0304 ")
	require.NoError(t, err)
	assert.Equal(t, "123 Front St, L\u0101hain\u0101", got)
}

func TestGeocode_EmptyAddress(t *testing.T) {
	var calls atomic.Int32
	g := newGoogleStub(t, http.StatusOK, lahainaOK, func(*http.Request) { calls.Add(1) })

	_, err := g.Geocode(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrAddressNotFound)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGeocode_NoRetry(t *testing.T) {
	var calls atomic.Int32
	g := newGoogleStub(t, http.StatusServiceUnavailable, ``, func(*http.Request) { calls.Add(1) })

	_, err := g.Geocode(context.Background(), "123 Front St")
	assert.ErrorIs(t, err, ErrAddressNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	g := &geocoder{
		httpClient: newRewriteClient(srv.URL, googleGeocodeURL),
		apiKey:     "test-key",
		limiter:    newTestLimiter(),
		timeout:    50 * time.Millisecond,
	}

	start := time.Now()
	_, err := g.Geocode(context.Background(), "123 Front St")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAddressNotFound))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"123 Example St", "123 Example St"},
		{"  123\n Example\tSt  ", "123 Example St"},
		{"Ka\u0304anapali", "K\u0101anapali"},
		{"\u02bbUlupalakua", "\u02bbUlupalakua"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeAddress(tt.in), "input=%q", tt.in)
	}
}

func TestNotFoundError(t *testing.T) {
	cause := errors.New("boom")
	err := error(notFound("addr", "provider error", cause))

	assert.ErrorIs(t, err, ErrAddressNotFound)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `geocode: address not found: "addr" (provider error): boom`, err.Error())
	assert.Equal(t, `geocode: address not found: "" (empty address)`, notFound("", "empty address", nil).Error())
}
