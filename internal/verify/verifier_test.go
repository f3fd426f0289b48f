package verify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/muw-verify/verify-cli/internal/dataset"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

func newTestDatasets(t *testing.T) *Datasets {
	t.Helper()
	d, err := NewDatasets(mauiBurnScar(), buildingsFixture(), []string{"South Maui/Upcountry", "Lahaina"})
	require.NoError(t, err)
	return d
}

func TestVerify_InsideLahainaDamagedBuilding(t *testing.T) {
	g := locatedAt(lahainaPt, "123 Example St, Lahaina, HI 96761, USA")
	v := NewVerifier(g, newTestDatasets(t))

	res, err := v.Verify(context.Background(), "123 Example St")
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "123 Example St", res.Query)
	assert.Equal(t, "123 Example St, Lahaina, HI 96761, USA", res.Address)
	assert.Equal(t, lahainaPt, res.Coordinate)
	assert.Equal(t, "Lahaina", res.BurnScar)
	assert.True(t, res.InBurnScar())

	require.NotNil(t, res.Building)
	assert.Equal(t, "lahaina-1", res.Building.Record.ID)
	assert.True(t, res.Building.Damaged())
	require.NotNil(t, res.DamagePct)
	assert.InDelta(t, 0.75, *res.DamagePct, 1e-12)
	assert.Equal(t, 1, g.calls)
}

func TestVerify_OutsideEverything(t *testing.T) {
	v := NewVerifier(locatedAt(honolulu, "Honolulu, HI, USA"), newTestDatasets(t))

	res, err := v.Verify(context.Background(), "123 Example St")
	require.NoError(t, err)
	assert.Empty(t, res.BurnScar)
	assert.False(t, res.InBurnScar())
	assert.Nil(t, res.Building)
	assert.Nil(t, res.DamagePct)
}

func TestVerify_AddressNotFound(t *testing.T) {
	g := &stubGeocoder{err: &geocode.NotFoundError{Address: "zzqx", Reason: "ZERO_RESULTS"}}

	// A Datasets with no index would panic if a containment check ran.
	v := NewVerifier(g, &Datasets{})

	res, err := v.Verify(context.Background(), "zzqx")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, geocode.ErrAddressNotFound))
}

func TestVerify_SessionIDsDiffer(t *testing.T) {
	v := NewVerifier(locatedAt(kulaPt, "Kula, HI"), newTestDatasets(t))

	a, err := v.Verify(context.Background(), "Kula")
	require.NoError(t, err)
	b, err := v.Verify(context.Background(), "Kula")
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, "South Maui/Upcountry", a.BurnScar)
}

func TestNewDatasets(t *testing.T) {
	d := newTestDatasets(t)
	assert.Equal(t, []string{"South Maui/Upcountry", "Lahaina"}, d.Precedence)

	d, err := NewDatasets(mauiBurnScar(), buildingsFixture(), []string{"Lahaina"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lahaina", "South Maui/Upcountry"}, d.Precedence)

	_, err = NewDatasets(mauiBurnScar(), buildingsFixture(), []string{"Wailuku"})
	assert.Error(t, err)

	_, err = NewDatasets(nil, &dataset.BuildingCollection{}, nil)
	assert.Error(t, err)
}

func TestResult_Serializes(t *testing.T) {
	v := NewVerifier(locatedAt(lahainaPt, "123 Example St"), newTestDatasets(t))
	res, err := v.Verify(context.Background(), "123 Example St")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var asJSON map[string]any
	require.NoError(t, json.Unmarshal(data, &asJSON))
	assert.Equal(t, "Lahaina", asJSON["burn_scar"])
	assert.InDelta(t, 0.75, asJSON["damage_pct"], 1e-12)
	building := asJSON["building"].(map[string]any)
	record := building["record"].(map[string]any)
	assert.Equal(t, "lahaina-1", record["id"])

	out, err := yaml.Marshal(res)
	require.NoError(t, err)
	var asYAML map[string]any
	require.NoError(t, yaml.Unmarshal(out, &asYAML))
	assert.Equal(t, "Lahaina", asYAML["burn_scar"])
	assert.Equal(t, "123 Example St", asYAML["address"])
}
