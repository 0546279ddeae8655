package leaderboard

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettingsNilBlob(t *testing.T) {
	lb := &Leaderboard{}
	s, err := lb.ParseSettings()
	require.NoError(t, err)
	assert.Nil(t, s.EmployeeWeight)
	assert.Nil(t, s.SalesWeight)
}

func TestParseSettingsFull(t *testing.T) {
	raw := `{"employee_weight": "0.6", "sales_weight": "0.4", "display_count": 10, "update_cadence": "hourly"}`
	lb := &Leaderboard{Settings: &raw}

	s, err := lb.ParseSettings()
	require.NoError(t, err)

	require.NotNil(t, s.EmployeeWeight)
	assert.True(t, s.EmployeeWeight.Equal(decimal.RequireFromString("0.6")))
	require.NotNil(t, s.DisplayCount)
	assert.Equal(t, 10, *s.DisplayCount)
	require.NotNil(t, s.UpdateCadence)
	assert.Equal(t, "hourly", *s.UpdateCadence)
}

func TestParseSettingsCorrupt(t *testing.T) {
	raw := `{"employee_weight": }`
	lb := &Leaderboard{Settings: &raw}
	_, err := lb.ParseSettings()
	require.Error(t, err)
}

func TestMixedWeightsDefaults(t *testing.T) {
	s := &SettingsData{}
	ew, sw := s.MixedWeights()

	half := decimal.New(5, -1)
	assert.True(t, ew.Equal(half))
	assert.True(t, sw.Equal(half))
}

func TestMixedWeightsConfigured(t *testing.T) {
	ew := decimal.RequireFromString("0.8")
	s := &SettingsData{EmployeeWeight: &ew}

	gotEW, gotSW := s.MixedWeights()
	assert.True(t, gotEW.Equal(ew))
	// Unset side still defaults.
	assert.True(t, gotSW.Equal(decimal.New(5, -1)))
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType(TypeEmployee))
	assert.True(t, ValidType(TypeSales))
	assert.True(t, ValidType(TypeMixed))
	assert.False(t, ValidType(Type("global")))
}
