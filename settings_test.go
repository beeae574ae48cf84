package lfpanels_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/lfpanels"
)

func TestDefaultSettings(t *testing.T) {
	s := lfpanels.DefaultSettings()
	assert.Equal(t, 10, s.IterCount)
	assert.Equal(t, [2]float64{0.5, 0.5}, s.StartingValues)
	assert.False(t, s.RNG || s.EarlyStop || s.Filter || s.SaveError || s.DebugPrints)
	assert.Positive(t, s.Workers)
	require.NoError(t, s.Validate())
}

func TestSettings_Validate(t *testing.T) {
	cases := map[string]func(*lfpanels.Settings){
		"iter_count":     func(s *lfpanels.Settings) { s.IterCount = 0 },
		"workers":        func(s *lfpanels.Settings) { s.Workers = -1 },
		"starting above": func(s *lfpanels.Settings) { s.StartingValues[0] = 1.5 },
		"starting below": func(s *lfpanels.Settings) { s.StartingValues[1] = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := lfpanels.DefaultSettings()
			mutate(&s)
			require.ErrorIs(t, s.Validate(), lfpanels.ErrSettings)
		})
	}
}

func TestSettings_JSONNames(t *testing.T) {
	var s lfpanels.Settings
	require.NoError(t, json.Unmarshal([]byte(`{
		"iter_count": 7,
		"starting_values": [0.2, 0.8],
		"rng": true,
		"early_stop": true,
		"filter": true,
		"save_error": true,
		"debug_prints": true,
		"workers": 3
	}`), &s))
	assert.Equal(t, lfpanels.Settings{
		IterCount:      7,
		StartingValues: [2]float64{0.2, 0.8},
		RNG:            true,
		EarlyStop:      true,
		Filter:         true,
		SaveError:      true,
		DebugPrints:    true,
		Workers:        3,
	}, s)
}
