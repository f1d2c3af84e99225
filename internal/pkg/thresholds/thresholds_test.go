package thresholds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

const base = "xyz.openbmc_project.Configuration.DPS310"

func TestParse(t *testing.T) {
	data := model.SensorData{
		base: {"Name": "Ambient", "Bus": uint64(7)},
		base + ".Thresholds0": {
			"Severity":  uint64(1),
			"Direction": "greater than",
			"Value":     float64(80),
		},
		base + ".Thresholds1": {
			"Severity":   float64(0),
			"Direction":  "less than",
			"Value":      "5.5",
			"Hysteresis": 1,
		},
	}

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []model.Threshold{
		{Level: LevelCritical, Direction: DirectionHigh, Value: 80},
		{Level: LevelWarning, Direction: DirectionLow, Value: 5.5, Hysteresis: 1},
	}, got)
}

func TestParse_PartialFailure(t *testing.T) {
	data := model.SensorData{
		base + ".Thresholds0": {"Severity": 0, "Direction": "greater than", "Value": 40.0},
		base + ".Thresholds1": {"Severity": 0, "Direction": "sideways", "Value": 1.0},
		base + ".Thresholds2": {"Direction": "less than", "Value": 1.0},
		base + ".Thresholds3": {"Severity": 7, "Direction": "less than", "Value": 1.0},
	}

	got, err := Parse(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
	assert.Len(t, multierr.Errors(err), 3)
	assert.Equal(t, []model.Threshold{{Level: LevelWarning, Direction: DirectionHigh, Value: 40}}, got)
}

func TestParse_NoThresholds(t *testing.T) {
	got, err := Parse(model.SensorData{base: {"Name": "x"}})
	assert.NoError(t, err)
	assert.Empty(t, got)
}
