// Package thresholds reads threshold definitions out of a configuration record.
package thresholds

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

const (
	LevelWarning  = "warning"
	LevelCritical = "critical"

	DirectionLow  = "low"
	DirectionHigh = "high"
)

var ErrInvalidThreshold = errors.New("invalid threshold")

// Parse returns every threshold it can read from interfaces whose name contains
// "Thresholds", in interface name order. Definitions that cannot be read are skipped and
// reported in the returned error, so a non-nil error may come with a partial result.
func Parse(data model.SensorData) ([]model.Threshold, error) {
	var (
		out  []model.Threshold
		errs error
	)
	for _, iface := range slices.Sorted(maps.Keys(data)) {
		if !strings.Contains(iface, "Thresholds") {
			continue
		}
		t, err := parseOne(data[iface])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", iface, err))
			continue
		}
		out = append(out, t)
	}
	return out, errs
}

func parseOne(props model.BaseConfigMap) (model.Threshold, error) {
	rawSeverity, ok := props["Severity"]
	if !ok {
		return model.Threshold{}, fmt.Errorf("%w: missing Severity", ErrInvalidThreshold)
	}
	rawDirection, ok := props["Direction"]
	if !ok {
		return model.Threshold{}, fmt.Errorf("%w: missing Direction", ErrInvalidThreshold)
	}
	rawValue, ok := props["Value"]
	if !ok {
		return model.Threshold{}, fmt.Errorf("%w: missing Value", ErrInvalidThreshold)
	}

	severity, err := cast.ToIntE(rawSeverity)
	if err != nil {
		return model.Threshold{}, fmt.Errorf("%w: Severity: %w", ErrInvalidThreshold, err)
	}
	var level string
	switch severity {
	case 0:
		level = LevelWarning
	case 1:
		level = LevelCritical
	default:
		return model.Threshold{}, fmt.Errorf("%w: unsupported Severity %d", ErrInvalidThreshold, severity)
	}

	direction, err := cast.ToStringE(rawDirection)
	if err != nil {
		return model.Threshold{}, fmt.Errorf("%w: Direction: %w", ErrInvalidThreshold, err)
	}
	switch direction {
	case "less than":
		direction = DirectionLow
	case "greater than":
		direction = DirectionHigh
	default:
		return model.Threshold{}, fmt.Errorf("%w: unsupported Direction %q", ErrInvalidThreshold, direction)
	}

	value, err := cast.ToFloat64E(rawValue)
	if err != nil {
		return model.Threshold{}, fmt.Errorf("%w: Value: %w", ErrInvalidThreshold, err)
	}

	t := model.Threshold{
		Level:     level,
		Direction: direction,
		Value:     value,
	}
	if h, ok := props["Hysteresis"]; ok {
		if t.Hysteresis, err = cast.ToFloat64E(h); err != nil {
			return model.Threshold{}, fmt.Errorf("%w: Hysteresis: %w", ErrInvalidThreshold, err)
		}
	}
	return t, nil
}
