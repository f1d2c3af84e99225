// Package configuration holds the configuration records this service matches discovered
// devices against.
package configuration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
	"github.com/anicoll/iio-sensors/internal/pkg/power"
)

var (
	ErrNoMatch           = errors.New("failed to find match")
	ErrMissingName       = errors.New("could not determine configuration name")
	ErrMissingSensorType = errors.New("failed to find the sensor type")
)

// Source fetches a snapshot of every record carrying one of the given type tags.
type Source interface {
	GetConfiguration(ctx context.Context, types []string) (model.Snapshot, error)
}

// Base is the typed part of a base configuration map.
type Base struct {
	Bus        uint64 `mapstructure:"Bus"`
	Address    uint64 `mapstructure:"Address"`
	Name       string `mapstructure:"Name"`
	SensorType string `mapstructure:"SensorType"`
}

// Match is the record found for a discovered device.
type Match struct {
	ConfigPath string
	Type       string
	Base       Base
	Props      model.BaseConfigMap
	Data       model.SensorData
	unset      []string
}

// PollRate is the declared poll rate in seconds, or def when absent or not positive.
func (m Match) PollRate(def float64) float64 {
	raw, ok := m.Props["PollRate"]
	if !ok {
		return def
	}
	rate, err := cast.ToFloat64E(raw)
	if err != nil || rate <= 0 {
		return def
	}
	return rate
}

func (m Match) PowerState() power.State {
	raw, ok := m.Props["PowerState"]
	if !ok {
		return power.Always
	}
	return power.ParseState(cast.ToString(raw))
}

// Labels is the read-permission set. Empty permits every channel.
func (m Match) Labels() []string {
	raw, ok := m.Props["Labels"]
	if !ok {
		return nil
	}
	labels, err := cast.ToStringSliceE(raw)
	if err != nil {
		return nil
	}
	return labels
}

// Index is the configuration snapshot of the last rescan, in source order.
type Index struct {
	records model.Snapshot
	logger  *zap.Logger
}

func NewIndex(opts ...func(*Index)) *Index {
	idx := &Index{logger: zap.L()}
	for _, o := range opts {
		o(idx)
	}
	return idx
}

func WithLogger(l *zap.Logger) func(*Index) {
	return func(idx *Index) {
		idx.logger = l
	}
}

// Refresh replaces the whole index.
func (idx *Index) Refresh(snapshot model.Snapshot) {
	idx.records = slices.Clone(snapshot)
}

func (idx *Index) Len() int {
	return len(idx.records)
}

// Match finds the first record, in source order, whose base configuration declares the
// device's bus and address. Later records declaring the same identity are ignored.
func (idx *Index) Match(dev model.Device) (Match, error) {
	var found Match
	_, ok := lo.Find(idx.records, func(r model.Record) bool {
		m, ok := idx.candidate(r, dev.Identity)
		if ok {
			found = m
		}
		return ok
	})
	if !ok {
		return Match{}, fmt.Errorf("%w for %s", ErrNoMatch, dev.Name)
	}
	if slices.Contains(found.unset, "SensorType") {
		return Match{}, fmt.Errorf("%w for %s", ErrMissingSensorType, dev.Name)
	}
	if found.Base.SensorType != dev.Kind.String() {
		idx.logger.Warn("config sensor type doesn't match sensor type",
			zap.String("config_sensor_type", found.Base.SensorType),
			zap.Stringer("sensor_type", dev.Kind),
			zap.String("path", dev.Path))
	}
	if slices.Contains(found.unset, "Name") {
		return Match{}, fmt.Errorf("%w for %s", ErrMissingName, dev.Name)
	}
	if !Supports(found.Type, dev.Kind) {
		idx.logger.Debug("channel kind not listed for part",
			zap.String("type", found.Type), zap.Stringer("kind", dev.Kind), zap.String("path", dev.Path))
	}
	return found, nil
}

func (idx *Index) candidate(r model.Record, id model.Identity) (Match, bool) {
	typeTag, props, ok := baseConfiguration(r.Data)
	if !ok {
		return Match{}, false
	}
	base, unset, err := decodeBase(props)
	if err != nil {
		idx.logger.Warn("invalid base configuration", zap.String("config_path", r.Path), zap.Error(err))
		return Match{}, false
	}
	if slices.Contains(unset, "Bus") || slices.Contains(unset, "Address") {
		idx.logger.Warn("error finding bus or address in configuration", zap.String("config_path", r.Path))
		return Match{}, false
	}
	if base.Bus != id.Bus || base.Address != id.Address {
		return Match{}, false
	}
	return Match{
		ConfigPath: r.Path,
		Type:       typeTag,
		Base:       base,
		Props:      props,
		Data:       r.Data,
		unset:      unset,
	}, true
}

func decodeBase(props model.BaseConfigMap) (Base, []string, error) {
	var (
		base Base
		md   mapstructure.Metadata
	)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.DecodeHookFuncType(wholeNumber),
		Metadata:   &md,
		Result:     &base,
	})
	if err != nil {
		return Base{}, nil, err
	}
	if err := dec.Decode(map[string]any(props)); err != nil {
		return Base{}, nil, err
	}
	return base, md.Unset, nil
}

// wholeNumber rejects negative or fractional numbers bound for unsigned fields.
func wholeNumber(_, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Uint64 {
		return data, nil
	}
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return data, nil
	}
	if f < 0 || f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not a whole number", f)
	}
	return data, nil
}
