// Package reconciler turns discovered IIO endpoints and configuration records into the
// live sensor table, rebuilding only the sensors a configuration change touched.
package reconciler

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/configuration"
	"github.com/anicoll/iio-sensors/internal/pkg/iio"
	"github.com/anicoll/iio-sensors/internal/pkg/metrics"
	"github.com/anicoll/iio-sensors/internal/pkg/model"
	"github.com/anicoll/iio-sensors/internal/pkg/sensor"
	"github.com/anicoll/iio-sensors/internal/pkg/thresholds"
)

const DefaultPollRate = 0.5

var ErrEmptyScan = errors.New("no iio sensors in system")

type finder interface {
	FindFiles() ([]string, error)
}

type recorder interface {
	DeviceSkipped(reason string)
	SensorConstructed()
	SetSensorCount(n int)
}

// Factory constructs a sensor. The reconciler starts its read loop.
type Factory func(cfg sensor.Config) (Sensor, error)

// Result counts what one rescan pass did.
type Result struct {
	Devices     int
	Constructed int
	Skipped     int
}

type Reconciler struct {
	finder          finder
	index           *configuration.Index
	table           *Table
	factory         Factory
	defaultPollRate float64
	metrics         recorder
	logger          *zap.Logger
}

func New(f finder, index *configuration.Index, table *Table, factory Factory, opts ...func(*Reconciler)) *Reconciler {
	r := &Reconciler{
		finder:          f,
		index:           index,
		table:           table,
		factory:         factory,
		defaultPollRate: DefaultPollRate,
		metrics:         (*metrics.Metrics)(nil),
		logger:          zap.L(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func WithDefaultPollRate(rate float64) func(*Reconciler) {
	return func(r *Reconciler) {
		if rate > 0 {
			r.defaultPollRate = rate
		}
	}
}

func WithMetrics(m recorder) func(*Reconciler) {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithLogger(l *zap.Logger) func(*Reconciler) {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// Rescan runs one pass against a configuration snapshot. A device that cannot be
// resolved, matched or constructed is logged and skipped; it never stops the pass.
func (r *Reconciler) Rescan(snapshot model.Snapshot, mode ScanMode) (Result, error) {
	r.index.Refresh(snapshot)

	paths, err := r.finder.FindFiles()
	if err != nil {
		return Result{}, fmt.Errorf("finding iio devices: %w", err)
	}
	if len(paths) == 0 {
		r.logger.Warn("no iio sensors in system")
		return Result{}, ErrEmptyScan
	}

	res := Result{Devices: len(paths)}
	for _, path := range paths {
		if r.reconcile(path, mode) {
			res.Constructed++
		} else {
			res.Skipped++
		}
	}
	r.metrics.SetSensorCount(r.table.Len())
	return res, nil
}

func (r *Reconciler) reconcile(path string, mode ScanMode) (constructed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while creating sensor", zap.String("path", path), zap.Any("panic", rec))
			r.metrics.DeviceSkipped(metrics.ReasonConstruct)
			constructed = false
		}
	}()

	dev, err := iio.Resolve(path)
	if err != nil {
		r.logger.Warn("found bad device", zap.String("path", path), zap.String("device", dev.Name), zap.Error(err))
		r.metrics.DeviceSkipped(metrics.ReasonIdentity)
		return false
	}

	match, err := r.index.Match(dev)
	if err != nil {
		r.logger.Warn("skipping device", zap.String("path", path), zap.String("device", dev.Name), zap.Error(err))
		if errors.Is(err, configuration.ErrNoMatch) {
			r.metrics.DeviceSkipped(metrics.ReasonNoMatch)
		} else {
			r.metrics.DeviceSkipped(metrics.ReasonMissingField)
		}
		return false
	}

	name := match.Base.Name
	if !r.shouldConstruct(name, mode) {
		r.logger.Debug("sensor unaffected by change", zap.String("sensor", name))
		r.metrics.DeviceSkipped(metrics.ReasonUnchanged)
		return false
	}

	ts, err := thresholds.Parse(match.Data)
	if err != nil {
		r.logger.Warn("error populating thresholds", zap.String("sensor", name), zap.Error(err))
	}

	cfg := sensor.Config{
		Path:       dev.Path,
		Type:       match.Type,
		Identity:   dev.Identity,
		Device:     dev.Name,
		Name:       name,
		Thresholds: ts,
		PollRate:   match.PollRate(r.defaultPollRate),
		ConfigPath: match.ConfigPath,
		PowerState: match.PowerState(),
		Kind:       dev.Kind,
		Labels:     match.Labels(),
	}
	if err := r.table.Replace(name, func() (Sensor, error) {
		s, err := r.factory(cfg)
		if err != nil {
			return nil, err
		}
		s.StartReadLoop()
		return s, nil
	}); err != nil {
		r.logger.Error("failed to create sensor", zap.String("sensor", name), zap.String("path", path), zap.Error(err))
		r.metrics.DeviceSkipped(metrics.ReasonConstruct)
		return false
	}
	r.logger.Info("created sensor", zap.String("sensor", name), zap.String("path", path),
		zap.String("config_path", match.ConfigPath), zap.Stringer("scan_mode", mode))
	r.metrics.SensorConstructed()
	return true
}

// shouldConstruct decides whether a matched sensor is (re)built. A full scan always
// builds. An incremental scan builds sensors it has not seen and rebuilds existing ones
// only when a changed path ends with the sensor's name, consuming that path.
func (r *Reconciler) shouldConstruct(name string, mode ScanMode) bool {
	if mode.IsFull() {
		return true
	}
	existing, ok := r.table.Get(name)
	if !ok {
		return true
	}
	_, ok = mode.Changed().TakeSuffix(existing.Name())
	return ok
}
