// Package metrics exposes prometheus collectors for discovery and reconciliation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ReasonIdentity     = "identity_unparseable"
	ReasonNoMatch      = "match_not_found"
	ReasonMissingField = "required_field_missing"
	ReasonUnchanged    = "unchanged"
	ReasonConstruct    = "construct_failed"
)

// Metrics is safe to use as a nil pointer, in which case nothing is recorded.
type Metrics struct {
	rescans       *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	constructed   prometheus.Counter
	sensors       prometheus.Gauge
	readErrors    *prometheus.CounterVec
	notifications prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rescans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iio_rescans_total",
			Help: "Rescan passes by scan mode and result.",
		}, []string{"mode", "result"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iio_devices_skipped_total",
			Help: "Discovered devices not turned into a sensor during a rescan.",
		}, []string{"reason"}),
		constructed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iio_sensors_constructed_total",
			Help: "Sensors constructed or replaced.",
		}),
		sensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iio_sensors",
			Help: "Sensors currently in the sensor table.",
		}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iio_sensor_read_errors_total",
			Help: "Failed reads of a sensor value file.",
		}, []string{"sensor"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iio_config_notifications_total",
			Help: "Configuration change notifications received.",
		}),
	}
	reg.MustRegister(m.rescans, m.skipped, m.constructed, m.sensors, m.readErrors, m.notifications)
	return m
}

func (m *Metrics) RescanCompleted(mode, result string) {
	if m == nil {
		return
	}
	m.rescans.WithLabelValues(mode, result).Inc()
}

func (m *Metrics) DeviceSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SensorConstructed() {
	if m == nil {
		return
	}
	m.constructed.Inc()
}

func (m *Metrics) SetSensorCount(n int) {
	if m == nil {
		return
	}
	m.sensors.Set(float64(n))
}

func (m *Metrics) ReadFailed(sensor string) {
	if m == nil {
		return
	}
	m.readErrors.WithLabelValues(sensor).Inc()
}

func (m *Metrics) NotificationReceived() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}
