// Package power gates sensor reads on the host power state.
package power

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the power condition a sensor requires before it reads.
type State string

func (s State) String() string {
	return string(s)
}

const (
	Always    State = "Always"
	On        State = "On"
	BiosPost  State = "BiosPost"
	ChassisOn State = "ChassisOn"
)

// ParseState maps the PowerState configuration value to a State. Unknown and empty values
// read regardless of power state.
func ParseState(s string) State {
	switch State(s) {
	case On, BiosPost, ChassisOn:
		return State(s)
	default:
		return Always
	}
}

// Monitor tracks host, boot progress and chassis power state as published on MQTT.
type Monitor struct {
	prefix    string
	hostOn    atomic.Bool
	biosPost  atomic.Bool
	chassisOn atomic.Bool
	logger    *zap.Logger
}

func NewMonitor(prefix string) *Monitor {
	return &Monitor{
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: zap.L(),
	}
}

// Topics are the state topics the monitor consumes.
func (m *Monitor) Topics() []string {
	return []string{m.prefix + "/host0", m.prefix + "/os0", m.prefix + "/chassis0"}
}

// Handle applies one state message.
func (m *Monitor) Handle(topic string, payload []byte) {
	value := strings.TrimSpace(string(payload))
	switch strings.TrimPrefix(topic, m.prefix+"/") {
	case "host0":
		on := strings.HasSuffix(value, "Running")
		m.hostOn.Store(on)
		if !on {
			m.biosPost.Store(false)
		}
	case "os0":
		m.biosPost.Store(m.hostOn.Load() && !strings.HasSuffix(value, "Inactive") && !strings.HasSuffix(value, "Standby"))
	case "chassis0":
		m.chassisOn.Store(strings.HasSuffix(value, "On"))
	default:
		return
	}
	m.logger.Debug("power state changed", zap.String("topic", topic), zap.String("state", value))
}

func (m *Monitor) IsPowerOn() bool {
	return m.hostOn.Load()
}

func (m *Monitor) HasBiosPost() bool {
	return m.biosPost.Load()
}

func (m *Monitor) IsChassisOn() bool {
	return m.chassisOn.Load()
}

// Allows reports whether a sensor with the given policy may read now.
func (m *Monitor) Allows(s State) bool {
	switch s {
	case On:
		return m.IsPowerOn()
	case BiosPost:
		return m.IsPowerOn() && m.HasBiosPost()
	case ChassisOn:
		return m.IsChassisOn()
	default:
		return true
	}
}
