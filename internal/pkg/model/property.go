package model

import "time"

type Reading struct {
	TimeStamp  time.Time `json:"timestamp"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Value      string    `json:"value"`
	ConfigPath string    `json:"config_path"`
}
type Readings []Reading

type Threshold struct {
	Level      string  `json:"level"`
	Direction  string  `json:"direction"`
	Value      float64 `json:"value"`
	Hysteresis float64 `json:"hysteresis"`
}

// SensorInfo describes a constructed sensor to publishers and the status API.
type SensorInfo struct {
	Name       string      `json:"name"`
	Kind       Kind        `json:"kind"`
	Type       string      `json:"type"`
	Path       string      `json:"path"`
	Device     string      `json:"device"`
	ConfigPath string      `json:"config_path"`
	PollRate   float64     `json:"poll_rate"`
	PowerState string      `json:"power_state"`
	Thresholds []Threshold `json:"thresholds"`
}
