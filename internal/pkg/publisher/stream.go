package publisher

import (
	"context"
	"encoding/json"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

type broadcaster interface {
	Broadcast(msg []byte) int
}

// StreamEvent is one message on the live stream.
type StreamEvent struct {
	Type    string            `json:"type"`
	Reading *model.Reading    `json:"reading,omitempty"`
	Sensor  *model.SensorInfo `json:"sensor,omitempty"`
}

const (
	EventReading = "reading"
	EventSensor  = "sensor"
)

// Stream publishes readings and sensor registrations to live websocket clients.
type Stream struct {
	hub broadcaster
}

func NewStream(hub broadcaster) *Stream {
	return &Stream{hub: hub}
}

func (s *Stream) Write(_ context.Context, readings model.Readings) error {
	for i := range readings {
		if err := s.send(StreamEvent{Type: EventReading, Reading: &readings[i]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) RegisterSensor(info model.SensorInfo) error {
	return s.send(StreamEvent{Type: EventSensor, Sensor: &info})
}

func (s *Stream) send(e StreamEvent) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.hub.Broadcast(msg)
	return nil
}
