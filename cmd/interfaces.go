package cmd

import (
	"context"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

// Store is what run expects from the database: the configuration source, a readings
// sink and retention cleanup.
type Store interface {
	GetConfiguration(ctx context.Context, types []string) (model.Snapshot, error)
	Write(ctx context.Context, readings model.Readings) error
	RegisterSensor(info model.SensorInfo) error
	LatestReading(ctx context.Context, name string) (model.Reading, error)
	Cleanup(ctx context.Context) error
}

// Broker is what run expects from the MQTT service.
type Broker interface {
	Write(ctx context.Context, readings model.Readings) error
	RegisterSensor(info model.SensorInfo) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}
