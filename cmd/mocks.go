package cmd

import (
	"context"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

// MockStore is a mock implementation of the Store interface.
type MockStore struct {
	GetConfigurationFunc func(ctx context.Context, types []string) (model.Snapshot, error)
	WriteFunc            func(ctx context.Context, readings model.Readings) error
	RegisterSensorFunc   func(info model.SensorInfo) error
	LatestReadingFunc    func(ctx context.Context, name string) (model.Reading, error)
	CleanupFunc          func(ctx context.Context) error
}

func (m *MockStore) GetConfiguration(ctx context.Context, types []string) (model.Snapshot, error) {
	if m.GetConfigurationFunc != nil {
		return m.GetConfigurationFunc(ctx, types)
	}
	return nil, nil
}

func (m *MockStore) Write(ctx context.Context, readings model.Readings) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, readings)
	}
	return nil
}

func (m *MockStore) RegisterSensor(info model.SensorInfo) error {
	if m.RegisterSensorFunc != nil {
		return m.RegisterSensorFunc(info)
	}
	return nil
}

func (m *MockStore) LatestReading(ctx context.Context, name string) (model.Reading, error) {
	if m.LatestReadingFunc != nil {
		return m.LatestReadingFunc(ctx, name)
	}
	return model.Reading{}, nil
}

func (m *MockStore) Cleanup(ctx context.Context) error {
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx)
	}
	return nil
}

// MockBroker is a mock implementation of the Broker interface.
type MockBroker struct {
	WriteFunc          func(ctx context.Context, readings model.Readings) error
	RegisterSensorFunc func(info model.SensorInfo) error
	SubscribeFunc      func(topic string, handler func(topic string, payload []byte)) error
}

func (m *MockBroker) Write(ctx context.Context, readings model.Readings) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, readings)
	}
	return nil
}

func (m *MockBroker) RegisterSensor(info model.SensorInfo) error {
	if m.RegisterSensorFunc != nil {
		return m.RegisterSensorFunc(info)
	}
	return nil
}

func (m *MockBroker) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(topic, handler)
	}
	return nil
}
