// Package publisher fans sensor readings and registrations out to every registered sink.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

var ErrAlreadyRegistered = errors.New("publisher already registered")

type Publisher interface {
	// Write publishes readings that changed since the previous write.
	Write(ctx context.Context, readings model.Readings) error
	RegisterSensor(info model.SensorInfo) error
}

type Registry struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
	last       sync.Map
	logger     *zap.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		publishers: map[string]Publisher{},
		logger:     zap.L(),
	}
}

func (r *Registry) RegisterPublisher(name string, p Publisher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.publishers[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.publishers[name] = p
	return nil
}

// PublishReadings drops readings whose value is unchanged and writes the rest to every
// publisher. A failing publisher does not stop the others.
func (r *Registry) PublishReadings(ctx context.Context, readings model.Readings) error {
	data := make(model.Readings, 0, len(readings))
	for _, reading := range readings {
		if !r.shouldUpdate(reading.Name, reading.Value) {
			continue
		}
		data = append(data, reading)
	}
	if len(data) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs error
	for name, p := range r.publishers {
		if err := p.Write(ctx, data); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publisher %s: %w", name, err))
			continue
		}
		r.logger.Debug("updated sensors", zap.Int("count", len(data)), zap.String("publisher", name))
	}
	return errs
}

func (r *Registry) RegisterSensor(info model.SensorInfo) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs error
	for name, p := range r.publishers {
		if err := p.RegisterSensor(info); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publisher %s: %w", name, err))
			continue
		}
		r.logger.Debug("registered sensor", zap.String("sensor", info.Name), zap.String("publisher", name))
	}
	// a re-registered sensor publishes its next reading even if the value is unchanged
	r.last.Delete(info.Name)
	return errs
}

func (r *Registry) shouldUpdate(name, value string) bool {
	old, exists := r.last.Load(name)
	if exists && strings.EqualFold(value, old.(string)) {
		return false
	}
	if !exists {
		r.logger.Info("configured sensor", zap.String("sensor", name), zap.String("value", value))
	}
	r.last.Store(name, value)
	return true
}
