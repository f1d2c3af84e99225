package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

const discoveryPrefix = "homeassistant/sensor"

func (s *Service) Write(ctx context.Context, readings model.Readings) error {
	for _, r := range readings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.PublishReading(r); err != nil {
			return err
		}
	}
	return nil
}

// RegisterSensor publishes the discovery config once per sensor and the sensor info on every
// call, so a rebuilt sensor replaces its retained attributes.
func (s *Service) RegisterSensor(info model.SensorInfo) error {
	id := sensorSlug(info.Name)
	s.mu.Lock()
	_, configured := s.configured[id]
	s.mu.Unlock()

	if !configured {
		config, err := json.Marshal(defaultRegisterMsg(info))
		if err != nil {
			return err
		}
		if err := s.publishRetained(fmt.Sprintf("%s/%s/config", discoveryPrefix, id), config); err != nil {
			return fmt.Errorf("registering %s: %w", info.Name, err)
		}
		s.mu.Lock()
		s.configured[id] = struct{}{}
		s.mu.Unlock()
	}

	attributes, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := s.publishRetained(fmt.Sprintf("%s/%s/attributes", discoveryPrefix, id), attributes); err != nil {
		return fmt.Errorf("registering %s: %w", info.Name, err)
	}
	return nil
}

func (s *Service) publishRetained(topic string, payload []byte) error {
	token := s.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(time.Second * 5) {
		return ErrTimeout
	}
	return token.Error()
}

func (s *Service) PublishReading(r model.Reading) error {
	topic := fmt.Sprintf("%s/%s/state", discoveryPrefix, sensorSlug(r.Name))
	payload, err := json.Marshal(map[string]string{
		"value":     r.Value,
		"timestamp": r.TimeStamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(time.Second * 10) {
		return fmt.Errorf("publishing %s: %w", r.Name, ErrTimeout)
	}
	return token.Error()
}

func sensorSlug(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "_")
}

func defaultRegisterMsg(info model.SensorInfo) model.RegisterMessage {
	id := sensorSlug(info.Name)
	template := "{{ value_json.value }}"
	if scale := info.Kind.Scale(); scale != 1 {
		template = fmt.Sprintf("{{ (value_json.value | float) / %d }}", scale)
	}
	return model.RegisterMessage{
		Tilda:               fmt.Sprintf("%s/%s", discoveryPrefix, id),
		Name:                info.Name,
		ID:                  "iio_" + id,
		StateTopic:          "~/state",
		ValueTemplate:       template,
		DeviceClass:         info.Kind.String(),
		UnitOfMeasurement:   info.Kind.Unit(),
		JSONAttributesTopic: "~/attributes",
		Device: model.RegisterDevice{
			Name:         info.Device,
			Identifiers:  []string{info.Device},
			Model:        info.Type,
			Manufacturer: "IIO",
		},
	}
}
