// Package mqtt publishes sensors to home assistant over MQTT and subscribes to the
// configuration and power state topics.
package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var ErrTimeout = errors.New("mqtt operation timed out")

type Service struct {
	client     paho_mqtt.Client
	mu         sync.Mutex
	configured map[string]struct{}
	logger     *zap.Logger
}

func New(client paho_mqtt.Client) *Service {
	return &Service{
		client:     client,
		configured: map[string]struct{}{},
		logger:     zap.L(),
	}
}

// NewClient builds a paho client for the broker at host, e.g. tcp://localhost:1883.
func NewClient(host, username, password, clientID string) paho_mqtt.Client {
	opts := paho_mqtt.NewClientOptions().
		AddBroker(host).
		SetClientID(clientID).
		SetUsername(username).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
	return paho_mqtt.NewClient(opts)
}

func (s *Service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(time.Second * 5)
	if res {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}

func (s *Service) Disconnect() {
	s.client.Disconnect(250)
}

// Subscribe registers handler for every message on topic. Handlers run on paho's
// goroutines and must not block.
func (s *Service) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := s.client.Subscribe(topic, 1, func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(time.Second * 5) {
		return fmt.Errorf("subscribing to %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.logger.Info("subscribed", zap.String("topic", topic))
	return nil
}
