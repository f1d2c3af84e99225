// Package sensor polls one IIO value endpoint and publishes its raw readings.
package sensor

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/iio"
	"github.com/anicoll/iio-sensors/internal/pkg/model"
	"github.com/anicoll/iio-sensors/internal/pkg/power"
)

const (
	publishTimeout  = 5 * time.Second
	defaultInterval = 500 * time.Millisecond
)

type publisher interface {
	PublishReadings(ctx context.Context, readings model.Readings) error
	RegisterSensor(info model.SensorInfo) error
}

type powerStatus interface {
	Allows(state power.State) bool
}

type readRecorder interface {
	ReadFailed(sensor string)
}

// Config is everything a sensor is constructed from.
type Config struct {
	Path       string
	Type       string
	Identity   model.Identity
	Device     string
	Name       string
	Thresholds []model.Threshold
	PollRate   float64 // seconds
	ConfigPath string
	PowerState power.State
	Kind       model.Kind
	Labels     []string
}

type IIOSensor struct {
	cfg       Config
	publisher publisher
	power     powerStatus
	clock     clock.Clock
	metrics   readRecorder
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, opts ...func(*IIOSensor)) *IIOSensor {
	s := &IIOSensor{
		cfg:    cfg,
		clock:  clock.New(),
		logger: zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(zap.String("sensor", cfg.Name))
	return s
}

// Open constructs a sensor after checking its value file is readable.
func Open(cfg Config, opts ...func(*IIOSensor)) (*IIOSensor, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Name, err)
	}
	_ = f.Close()
	return New(cfg, opts...), nil
}

func (s *IIOSensor) Name() string {
	return s.cfg.Name
}

func (s *IIOSensor) Info() model.SensorInfo {
	return model.SensorInfo{
		Name:       s.cfg.Name,
		Kind:       s.cfg.Kind,
		Type:       s.cfg.Type,
		Path:       s.cfg.Path,
		Device:     s.cfg.Device,
		ConfigPath: s.cfg.ConfigPath,
		PollRate:   s.cfg.PollRate,
		PowerState: s.cfg.PowerState.String(),
		Thresholds: s.cfg.Thresholds,
	}
}

func (s *IIOSensor) interval() time.Duration {
	d := time.Duration(s.cfg.PollRate * float64(time.Second))
	if d <= 0 {
		return defaultInterval
	}
	return d
}

// permitted reports whether the Labels read-permission set allows this channel.
func (s *IIOSensor) permitted() bool {
	return len(s.cfg.Labels) == 0 || slices.Contains(s.cfg.Labels, iio.ChannelLabel(s.cfg.Path))
}

// StartReadLoop registers the sensor with the publisher and starts polling. Calling it on
// a running sensor does nothing.
func (s *IIOSensor) StartReadLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if s.publisher != nil {
		if err := s.publisher.RegisterSensor(s.Info()); err != nil {
			s.logger.Error("failed to register sensor", zap.Error(err))
		}
	}
	if !s.permitted() {
		s.logger.Info("channel not in permitted labels, not reading", zap.Strings("labels", s.cfg.Labels), zap.String("path", s.cfg.Path))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.readLoop(ctx, s.done)
}

func (s *IIOSensor) readLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := s.clock.Ticker(s.interval())
	defer ticker.Stop()

	s.read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.read(ctx)
		}
	}
}

func (s *IIOSensor) read(ctx context.Context) {
	if !s.permitted() {
		return
	}
	if s.power != nil && !s.power.Allows(s.cfg.PowerState) {
		s.logger.Debug("power state does not allow read", zap.Stringer("power_state", s.cfg.PowerState))
		return
	}
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		s.readFailed(err)
		return
	}
	value := strings.TrimSpace(string(data))
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		s.readFailed(err)
		return
	}
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishReadings(ctx, model.Readings{{
		TimeStamp:  s.clock.Now(),
		Name:       s.cfg.Name,
		Kind:       s.cfg.Kind,
		Value:      value,
		ConfigPath: s.cfg.ConfigPath,
	}}); err != nil {
		s.logger.Error("failed to publish reading", zap.Error(err))
	}
}

func (s *IIOSensor) readFailed(err error) {
	s.logger.Warn("failed to read sensor", zap.String("path", s.cfg.Path), zap.Error(err))
	if s.metrics != nil {
		s.metrics.ReadFailed(s.cfg.Name)
	}
}

// Close stops the read loop and waits for it to exit.
func (s *IIOSensor) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
