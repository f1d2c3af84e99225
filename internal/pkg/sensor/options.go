package sensor

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

func WithPublisher(p publisher) func(*IIOSensor) {
	return func(s *IIOSensor) {
		s.publisher = p
	}
}

func WithPowerStatus(p powerStatus) func(*IIOSensor) {
	return func(s *IIOSensor) {
		s.power = p
	}
}

func WithClock(c clock.Clock) func(*IIOSensor) {
	return func(s *IIOSensor) {
		s.clock = c
	}
}

func WithMetrics(m readRecorder) func(*IIOSensor) {
	return func(s *IIOSensor) {
		s.metrics = m
	}
}

func WithLogger(l *zap.Logger) func(*IIOSensor) {
	return func(s *IIOSensor) {
		s.logger = l
	}
}
