// Package server serves the sensor status API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
	"github.com/anicoll/iio-sensors/internal/pkg/reconciler"
)

type sensorTable interface {
	Snapshot() []reconciler.Sensor
	Get(name string) (reconciler.Sensor, bool)
}

type readingStore interface {
	LatestReading(ctx context.Context, name string) (model.Reading, error)
}

type server struct {
	sensors  sensorTable
	readings readingStore
	stream   http.Handler
	mux      *http.ServeMux
	logger   *zap.Logger
}

func New(sensors sensorTable, readings readingStore, gatherer prometheus.Gatherer, opts ...func(*server)) *server {
	s := &server{
		sensors:  sensors,
		readings: readings,
		mux:      http.NewServeMux(),
		logger:   zap.L(),
	}
	for _, o := range opts {
		o(s)
	}
	s.mux.HandleFunc("GET /sensors", s.GetSensors)
	s.mux.HandleFunc("GET /sensors/{name}", s.GetSensor)
	s.mux.HandleFunc("GET /sensors/{name}/reading", s.GetLatestReading)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if s.stream != nil {
		s.mux.Handle("GET /stream", s.stream)
	}
	return s
}

// WithStream serves the live readings websocket on /stream.
func WithStream(h http.Handler) func(*server) {
	return func(s *server) {
		s.stream = h
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *server) GetSensors(w http.ResponseWriter, _ *http.Request) {
	infos := lo.Map(s.sensors.Snapshot(), func(sensor reconciler.Sensor, _ int) model.SensorInfo {
		return sensor.Info()
	})
	writeJSON(w, infos)
}

func (s *server) GetSensor(w http.ResponseWriter, r *http.Request) {
	sensor, ok := s.sensors.Get(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, sensor.Info())
}

func (s *server) GetLatestReading(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.sensors.Get(name); !ok {
		http.NotFound(w, r)
		return
	}
	reading, err := s.readings.LatestReading(r.Context(), name)
	if errors.Is(err, pgx.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("failed to get latest reading", zap.String("sensor", name), zap.Error(err))
		handleError(w, err)
		return
	}
	writeJSON(w, reading)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func handleError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(err.Error()))
}
