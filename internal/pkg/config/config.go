// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"INFO"`
	IIORoot           string        `env:"IIO_ROOT" envDefault:"/sys/bus/iio/devices"`
	RescanQuietPeriod time.Duration `env:"RESCAN_QUIET_PERIOD" envDefault:"1s"`
	DefaultPollRate   float64       `env:"DEFAULT_POLL_RATE" envDefault:"0.5"`
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8000"`
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	MigrationsFolder  string        `env:"MIGRATIONS_FOLDER"`
	ReadingRetention  time.Duration `env:"READING_RETENTION" envDefault:"192h"`
	CleanupSchedule   string        `env:"CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
	MqttCfg           MqttConfig
}

type MqttConfig struct {
	Host            string `env:"MQTT_HOST"`
	Username        string `env:"MQTT_USER"`
	Password        string `env:"MQTT_PASS"`
	ClientID        string `env:"MQTT_CLIENT_ID" envDefault:"iio-sensors"`
	InventoryTopic  string `env:"INVENTORY_TOPIC" envDefault:"xyz/openbmc_project/inventory"`
	PowerStateTopic string `env:"POWER_STATE_TOPIC" envDefault:"xyz/openbmc_project/state"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
