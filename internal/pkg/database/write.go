package database

import (
	"context"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

func (db *Database) Write(ctx context.Context, readings model.Readings) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range readings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sensor_reading (time_stamp, name, kind, value, config_path)
			VALUES ($1, $2, $3, $4, $5)
		`, r.TimeStamp, r.Name, r.Kind.String(), r.Value, r.ConfigPath); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (db *Database) RegisterSensor(info model.SensorInfo) error {
	_, err := db.pool.Exec(context.Background(), `
		INSERT INTO sensor (name, kind, type, device, path, config_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			kind = EXCLUDED.kind,
			type = EXCLUDED.type,
			device = EXCLUDED.device,
			path = EXCLUDED.path,
			config_path = EXCLUDED.config_path,
			registered_at = now();`,
		info.Name, info.Kind.String(), info.Type, info.Device, info.Path, info.ConfigPath)
	return err
}

// LatestReading returns the most recent reading stored for a sensor.
func (db *Database) LatestReading(ctx context.Context, name string) (model.Reading, error) {
	var r model.Reading
	var kind string
	err := db.pool.QueryRow(ctx, `
		SELECT time_stamp, name, kind, value, config_path
		FROM sensor_reading
		WHERE name = $1
		ORDER BY time_stamp DESC
		LIMIT 1;`, name).Scan(&r.TimeStamp, &r.Name, &kind, &r.Value, &r.ConfigPath)
	r.Kind = model.Kind(kind)
	return r, err
}
