// Package database stores sensor configuration, registrations and readings in Postgres.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/model"
)

const DefaultRetention = 8 * 24 * time.Hour

type Database struct {
	pool      *pgxpool.Pool
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewDatabase(pool *pgxpool.Pool, opts ...func(*Database)) *Database {
	db := &Database{
		pool:      pool,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    zap.L(),
	}
	for _, o := range opts {
		o(db)
	}
	return db
}

// WithRetention sets how long readings are kept by Cleanup.
func WithRetention(d time.Duration) func(*Database) {
	return func(db *Database) {
		if d > 0 {
			db.retention = d
		}
	}
}

func (db *Database) Close() error {
	if db.pool == nil {
		return nil
	}
	db.pool.Close()
	return nil
}

// GetConfiguration returns every record owning at least one interface in types, with all
// of its interfaces. Records keep the order in which their first row was inserted.
func (db *Database) GetConfiguration(ctx context.Context, types []string) (model.Snapshot, error) {
	const query = `
	SELECT c.path, c.interface, c.properties
	FROM sensor_configuration c
	WHERE c.path IN (SELECT path FROM sensor_configuration WHERE interface = ANY($1))
	ORDER BY c.id;
	`

	rows, err := db.pool.Query(ctx, query, types)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConfiguration(rows)
}

func scanConfiguration(rows pgx.Rows) (model.Snapshot, error) {
	var snapshot model.Snapshot
	index := map[string]int{}
	for rows.Next() {
		var (
			path, iface string
			raw         []byte
		)
		if err := rows.Scan(&path, &iface, &raw); err != nil {
			return nil, err
		}
		var props model.BaseConfigMap
		if err := json.Unmarshal(raw, &props); err != nil {
			return nil, fmt.Errorf("decoding %s %s: %w", path, iface, err)
		}
		i, ok := index[path]
		if !ok {
			i = len(snapshot)
			index[path] = i
			snapshot = append(snapshot, model.Record{Path: path, Data: model.SensorData{}})
		}
		snapshot[i].Data[iface] = props
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// PutConfiguration inserts or replaces one interface of a configuration record.
func (db *Database) PutConfiguration(ctx context.Context, path, iface string, props model.BaseConfigMap) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx, `
	INSERT INTO sensor_configuration (path, interface, properties)
	VALUES ($1, $2, $3)
	ON CONFLICT (path, interface) DO UPDATE SET properties = EXCLUDED.properties, updated_at = now();
	`, path, iface, raw)
	return err
}
