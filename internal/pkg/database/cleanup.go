package database

import (
	"context"

	"go.uber.org/zap"
)

// Cleanup removes readings older than the retention period.
func (db *Database) Cleanup(ctx context.Context) error {
	tag, err := db.pool.Exec(ctx, "DELETE FROM sensor_reading WHERE time_stamp < $1", db.now().Add(-db.retention))
	if err != nil {
		return err
	}
	db.logger.Info("cleaned up sensor readings", zap.Int64("deleted", tag.RowsAffected()))
	return nil
}
