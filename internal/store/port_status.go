package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"charging-queue-backend/internal/model"
)

// UpsertPortStatus applies a hardware-reported status, last-write-wins.
// Hardware is authoritative and single-threaded per port, so the write
// is applied unconditionally even if its timestamp is not newer than
// the stored one. Unknown stations and ports get metadata rows created
// on first sight.
func (s *gormStore) UpsertPortStatus(ctx context.Context, status model.PortStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		station := model.Station{
			ID:   status.StationID,
			Name: fmt.Sprintf("station-%d", status.StationID),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&station).Error; err != nil {
			return fmt.Errorf("failed to upsert station %d: %w", status.StationID, err)
		}

		port := model.ChargingPort{
			ID:        status.PortID,
			StationID: status.StationID,
			Label:     fmt.Sprintf("port-%d", status.PortID),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&port).Error; err != nil {
			return fmt.Errorf("failed to upsert port %d: %w", status.PortID, err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "station_id"}, {Name: "port_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "event", "updated_at"}),
		}).Create(&status).Error; err != nil {
			return fmt.Errorf("failed to upsert status for port %d: %w", status.PortID, err)
		}
		return nil
	})
}

// PortSnapshot returns the latest known status of every port at a
// station, keyed by port id. This is the polling fallback for clients
// that cannot hold a live stream.
func (s *gormStore) PortSnapshot(ctx context.Context, stationID int64) (map[int64]model.PortStatus, error) {
	var rows []model.PortStatus
	if err := s.db.WithContext(ctx).Where("station_id = ?", stationID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read port snapshot for station %d: %w", stationID, err)
	}
	snapshot := make(map[int64]model.PortStatus, len(rows))
	for _, r := range rows {
		snapshot[r.PortID] = r
	}
	return snapshot, nil
}
