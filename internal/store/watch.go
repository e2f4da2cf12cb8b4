package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"charging-queue-backend/internal/model"
)

// ErrNotFound is returned when a targeted row does not exist.
var ErrNotFound = errors.New("record not found")

// UpsertWatch creates or reactivates a one-shot availability watch for
// a (station, user) pair, refreshing the push keys.
func (s *gormStore) UpsertWatch(ctx context.Context, w *model.AvailabilityWatch) error {
	w.Active = true
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "station_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"endpoint", "p256dh", "auth", "active"}),
	}).Create(w).Error
	if err != nil {
		return fmt.Errorf("failed to upsert watch for user %s: %w", w.UserID, err)
	}
	return nil
}

// ActiveWatches returns the station's active one-shot watches.
func (s *gormStore) ActiveWatches(ctx context.Context, stationID int64) ([]model.AvailabilityWatch, error) {
	var watches []model.AvailabilityWatch
	err := s.db.WithContext(ctx).
		Where("station_id = ? AND active = ?", stationID, true).
		Find(&watches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query watches for station %d: %w", stationID, err)
	}
	return watches, nil
}

// DeactivateWatch marks a watch as delivered. One notification per
// watch; re-watching requires a new subscribe call.
func (s *gormStore) DeactivateWatch(ctx context.Context, id int64, now time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&model.AvailabilityWatch{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "notified_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate watch %d: %w", id, err)
	}
	return nil
}

// DeleteWatchByEndpoint removes all watches bound to a push endpoint,
// used both for explicit unsubscribes and expired (HTTP 410) endpoints.
func (s *gormStore) DeleteWatchByEndpoint(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&model.AvailabilityWatch{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete watches for endpoint: %w", err)
	}
	return nil
}
