package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"charging-queue-backend/internal/model"
)

// ActiveQueueEntry returns the user's waiting or notified entry for a
// station, or nil if none exists.
func (s *gormStore) ActiveQueueEntry(ctx context.Context, stationID int64, userID string) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := s.db.WithContext(ctx).
		Where("station_id = ? AND user_id = ? AND status IN ?",
			stationID, userID, []model.QueueState{model.QueueWaiting, model.QueueNotified}).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active entry for user %s: %w", userID, err)
	}
	return &entry, nil
}

// WaitingQueueEntries returns a station's waiting entries ordered by
// position.
func (s *gormStore) WaitingQueueEntries(ctx context.Context, stationID int64) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.db.WithContext(ctx).
		Where("station_id = ? AND status = ?", stationID, model.QueueWaiting).
		Order("position ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query waiting entries for station %d: %w", stationID, err)
	}
	return entries, nil
}

// ActiveQueueEntries returns a station's waiting and notified entries,
// waiting first in position order, for the admin listing.
func (s *gormStore) ActiveQueueEntries(ctx context.Context, stationID int64) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.db.WithContext(ctx).
		Where("station_id = ? AND status IN ?",
			stationID, []model.QueueState{model.QueueWaiting, model.QueueNotified}).
		Order("status DESC, position ASC"). // "waiting" sorts after "notified"
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active entries for station %d: %w", stationID, err)
	}
	return entries, nil
}

// AppendQueueEntry persists a freshly joined entry.
func (s *gormStore) AppendQueueEntry(ctx context.Context, entry *model.QueueEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create queue entry for user %s: %w", entry.UserID, err)
	}
	return nil
}

// SaveQueueEntry persists an in-place state transition of one entry.
func (s *gormStore) SaveQueueEntry(ctx context.Context, entry *model.QueueEntry) error {
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("failed to save queue entry %d: %w", entry.ID, err)
	}
	return nil
}

// SaveEntryAndRepack persists an entry that left the waiting set
// (completed or notified) together with the re-packed positions of the
// remaining waiting entries, in one transaction. Queue correctness
// cannot be approximated, so any failure here must fail the caller.
func (s *gormStore) SaveEntryAndRepack(ctx context.Context, entry *model.QueueEntry, remaining []model.QueueEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(entry).Error; err != nil {
			return fmt.Errorf("failed to save queue entry %d: %w", entry.ID, err)
		}
		for i := range remaining {
			if err := tx.Model(&model.QueueEntry{}).
				Where("id = ?", remaining[i].ID).
				Update("position", remaining[i].Position).Error; err != nil {
				return fmt.Errorf("failed to update position of entry %d: %w", remaining[i].ID, err)
			}
		}
		return nil
	})
}

// ExpireOverdueEntries flips notified entries whose claim window has
// passed to expired and returns the affected rows.
func (s *gormStore) ExpireOverdueEntries(ctx context.Context, now time.Time) ([]model.QueueEntry, error) {
	var overdue []model.QueueEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", model.QueueNotified, now).
			Find(&overdue).Error; err != nil {
			return fmt.Errorf("failed to query overdue entries: %w", err)
		}
		for i := range overdue {
			overdue[i].Status = model.QueueExpired
			// Status guard: an entry completed between the read and
			// this write must stay completed.
			if err := tx.Model(&model.QueueEntry{}).
				Where("id = ? AND status = ?", overdue[i].ID, model.QueueNotified).
				Update("status", model.QueueExpired).Error; err != nil {
				return fmt.Errorf("failed to expire entry %d: %w", overdue[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return overdue, nil
}
