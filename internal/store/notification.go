package store

import (
	"context"
	"fmt"
	"time"

	"charging-queue-backend/internal/model"
)

// CreateNotification persists a new notification row.
func (s *gormStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification for user %s: %w", n.UserID, err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *gormStore) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %s: %w", userID, err)
	}
	return rows, nil
}

// MarkNotificationRead flips the read flag. The user id is part of the
// predicate so a user can only touch their own rows.
func (s *gormStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeNotificationsBefore deletes notifications created before the
// cutoff and returns the number of rows removed.
func (s *gormStore) PurgeNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}
