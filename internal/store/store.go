package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"charging-queue-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Port status
	UpsertPortStatus(ctx context.Context, status model.PortStatus) error
	PortSnapshot(ctx context.Context, stationID int64) (map[int64]model.PortStatus, error)

	// Stations
	ListStations(ctx context.Context) ([]model.Station, error)

	// Queue. Only the queue coordinator calls the mutating methods.
	ActiveQueueEntry(ctx context.Context, stationID int64, userID string) (*model.QueueEntry, error)
	WaitingQueueEntries(ctx context.Context, stationID int64) ([]model.QueueEntry, error)
	ActiveQueueEntries(ctx context.Context, stationID int64) ([]model.QueueEntry, error)
	AppendQueueEntry(ctx context.Context, entry *model.QueueEntry) error
	SaveQueueEntry(ctx context.Context, entry *model.QueueEntry) error
	SaveEntryAndRepack(ctx context.Context, entry *model.QueueEntry, remaining []model.QueueEntry) error
	ExpireOverdueEntries(ctx context.Context, now time.Time) ([]model.QueueEntry, error)

	// Notifications
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	PurgeNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Availability watches
	UpsertWatch(ctx context.Context, w *model.AvailabilityWatch) error
	ActiveWatches(ctx context.Context, stationID int64) ([]model.AvailabilityWatch, error)
	DeactivateWatch(ctx context.Context, id int64, now time.Time) error
	DeleteWatchByEndpoint(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying gorm handle for read-only query helpers.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListStations returns all stations with their ports preloaded.
func (s *gormStore) ListStations(ctx context.Context) ([]model.Station, error) {
	var stations []model.Station
	if err := s.db.WithContext(ctx).Preload("Ports").Find(&stations).Error; err != nil {
		return nil, err
	}
	return stations, nil
}
