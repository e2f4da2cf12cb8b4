package model

import "time"

// QueueState enumerates the lifecycle states of a queue entry.
type QueueState string

const (
	QueueWaiting   QueueState = "waiting"
	QueueNotified  QueueState = "notified"
	QueueExpired   QueueState = "expired"
	QueueCompleted QueueState = "completed"
)

// Active reports whether the state still occupies a slot in the queue.
func (s QueueState) Active() bool {
	return s == QueueWaiting || s == QueueNotified
}

// QueueEntry is one user's place in a station's waiting list.
//
// Invariants maintained by the queue coordinator:
//   - at most one entry per (user, station) in an active state;
//   - positions of waiting entries form a dense 1-based sequence,
//     re-packed whenever an entry leaves the waiting set.
//
// Terminal entries are never reused; re-queueing creates a new row.
type QueueEntry struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StationID   int64      `gorm:"index:idx_queue_station_user;not null" json:"stationId"`
	UserID      string     `gorm:"index:idx_queue_station_user;size:64;not null" json:"userId"`
	Position    int        `gorm:"not null" json:"position"`
	Status      QueueState `gorm:"size:16;index;not null" json:"status"`
	JoinedAt    time.Time  `gorm:"not null" json:"joinedAt"`
	NotifiedAt  *time.Time `json:"notifiedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
