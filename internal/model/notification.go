package model

import "time"

// NotificationKind classifies a stored user notification.
type NotificationKind string

const (
	KindPortAvailable    NotificationKind = "port_available"
	KindQueueTurn        NotificationKind = "queue_turn"
	KindQueueUpdate      NotificationKind = "queue_update"
	KindBookingReminder  NotificationKind = "booking_reminder"
	KindChargingComplete NotificationKind = "charging_complete"
	KindGeneral          NotificationKind = "general"
)

// Notification is a per-user notification record. Owned by the user;
// the only mutation after creation is the read-flag flip. Rows older
// than the configured retention window are purged.
type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	UserID    string           `gorm:"index;size:64;not null" json:"userId"`
	Kind      NotificationKind `gorm:"size:32;not null" json:"kind"`
	Title     string           `gorm:"size:256;not null" json:"title"`
	Message   string           `gorm:"size:1024;not null" json:"message"`
	StationID *int64           `json:"stationId,omitempty"`
	ActionURL string           `gorm:"size:512" json:"actionUrl,omitempty"`
	Read      bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time        `gorm:"index;not null" json:"createdAt"`
}
