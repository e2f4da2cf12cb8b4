package model

import "time"

// AvailabilityWatch is a one-shot "notify me when a port frees up"
// subscription for a station. It delivers a single web-push notification
// and is deactivated afterwards; it is separate from the queue and holds
// no place in it.
type AvailabilityWatch struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	StationID  int64      `gorm:"uniqueIndex:idx_watch_station_user;not null"`
	UserID     string     `gorm:"uniqueIndex:idx_watch_station_user;size:64;not null"`
	Endpoint   string     `gorm:"size:1024;not null"`
	P256DH     string     `gorm:"column:p256dh;not null"`
	Auth       string     `gorm:"not null"`
	Active     bool       `gorm:"index;not null;default:true"`
	CreatedAt  time.Time  `gorm:"not null"`
	NotifiedAt *time.Time
}
