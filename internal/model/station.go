package model

import "time"

// Station represents a charging station with one or more ports.
type Station struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Ports []ChargingPort `gorm:"foreignKey:StationID" json:"ports,omitempty"`
}

// ChargingPort represents a single physical charging port at a station.
type ChargingPort struct {
	ID        int64     `gorm:"primaryKey" json:"id"` // Hardware-assigned ID
	StationID int64     `gorm:"index;not null" json:"stationId"`
	Label     string    `gorm:"size:64" json:"label"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
