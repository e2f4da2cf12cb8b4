package model

import "time"

// PortState enumerates the reportable states of a charging port.
type PortState string

const (
	PortAvailable   PortState = "available"
	PortOccupied    PortState = "occupied"
	PortReserved    PortState = "reserved"
	PortMaintenance PortState = "maintenance"
)

// Valid reports whether s is one of the recognized port states.
func (s PortState) Valid() bool {
	switch s {
	case PortAvailable, PortOccupied, PortReserved, PortMaintenance:
		return true
	}
	return false
}

// PortStatus is the durable last-write-wins snapshot of a single port.
// One logical row per (station, port); no history is kept here.
type PortStatus struct {
	StationID int64     `gorm:"primaryKey;autoIncrement:false" json:"stationId"`
	PortID    int64     `gorm:"primaryKey;autoIncrement:false" json:"portId"`
	Status    PortState `gorm:"size:32;not null" json:"status"`
	Event     string    `gorm:"size:128" json:"event"` // Hardware event label, e.g. "charge_complete"
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}
