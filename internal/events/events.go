package events

import "time"

// Topic identifies one of the bus's event streams.
type Topic string

const (
	TopicPortStatus       Topic = "port-status"
	TopicQueuePosition    Topic = "queue-position"
	TopicUserNotification Topic = "user-notification"
)

// Event is the envelope published on the bus. StationID and UserID are
// lifted out of the payload so subscribers can filter without type
// switches.
type Event struct {
	Type      string    `json:"type"`
	StationID int64     `json:"stationId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// PortUpdate is the payload for TopicPortStatus events.
type PortUpdate struct {
	StationID int64     `json:"stationId"`
	PortID    int64     `json:"portId"`
	Status    string    `json:"status"`
	Event     string    `json:"event,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// QueueUpdate is the payload for TopicQueuePosition events.
type QueueUpdate struct {
	StationID        int64  `json:"stationId"`
	UserID           string `json:"userId"`
	Position         int    `json:"position"`
	QueueStatus      string `json:"queueStatus"`
	EstimatedWaitMin int    `json:"estimatedWaitMin"`
}

// UserNotification is the payload for TopicUserNotification events.
// It carries the minimal fields a live client needs to render the
// notification; the full record lives in the store.
type UserNotification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	StationID int64  `json:"stationId,omitempty"`
	ActionURL string `json:"actionUrl,omitempty"`
}
