package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"charging-queue-backend/internal/events"
	"charging-queue-backend/internal/model"
	"charging-queue-backend/internal/store"
)

// Dispatcher translates domain events into per-user notification
// records and live bus events. It performs no dedup: every call creates
// a fresh row (flap suppression, if ever needed, belongs to the
// hardware-report handler).
type Dispatcher struct {
	store store.Store
	bus   *events.Bus
	now   func() time.Time
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(s store.Store, bus *events.Bus) *Dispatcher {
	return &Dispatcher{store: s, bus: bus, now: time.Now}
}

// QueueTurn notifies a promoted user that it is their turn to claim a
// port, including the claim deadline.
func (d *Dispatcher) QueueTurn(ctx context.Context, entry *model.QueueEntry) {
	deadline := ""
	if entry.ExpiresAt != nil {
		deadline = fmt.Sprintf(" You have until %s to claim it.", entry.ExpiresAt.UTC().Format("15:04 MST"))
	}
	stationID := entry.StationID
	d.dispatch(ctx, model.Notification{
		UserID:    entry.UserID,
		Kind:      model.KindQueueTurn,
		Title:     "It's your turn!",
		Message:   fmt.Sprintf("A charging port is free at station %d.%s", entry.StationID, deadline),
		StationID: &stationID,
		ActionURL: fmt.Sprintf("/stations/%d", entry.StationID),
	})
}

// PortAvailable notifies an availability watcher that a port freed up.
func (d *Dispatcher) PortAvailable(ctx context.Context, stationID, portID int64, userID string) {
	d.dispatch(ctx, model.Notification{
		UserID:    userID,
		Kind:      model.KindPortAvailable,
		Title:     "Charging port available",
		Message:   fmt.Sprintf("Port %d at station %d is now available.", portID, stationID),
		StationID: &stationID,
		ActionURL: fmt.Sprintf("/stations/%d", stationID),
	})
}

// ChargingComplete notifies a user that their charging session ended.
func (d *Dispatcher) ChargingComplete(ctx context.Context, stationID, portID int64, userID string) {
	d.dispatch(ctx, model.Notification{
		UserID:    userID,
		Kind:      model.KindChargingComplete,
		Title:     "Charging complete",
		Message:   fmt.Sprintf("Your vehicle at station %d, port %d has finished charging.", stationID, portID),
		StationID: &stationID,
		ActionURL: fmt.Sprintf("/stations/%d", stationID),
	})
}

// dispatch persists the record and publishes the live event. The store
// write is best-effort: a failed insert is logged, the live publish
// still happens so connected clients are never blocked by storage.
func (d *Dispatcher) dispatch(ctx context.Context, n model.Notification) {
	n.ID = uuid.NewString()
	n.CreatedAt = d.now().UTC()

	if err := d.store.CreateNotification(ctx, &n); err != nil {
		log.Printf("Error persisting notification for user %s: %v", n.UserID, err)
	}

	var stationID int64
	if n.StationID != nil {
		stationID = *n.StationID
	}
	d.bus.Publish(events.TopicUserNotification, events.Event{
		Type:      "notification",
		StationID: stationID,
		UserID:    n.UserID,
		Timestamp: n.CreatedAt,
		Data: events.UserNotification{
			ID:        n.ID,
			Kind:      string(n.Kind),
			Title:     n.Title,
			Message:   n.Message,
			StationID: stationID,
			ActionURL: n.ActionURL,
		},
	})
}
