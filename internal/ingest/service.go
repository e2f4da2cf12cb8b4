package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"charging-queue-backend/config"
	"charging-queue-backend/internal/events"
	"charging-queue-backend/internal/model"
	"charging-queue-backend/internal/notification"
	"charging-queue-backend/internal/queue"
	"charging-queue-backend/internal/store"
)

// Report is a single hardware-reported port state change.
type Report struct {
	StationID int64           `json:"stationId" binding:"required"`
	PortID    int64           `json:"portId" binding:"required"`
	Status    model.PortState `json:"status" binding:"required"`
	Event     string          `json:"event"`
}

// Service handles inbound hardware reports and owns the background
// maintenance loops (queue expiry sweep, notification purge).
type Service struct {
	cfg         *config.Config
	store       store.Store
	bus         *events.Bus
	coordinator *queue.Coordinator
	dispatcher  *notification.Dispatcher
	workerPool  *notification.WorkerPool
	now         func() time.Time
}

// NewService creates the ingest service.
func NewService(cfg *config.Config, s store.Store, bus *events.Bus, c *queue.Coordinator, d *notification.Dispatcher, wp *notification.WorkerPool) *Service {
	return &Service{
		cfg:         cfg,
		store:       s,
		bus:         bus,
		coordinator: c,
		dispatcher:  d,
		workerPool:  wp,
		now:         time.Now,
	}
}

// HandleReport applies one hardware report. The durable write and the
// live publish are independent best-effort steps: a slow or failed
// store write never blocks live viewers, and the next report
// self-corrects the stored row. Only invalid input is an error to the
// caller; the handler's job is to acknowledge receipt.
func (s *Service) HandleReport(ctx context.Context, r Report) error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown port status %q", r.Status)
	}

	now := s.now().UTC()
	status := model.PortStatus{
		StationID: r.StationID,
		PortID:    r.PortID,
		Status:    r.Status,
		Event:     r.Event,
		UpdatedAt: now,
	}
	if err := s.store.UpsertPortStatus(ctx, status); err != nil {
		log.Printf("Error persisting status for station %d port %d (broadcast continues): %v",
			r.StationID, r.PortID, err)
	}

	s.bus.Publish(events.TopicPortStatus, events.Event{
		Type:      "port-update",
		StationID: r.StationID,
		Timestamp: now,
		Data: events.PortUpdate{
			StationID: r.StationID,
			PortID:    r.PortID,
			Status:    string(r.Status),
			Event:     r.Event,
			Timestamp: now,
		},
	})

	if r.Status != model.PortAvailable {
		return nil
	}

	// A freed port grants the head of the queue a time-boxed first
	// right to claim it.
	promoted, err := s.coordinator.PromoteNext(ctx, r.StationID)
	if err != nil {
		log.Printf("Error promoting next waiter for station %d: %v", r.StationID, err)
	} else if promoted != nil {
		s.dispatcher.QueueTurn(ctx, promoted)
	}

	// One-shot availability watchers are notified regardless of the
	// queue outcome.
	s.workerPool.Dispatch(notification.AvailabilityJob{StationID: r.StationID, PortID: r.PortID})
	return nil
}

// Run starts the worker pool and the maintenance tickers, blocking
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.workerPool.Start(ctx)

	sweep := time.NewTicker(s.cfg.Queue.SweepInterval)
	defer sweep.Stop()
	purge := time.NewTicker(s.cfg.Notifications.PurgeInterval)
	defer purge.Stop()

	log.Println("Ingest maintenance loops started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Ingest service shutting down")
			return
		case <-sweep.C:
			if expired, err := s.coordinator.ExpireStale(ctx); err != nil {
				log.Printf("Error sweeping stale queue entries: %v", err)
			} else if len(expired) > 0 {
				log.Printf("Expired %d overdue queue entries", len(expired))
			}
		case <-purge.C:
			cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.Notifications.RetentionDays)
			if n, err := s.store.PurgeNotificationsBefore(ctx, cutoff); err != nil {
				log.Printf("Error purging notifications: %v", err)
			} else if n > 0 {
				log.Printf("Purged %d notifications older than %d days", n, s.cfg.Notifications.RetentionDays)
			}
		}
	}
}
