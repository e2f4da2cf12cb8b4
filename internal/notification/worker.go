package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"charging-queue-backend/internal/model"
	"charging-queue-backend/internal/store"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the
// webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// AvailabilityJob identifies a freed port whose watchers should be
// notified.
type AvailabilityJob struct {
	StationID int64
	PortID    int64
}

// WorkerPool fans availability jobs out to a fixed set of workers that
// deliver one-shot web push notifications to station watchers.
type WorkerPool struct {
	size       int
	jobs       chan AvailabilityJob
	store      store.Store
	dispatcher *Dispatcher
	webpush    *webpush.Options
	sender     PushSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, d *Dispatcher, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:       size,
		jobs:       make(chan AvailabilityJob, size*4),
		store:      s,
		dispatcher: d,
		webpush:    webpushOptions,
		sender:     &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// Dispatch queues a job. Non-blocking: if the buffer is full the job is
// dropped with a log line, since the next hardware report re-triggers it.
func (wp *WorkerPool) Dispatch(job AvailabilityJob) {
	select {
	case wp.jobs <- job:
	default:
		log.Printf("Worker pool saturated; dropping availability job for station %d", job.StationID)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.notifyWatchers(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// notifyWatchers delivers a push to every active watch on the station,
// records a notification row per watcher, and deactivates each watch.
// Watches are one-shot: one delivery, then done.
func (wp *WorkerPool) notifyWatchers(ctx context.Context, job AvailabilityJob) {
	watches, err := wp.store.ActiveWatches(ctx, job.StationID)
	if err != nil {
		log.Printf("Error fetching watches for station %d: %v", job.StationID, err)
		return
	}
	if len(watches) == 0 {
		return
	}
	log.Printf("Notifying %d watchers of station %d", len(watches), job.StationID)

	payload, err := json.Marshal(map[string]any{
		"title":     "Charging port available",
		"message":   fmt.Sprintf("Port %d at station %d is now available.", job.PortID, job.StationID),
		"stationId": job.StationID,
	})
	if err != nil {
		log.Printf("Error marshalling push payload: %v", err)
		return
	}

	for _, watch := range watches {
		wp.dispatcher.PortAvailable(ctx, job.StationID, job.PortID, watch.UserID)
		wp.sendPush(ctx, watch, payload)
		if err := wp.store.DeactivateWatch(ctx, watch.ID, wp.dispatcher.now().UTC()); err != nil {
			log.Printf("Error deactivating watch %d: %v", watch.ID, err)
		}
	}
}

// sendPush sends a single web push message.
func (wp *WorkerPool) sendPush(ctx context.Context, watch model.AvailabilityWatch, payload []byte) {
	sub := &webpush.Subscription{
		Endpoint: watch.Endpoint,
		Keys: webpush.Keys{
			P256dh: watch.P256DH,
			Auth:   watch.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, sub, wp.webpush)
	if err != nil {
		log.Printf("Error sending push to %s: %v", watch.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Push endpoint expired, deleting watches for it")
		if err := wp.store.DeleteWatchByEndpoint(ctx, watch.Endpoint); err != nil {
			log.Printf("Failed to delete expired watch endpoint: %v", err)
		}
	}
}
