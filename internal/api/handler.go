package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"charging-queue-backend/internal/ingest"
	"charging-queue-backend/internal/queue"
	"charging-queue-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store       store.Store
	coordinator *queue.Coordinator
	ingest      *ingest.Service
	webpush     *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, c *queue.Coordinator, svc *ingest.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:       s,
		coordinator: c,
		ingest:      svc,
		webpush:     webpushOptions,
	}
}
