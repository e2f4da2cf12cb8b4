package stream

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"charging-queue-backend/internal/events"
	"charging-queue-backend/internal/store"
)

// Gateway serves the long-lived SSE connections. Each connection runs
// on its own goroutine (the gin handler), subscribes to the bus topics
// it needs, and unsubscribes on every exit path via the deferred cancel
// handles, so a disconnected client leaves no live subscription behind.
type Gateway struct {
	bus       *events.Bus
	store     store.Store
	heartbeat time.Duration
	buffer    int
}

// NewGateway creates a stream gateway.
func NewGateway(bus *events.Bus, s store.Store, heartbeat time.Duration, buffer int) *Gateway {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Gateway{bus: bus, store: s, heartbeat: heartbeat, buffer: buffer}
}

// StationStream handles GET /api/stations/stream. An optional
// station_id query parameter scopes the stream to one station; without
// it the client receives every station's port updates.
func (g *Gateway) StationStream(c *gin.Context) {
	var stationID int64
	filtered := false
	if raw := c.Query("station_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid station_id"})
			return
		}
		stationID = id
		filtered = true
	}

	setStreamHeaders(c)

	ch, cancel := g.bus.Subscribe(events.TopicPortStatus, g.buffer)
	defer cancel()

	// Replay-on-connect: the connected event carries the current port
	// snapshot so a late joiner starts from correct state.
	connected := gin.H{"timestamp": time.Now().UTC()}
	if filtered {
		connected["stationId"] = stationID
		if snapshot, err := g.store.PortSnapshot(c.Request.Context(), stationID); err != nil {
			log.Printf("Error reading snapshot for station %d: %v", stationID, err)
		} else {
			connected["ports"] = snapshot
		}
	}
	c.SSEvent("connected", connected)
	c.Writer.Flush()

	ticker := time.NewTicker(g.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			if filtered && ev.StationID != stationID {
				return true
			}
			c.SSEvent(ev.Type, ev.Data)
			return true
		case <-ticker.C:
			return writeHeartbeat(w)
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// UserStream handles GET /api/users/:user_id/stream. It multiplexes the
// user's notifications and queue updates onto one connection.
func (g *Gateway) UserStream(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	setStreamHeaders(c)

	notifCh, cancelNotif := g.bus.Subscribe(events.TopicUserNotification, g.buffer)
	defer cancelNotif()
	queueCh, cancelQueue := g.bus.Subscribe(events.TopicQueuePosition, g.buffer)
	defer cancelQueue()

	c.SSEvent("connected", gin.H{"userId": userID, "timestamp": time.Now().UTC()})
	c.Writer.Flush()

	ticker := time.NewTicker(g.heartbeat)
	defer ticker.Stop()

	forward := func(ev events.Event, ok bool) bool {
		if !ok {
			return false
		}
		if ev.UserID != userID {
			return true
		}
		c.SSEvent(ev.Type, ev.Data)
		return true
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-notifCh:
			return forward(ev, ok)
		case ev, ok := <-queueCh:
			return forward(ev, ok)
		case <-ticker.C:
			return writeHeartbeat(w)
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func setStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// writeHeartbeat emits an SSE comment line to detect half-open
// connections; a failed write terminates the stream.
func writeHeartbeat(w io.Writer) bool {
	if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
		return false
	}
	return true
}
