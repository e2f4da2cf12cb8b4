package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appdb "charging-queue-backend/internal/db"
	"charging-queue-backend/internal/events"
	"charging-queue-backend/internal/model"
	"charging-queue-backend/internal/store"
)

var testDBSeq atomic.Int64

func newStreamServer(t *testing.T) (*events.Bus, store.Store, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:stream_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, appdb.Migrate(db))
	s := store.NewGormStore(db)

	bus := events.NewBus()
	// Heartbeat far beyond test duration so it never interleaves.
	gw := NewGateway(bus, s, time.Hour, 16)

	r := gin.New()
	r.GET("/api/stations/stream", gw.StationStream)
	r.GET("/api/users/:user_id/stream", gw.UserStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return bus, s, srv
}

// openStream issues a streaming GET and returns a line reader over the
// response body. The context bounds the whole exchange.
func openStream(t *testing.T, ctx context.Context, url string) *bufio.Reader {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body)
}

// readEvent reads the next SSE event and returns its name and data line.
func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestStationStream_ReplayFilterAndCleanup(t *testing.T) {
	bus, s, srv := newStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, s.UpsertPortStatus(context.Background(), model.PortStatus{
		StationID: 1, PortID: 11, Status: model.PortOccupied,
	}))

	reader := openStream(t, ctx, srv.URL+"/api/stations/stream?station_id=1")

	// Connection-establishment replay carries the current snapshot.
	name, data := readEvent(t, reader)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, `"ports"`)
	assert.Contains(t, data, `"occupied"`)

	// Once connected, the subscription is live.
	require.Equal(t, 1, bus.SubscriberCount(events.TopicPortStatus))

	// An event for another station must not reach this client.
	bus.Publish(events.TopicPortStatus, events.Event{
		Type: "port-update", StationID: 2,
		Data: events.PortUpdate{StationID: 2, PortID: 21, Status: "available"},
	})
	bus.Publish(events.TopicPortStatus, events.Event{
		Type: "port-update", StationID: 1,
		Data: events.PortUpdate{StationID: 1, PortID: 11, Status: "available"},
	})

	name, data = readEvent(t, reader)
	assert.Equal(t, "port-update", name)
	assert.Contains(t, data, `"stationId":1`)
	assert.Contains(t, data, `"available"`)

	// Disconnecting leaves no live subscription behind.
	cancel()
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.TopicPortStatus) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStationStream_NoFilterReceivesAllStations(t *testing.T) {
	bus, _, srv := newStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reader := openStream(t, ctx, srv.URL+"/api/stations/stream")
	name, _ := readEvent(t, reader)
	require.Equal(t, "connected", name)

	for _, stationID := range []int64{3, 7} {
		bus.Publish(events.TopicPortStatus, events.Event{
			Type: "port-update", StationID: stationID,
			Data: events.PortUpdate{StationID: stationID, PortID: 1, Status: "available"},
		})
	}

	_, data := readEvent(t, reader)
	assert.Contains(t, data, `"stationId":3`)
	_, data = readEvent(t, reader)
	assert.Contains(t, data, `"stationId":7`)
}

func TestStationStream_RejectsBadStationID(t *testing.T) {
	_, _, srv := newStreamServer(t)
	resp, err := http.Get(srv.URL + "/api/stations/stream?station_id=banana")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserStream_FiltersByUserAndCleansUp(t *testing.T) {
	bus, _, srv := newStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reader := openStream(t, ctx, srv.URL+"/api/users/u1/stream")
	name, data := readEvent(t, reader)
	require.Equal(t, "connected", name)
	assert.Contains(t, data, `"userId":"u1"`)

	require.Equal(t, 1, bus.SubscriberCount(events.TopicUserNotification))
	require.Equal(t, 1, bus.SubscriberCount(events.TopicQueuePosition))

	// Someone else's notification is filtered out; u1's comes through.
	bus.Publish(events.TopicUserNotification, events.Event{
		Type: "notification", UserID: "u2",
		Data: events.UserNotification{ID: "other", Kind: "general"},
	})
	bus.Publish(events.TopicQueuePosition, events.Event{
		Type: "queue-update", UserID: "u1", StationID: 1,
		Data: events.QueueUpdate{StationID: 1, UserID: "u1", Position: 2, QueueStatus: "waiting", EstimatedWaitMin: 30},
	})

	name, data = readEvent(t, reader)
	assert.Equal(t, "queue-update", name)
	assert.Contains(t, data, `"position":2`)
	assert.Contains(t, data, `"estimatedWaitMin":30`)

	cancel()
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(events.TopicUserNotification) == 0 &&
			bus.SubscriberCount(events.TopicQueuePosition) == 0
	}, 5*time.Second, 20*time.Millisecond)
}
