package notification

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charging-queue-backend/internal/events"
	"charging-queue-backend/internal/model"
	"charging-queue-backend/internal/store"
)

// mockSender is a mock implementation of the PushSender interface.
type mockSender struct {
	mu   sync.Mutex
	sent []string // endpoints, in send order

	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	m.mu.Lock()
	m.sent = append(m.sent, sub.Endpoint)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(payload, sub, options)
	}
	return okResponse(), nil
}

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(strings.NewReader(""))}
}

func goneResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusGone, Body: io.NopCloser(strings.NewReader(""))}
}

func newTestPool(t *testing.T, s store.Store, sender PushSender) (*WorkerPool, *events.Bus) {
	bus := events.NewBus()
	d := NewDispatcher(s, bus)
	wp := NewWorkerPool(1, s, d, &webpush.Options{})
	wp.sender = sender
	return wp, bus
}

func addWatch(t *testing.T, s store.Store, stationID int64, userID, endpoint string) {
	t.Helper()
	require.NoError(t, s.UpsertWatch(context.Background(), &model.AvailabilityWatch{
		StationID: stationID, UserID: userID,
		Endpoint: endpoint, P256DH: "p", Auth: "a",
	}))
}

func TestWorkerPool_DispatchIsNonBlocking(t *testing.T) {
	s := newTestStore(t)
	wp, _ := newTestPool(t, s, &mockSender{})

	// Workers are not started; overflowing the buffer must not block.
	for i := 0; i < cap(wp.jobs)+5; i++ {
		done := make(chan struct{})
		go func() {
			wp.Dispatch(AvailabilityJob{StationID: 1, PortID: 1})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Dispatch blocked on a full job buffer")
		}
	}
}

func TestWorkerPool_NotifiesAllWatchersOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sender := &mockSender{}
	wp, _ := newTestPool(t, s, sender)

	addWatch(t, s, 1, "u1", "https://push.example/1")
	addWatch(t, s, 1, "u2", "https://push.example/2")
	addWatch(t, s, 1, "u3", "https://push.example/3")
	addWatch(t, s, 2, "u4", "https://push.example/4") // other station

	wp.notifyWatchers(ctx, AvailabilityJob{StationID: 1, PortID: 11})

	assert.Len(t, sender.sent, 3)
	assert.NotContains(t, sender.sent, "https://push.example/4")

	// Every watcher got a stored port_available notification.
	for _, user := range []string{"u1", "u2", "u3"} {
		rows, err := s.ListNotifications(ctx, user, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, model.KindPortAvailable, rows[0].Kind)
	}

	// Watches are one-shot: all deactivated after delivery.
	active, err := s.ActiveWatches(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)

	// A second report reaches nobody.
	wp.notifyWatchers(ctx, AvailabilityJob{StationID: 1, PortID: 11})
	assert.Len(t, sender.sent, 3)
}

func TestWorkerPool_DeletesExpiredEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sender := &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			return goneResponse(), nil
		},
	}
	wp, _ := newTestPool(t, s, sender)

	addWatch(t, s, 1, "u1", "https://push.example/expired")
	wp.notifyWatchers(ctx, AvailabilityJob{StationID: 1, PortID: 11})

	var count int64
	s.DB().Model(&model.AvailabilityWatch{}).Where("endpoint = ?", "https://push.example/expired").Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestWorkerPool_ProcessesDispatchedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestStore(t)
	sender := &mockSender{}
	wp, _ := newTestPool(t, s, sender)
	addWatch(t, s, 1, "u1", "https://push.example/1")

	wp.Start(ctx)
	wp.Dispatch(AvailabilityJob{StationID: 1, PortID: 11})

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
