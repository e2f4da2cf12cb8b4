package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

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

func newTestCoordinator(t *testing.T) (*Coordinator, *events.Bus, store.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:queue_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, appdb.Migrate(db))

	s := store.NewGormStore(db)
	bus := events.NewBus()
	return NewCoordinator(s, bus, 5*time.Minute, 15), bus, s
}

// drainQueueUpdates collects the queue-position events already buffered
// on the channel. Publishing happens inline with coordinator calls, so
// after a call returns its events are all buffered.
func drainQueueUpdates(ch <-chan events.Event) []events.QueueUpdate {
	var updates []events.QueueUpdate
	for {
		select {
		case ev := <-ch:
			updates = append(updates, ev.Data.(events.QueueUpdate))
		default:
			return updates
		}
	}
}

func TestCoordinator_JoinAssignsDensePositions(t *testing.T) {
	c, bus, _ := newTestCoordinator(t)
	ctx := context.Background()
	ch, cancel := bus.Subscribe(events.TopicQueuePosition, 64)
	defer cancel()

	for i, user := range []string{"u1", "u2", "u3"} {
		entry, err := c.Join(ctx, 1, user)
		require.NoError(t, err)
		assert.Equal(t, i+1, entry.Position)
		assert.Equal(t, model.QueueWaiting, entry.Status)
	}

	updates := drainQueueUpdates(ch)
	require.Len(t, updates, 3)
	for i, u := range updates {
		assert.Equal(t, i+1, u.Position)
		assert.Equal(t, (i+1)*15, u.EstimatedWaitMin)
	}
}

func TestCoordinator_JoinTwiceFailsWithPosition(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.Join(ctx, 1, "u1")
	require.NoError(t, err)
	_, err = c.Join(ctx, 1, "u2")
	require.NoError(t, err)

	_, err = c.Join(ctx, 1, "u2")
	var dup *AlreadyQueuedError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 2, dup.Position)

	// A queue at another station is independent.
	entry, err := c.Join(ctx, 2, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Position)
}

func TestCoordinator_LeaveRepacksAndNotifiesEveryWaiter(t *testing.T) {
	c, bus, s := newTestCoordinator(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := c.Join(ctx, 1, user)
		require.NoError(t, err)
	}

	ch, cancel := bus.Subscribe(events.TopicQueuePosition, 64)
	defer cancel()

	require.NoError(t, c.Leave(ctx, 1, "u1"))

	waiting, err := s.WaitingQueueEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, "u2", waiting[0].UserID)
	assert.Equal(t, 1, waiting[0].Position)
	assert.Equal(t, "u3", waiting[1].UserID)
	assert.Equal(t, 2, waiting[1].Position)

	// Exactly one update per remaining waiter, with recomputed ETAs.
	updates := drainQueueUpdates(ch)
	require.Len(t, updates, 2)
	byUser := map[string]events.QueueUpdate{}
	for _, u := range updates {
		byUser[u.UserID] = u
	}
	assert.Equal(t, 1, byUser["u2"].Position)
	assert.Equal(t, 15, byUser["u2"].EstimatedWaitMin)
	assert.Equal(t, 2, byUser["u3"].Position)
	assert.Equal(t, 30, byUser["u3"].EstimatedWaitMin)

	// The completed entry is terminal; u1 can re-queue with a new row.
	entry, err := c.Join(ctx, 1, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Position)
}

func TestCoordinator_LeaveWithoutEntry(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	assert.ErrorIs(t, c.Leave(context.Background(), 1, "ghost"), ErrNotQueued)
}

func TestCoordinator_PromoteNextSelectsLowestPosition(t *testing.T) {
	c, bus, s := newTestCoordinator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := c.Join(ctx, 1, user)
		require.NoError(t, err)
	}

	ch, cancel := bus.Subscribe(events.TopicQueuePosition, 64)
	defer cancel()

	promoted, err := c.PromoteNext(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, "u1", promoted.UserID)
	assert.Equal(t, model.QueueNotified, promoted.Status)
	require.NotNil(t, promoted.NotifiedAt)
	require.NotNil(t, promoted.ExpiresAt)
	assert.Equal(t, now, *promoted.NotifiedAt)
	assert.Equal(t, now.Add(5*time.Minute), *promoted.ExpiresAt)

	// The promoted entry left the waiting set; the rest collapsed.
	waiting, err := s.WaitingQueueEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, "u2", waiting[0].UserID)
	assert.Equal(t, 1, waiting[0].Position)
	assert.Equal(t, "u3", waiting[1].UserID)
	assert.Equal(t, 2, waiting[1].Position)

	updates := drainQueueUpdates(ch)
	require.Len(t, updates, 3)
	assert.Equal(t, "u1", updates[0].UserID)
	assert.Equal(t, string(model.QueueNotified), updates[0].QueueStatus)
}

func TestCoordinator_PromoteNextOnEmptyQueue(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	promoted, err := c.PromoteNext(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestCoordinator_PositionAppliesLazyExpiry(t *testing.T) {
	c, _, s := newTestCoordinator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Join(ctx, 1, "u1")
	require.NoError(t, err)
	promoted, err := c.PromoteNext(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, promoted)

	// Within the claim window the grant holds.
	now = now.Add(4 * time.Minute)
	entry, err := c.Position(ctx, 1, "u1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.QueueNotified, entry.Status)

	// Strictly after the deadline the entry reads as expired, even
	// though no sweep has run, and the flip is persisted.
	now = now.Add(2 * time.Minute)
	entry, err = c.Position(ctx, 1, "u1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.QueueExpired, entry.Status)

	stored, err := s.ActiveQueueEntry(ctx, 1, "u1")
	require.NoError(t, err)
	assert.Nil(t, stored) // expired is terminal, no longer active
}

func TestCoordinator_ExpireStaleDoesNotPromote(t *testing.T) {
	c, _, s := newTestCoordinator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Join(ctx, 1, "u1")
	require.NoError(t, err)
	_, err = c.Join(ctx, 1, "u2")
	require.NoError(t, err)

	promoted, err := c.PromoteNext(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "u1", promoted.UserID)

	now = now.Add(6 * time.Minute)
	expired, err := c.ExpireStale(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "u1", expired[0].UserID)
	assert.Equal(t, model.QueueExpired, expired[0].Status)

	// No automatic re-promotion: u2 stays waiting at position 1 until
	// a fresh hardware "available" report arrives.
	waiting, err := s.WaitingQueueEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "u2", waiting[0].UserID)
	assert.Equal(t, model.QueueWaiting, waiting[0].Status)
	assert.Equal(t, 1, waiting[0].Position)

	promoted, err = c.PromoteNext(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, "u2", promoted.UserID)
}
