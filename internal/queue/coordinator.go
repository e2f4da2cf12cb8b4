package queue

import (
	"context"
	"sync"
	"time"

	"charging-queue-backend/internal/events"
	"charging-queue-backend/internal/model"
	"charging-queue-backend/internal/store"
)

// Coordinator owns the per-station waiting lists and is the only writer
// of queue state. Operations on the same station are serialized behind
// a per-station mutex; different stations never contend.
type Coordinator struct {
	store          store.Store
	bus            *events.Bus
	claimWindow    time.Duration
	perSlotMinutes int

	mu    sync.RWMutex
	locks map[int64]*sync.Mutex

	now func() time.Time // Injectable clock for tests
}

// NewCoordinator creates a queue coordinator.
func NewCoordinator(s store.Store, bus *events.Bus, claimWindow time.Duration, perSlotMinutes int) *Coordinator {
	return &Coordinator{
		store:          s,
		bus:            bus,
		claimWindow:    claimWindow,
		perSlotMinutes: perSlotMinutes,
		locks:          make(map[int64]*sync.Mutex),
		now:            time.Now,
	}
}

// stationLock returns the mutex for a station, creating it lazily.
func (c *Coordinator) stationLock(stationID int64) *sync.Mutex {
	c.mu.RLock()
	l, ok := c.locks[stationID]
	c.mu.RUnlock()
	if ok {
		return l
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok = c.locks[stationID]; !ok {
		l = &sync.Mutex{}
		c.locks[stationID] = l
	}
	return l
}

// Join appends the user to the station's waiting list at the next free
// position. Fails with *AlreadyQueuedError if the user already holds a
// waiting or notified entry.
func (c *Coordinator) Join(ctx context.Context, stationID int64, userID string) (*model.QueueEntry, error) {
	lock := c.stationLock(stationID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := c.store.ActiveQueueEntry(ctx, stationID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &AlreadyQueuedError{StationID: stationID, UserID: userID, Position: existing.Position}
	}

	waiting, err := c.store.WaitingQueueEntries(ctx, stationID)
	if err != nil {
		return nil, err
	}
	position := 1
	if n := len(waiting); n > 0 {
		position = waiting[n-1].Position + 1
	}

	entry := &model.QueueEntry{
		StationID: stationID,
		UserID:    userID,
		Position:  position,
		Status:    model.QueueWaiting,
		JoinedAt:  c.now().UTC(),
	}
	if err := c.store.AppendQueueEntry(ctx, entry); err != nil {
		return nil, err
	}

	c.publishUpdate(entry)
	return entry, nil
}

// Leave marks the user's active entry completed and re-packs the
// positions of the remaining waiting entries. Every waiter whose
// position changed receives a queue-position event with a fresh ETA.
func (c *Coordinator) Leave(ctx context.Context, stationID int64, userID string) error {
	lock := c.stationLock(stationID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := c.store.ActiveQueueEntry(ctx, stationID, userID)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrNotQueued
	}

	now := c.now().UTC()
	wasWaiting := entry.Status == model.QueueWaiting
	entry.Status = model.QueueCompleted
	entry.CompletedAt = &now

	var repacked []model.QueueEntry
	if wasWaiting {
		repacked, err = c.repackedWaiting(ctx, stationID, entry.ID)
		if err != nil {
			return err
		}
	}

	if err := c.store.SaveEntryAndRepack(ctx, entry, repacked); err != nil {
		return err
	}

	for i := range repacked {
		c.publishUpdate(&repacked[i])
	}
	return nil
}

// PromoteNext grants the lowest-position waiting entry a time-boxed
// first right to claim a freed port. Returns nil when the queue is
// empty. The promoted entry leaves the waiting set, so the remaining
// positions collapse.
func (c *Coordinator) PromoteNext(ctx context.Context, stationID int64) (*model.QueueEntry, error) {
	lock := c.stationLock(stationID)
	lock.Lock()
	defer lock.Unlock()

	waiting, err := c.store.WaitingQueueEntries(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if len(waiting) == 0 {
		return nil, nil
	}

	now := c.now().UTC()
	expires := now.Add(c.claimWindow)
	promoted := waiting[0]
	promoted.Status = model.QueueNotified
	promoted.NotifiedAt = &now
	promoted.ExpiresAt = &expires

	repacked := make([]model.QueueEntry, 0, len(waiting)-1)
	for i, e := range waiting[1:] {
		if e.Position != i+1 {
			e.Position = i + 1
			repacked = append(repacked, e)
		}
	}

	if err := c.store.SaveEntryAndRepack(ctx, &promoted, repacked); err != nil {
		return nil, err
	}

	c.publishUpdate(&promoted)
	for i := range repacked {
		c.publishUpdate(&repacked[i])
	}
	return &promoted, nil
}

// Position returns the user's active entry. A notified entry whose
// claim window has passed is reported (and persisted) as expired even
// before the background sweep runs, so no caller can act on a stale
// grant.
func (c *Coordinator) Position(ctx context.Context, stationID int64, userID string) (*model.QueueEntry, error) {
	entry, err := c.store.ActiveQueueEntry(ctx, stationID, userID)
	if err != nil || entry == nil {
		return nil, err
	}
	return c.applyLazyExpiry(ctx, entry)
}

// List returns the station's active entries for the admin view, with
// lazy expiry applied.
func (c *Coordinator) List(ctx context.Context, stationID int64) ([]model.QueueEntry, error) {
	entries, err := c.store.ActiveQueueEntries(ctx, stationID)
	if err != nil {
		return nil, err
	}
	out := make([]model.QueueEntry, 0, len(entries))
	for i := range entries {
		e, err := c.applyLazyExpiry(ctx, &entries[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// ExpireStale flips overdue notified entries to expired and returns
// them. It deliberately does NOT promote the next waiter: an expired
// slot needs a fresh hardware "available" report, since the port may
// already have been taken by someone off the street.
func (c *Coordinator) ExpireStale(ctx context.Context) ([]model.QueueEntry, error) {
	expired, err := c.store.ExpireOverdueEntries(ctx, c.now().UTC())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		c.publishUpdate(&expired[i])
	}
	return expired, nil
}

// EstimatedWaitMinutes is the ETA heuristic: position times a fixed
// per-slot duration. Not a learned model.
func (c *Coordinator) EstimatedWaitMinutes(position int) int {
	if position <= 0 {
		return 0
	}
	return position * c.perSlotMinutes
}

// repackedWaiting computes dense 1..n positions over the station's
// waiting entries excluding the one that is leaving, returning only the
// entries whose position actually changed.
func (c *Coordinator) repackedWaiting(ctx context.Context, stationID, leavingID int64) ([]model.QueueEntry, error) {
	waiting, err := c.store.WaitingQueueEntries(ctx, stationID)
	if err != nil {
		return nil, err
	}
	var repacked []model.QueueEntry
	next := 1
	for _, e := range waiting {
		if e.ID == leavingID {
			continue
		}
		if e.Position != next {
			e.Position = next
			repacked = append(repacked, e)
		}
		next++
	}
	return repacked, nil
}

func (c *Coordinator) applyLazyExpiry(ctx context.Context, entry *model.QueueEntry) (*model.QueueEntry, error) {
	if entry.Status != model.QueueNotified || entry.ExpiresAt == nil || entry.ExpiresAt.After(c.now()) {
		return entry, nil
	}
	entry.Status = model.QueueExpired
	if err := c.store.SaveQueueEntry(ctx, entry); err != nil {
		return nil, err
	}
	c.publishUpdate(entry)
	return entry, nil
}

func (c *Coordinator) publishUpdate(entry *model.QueueEntry) {
	eta := 0
	if entry.Status == model.QueueWaiting {
		eta = c.EstimatedWaitMinutes(entry.Position)
	}
	c.bus.Publish(events.TopicQueuePosition, events.Event{
		Type:      "queue-update",
		StationID: entry.StationID,
		UserID:    entry.UserID,
		Timestamp: c.now().UTC(),
		Data: events.QueueUpdate{
			StationID:        entry.StationID,
			UserID:           entry.UserID,
			Position:         entry.Position,
			QueueStatus:      string(entry.Status),
			EstimatedWaitMin: eta,
		},
	})
}
