package queue

import (
	"errors"
	"fmt"
)

// ErrNotQueued is returned when an operation targets a user with no
// active entry for the station.
var ErrNotQueued = errors.New("user is not queued at this station")

// AlreadyQueuedError is returned when a user tries to join a station
// queue while already holding an active entry. It carries the existing
// position so the API can answer "already queued, position N".
type AlreadyQueuedError struct {
	StationID int64
	UserID    string
	Position  int
}

func (e *AlreadyQueuedError) Error() string {
	return fmt.Sprintf("user %s is already queued at station %d (position %d)", e.UserID, e.StationID, e.Position)
}
