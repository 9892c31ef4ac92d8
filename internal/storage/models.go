package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Event is one local analytics event. DurationMinutes is only set for
// completed sessions.
type Event struct {
	ID              string
	Type            string
	ExerciseID      string
	DurationMinutes float64
	CreatedAt       time.Time
}

// Counters are the aggregated analytics counts, keyed by event type.
type Counters struct {
	Values      map[string]int64
	LastUpdated time.Time // zero if nothing was ever counted
}
