// Package analytics keeps local, aggregate-only counts of how sessions go,
// used to judge whether the safety rules are doing their job.
package analytics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andas-app/andas/internal/storage"
)

// EventType is the kind of an analytics event.
type EventType string

const (
	SessionStarted   EventType = "session_started"
	SessionCompleted EventType = "session_completed"
	NegativeFeedback EventType = "negative_feedback"
	EarlyExit        EventType = "early_exit"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case SessionStarted, SessionCompleted, NegativeFeedback, EarlyExit:
		return true
	}
	return false
}

// Event is one logged occurrence.
type Event struct {
	ID              string    `json:"id"`
	Type            EventType `json:"type"`
	ExerciseID      string    `json:"exerciseId"`
	DurationMinutes float64   `json:"durationMinutes,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Stats are the aggregated totals.
type Stats struct {
	TotalSessionsStarted   int64     `json:"totalSessionsStarted"`
	TotalSessionsCompleted int64     `json:"totalSessionsCompleted"`
	TotalNegativeFeedback  int64     `json:"totalNegativeFeedback"`
	TotalEarlyExits        int64     `json:"totalEarlyExits"`
	LastUpdated            time.Time `json:"lastUpdated"`
}

// Insights are rates derived from Stats.
type Insights struct {
	CompletionRate       float64 `json:"completionRate"`
	NegativeFeedbackRate float64 `json:"negativeFeedbackRate"`
	EarlyExitRate        float64 `json:"earlyExitRate"`
	IsHealthy            bool    `json:"isHealthy"`
}

// Healthy thresholds.
const (
	minCompletionRate       = 0.7
	maxNegativeFeedbackRate = 0.3
	maxEarlyExitRate        = 0.2
)

// EventStore defines the storage operations the Tracker needs.
// Implemented by storage.Store.
type EventStore interface {
	RecordEvent(e storage.Event) error
	GetCounters() (storage.Counters, error)
	RecentEvents(limit int) ([]storage.Event, error)
	ClearAnalytics() error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Tracker logs events and computes insights.
type Tracker struct {
	store EventStore
	clock Clock
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store EventStore) *Tracker {
	return &Tracker{store: store, clock: realClock{}}
}

// NewTrackerWithClock creates a Tracker with a custom clock (for testing).
func NewTrackerWithClock(store EventStore, clock Clock) *Tracker {
	return &Tracker{store: store, clock: clock}
}

// Log records one event and returns it with its id and timestamp filled in.
func (t *Tracker) Log(typ EventType, exerciseID string, durationMinutes float64) (Event, error) {
	if !typ.Valid() {
		return Event{}, fmt.Errorf("unknown analytics event type %q", typ)
	}
	e := Event{
		ID:              uuid.New().String(),
		Type:            typ,
		ExerciseID:      exerciseID,
		DurationMinutes: durationMinutes,
		Timestamp:       t.clock.Now().UTC(),
	}
	err := t.store.RecordEvent(storage.Event{
		ID:              e.ID,
		Type:            string(e.Type),
		ExerciseID:      e.ExerciseID,
		DurationMinutes: e.DurationMinutes,
		CreatedAt:       e.Timestamp,
	})
	if err != nil {
		return Event{}, fmt.Errorf("logging %s event: %w", typ, err)
	}
	return e, nil
}

// Stats returns the aggregated counts.
func (t *Tracker) Stats() (Stats, error) {
	c, err := t.store.GetCounters()
	if err != nil {
		return Stats{}, fmt.Errorf("loading analytics counters: %w", err)
	}
	return Stats{
		TotalSessionsStarted:   c.Values[string(SessionStarted)],
		TotalSessionsCompleted: c.Values[string(SessionCompleted)],
		TotalNegativeFeedback:  c.Values[string(NegativeFeedback)],
		TotalEarlyExits:        c.Values[string(EarlyExit)],
		LastUpdated:            c.LastUpdated,
	}, nil
}

// Insights returns the current stats and the rates derived from them.
func (t *Tracker) Insights() (Stats, Insights, error) {
	s, err := t.Stats()
	if err != nil {
		return Stats{}, Insights{}, err
	}
	return s, ComputeInsights(s), nil
}

// ComputeInsights derives rates from s. Rates with a zero denominator are 0.
func ComputeInsights(s Stats) Insights {
	var in Insights
	if s.TotalSessionsStarted > 0 {
		in.CompletionRate = float64(s.TotalSessionsCompleted) / float64(s.TotalSessionsStarted)
		in.EarlyExitRate = float64(s.TotalEarlyExits) / float64(s.TotalSessionsStarted)
	}
	if s.TotalSessionsCompleted > 0 {
		in.NegativeFeedbackRate = float64(s.TotalNegativeFeedback) / float64(s.TotalSessionsCompleted)
	}
	in.IsHealthy = in.CompletionRate > minCompletionRate &&
		in.NegativeFeedbackRate < maxNegativeFeedbackRate &&
		in.EarlyExitRate < maxEarlyExitRate
	return in
}

// Recent returns up to limit events, newest first.
func (t *Tracker) Recent(limit int) ([]Event, error) {
	rows, err := t.store.RecentEvents(limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent events: %w", err)
	}
	out := make([]Event, len(rows))
	for i, r := range rows {
		out[i] = Event{
			ID:              r.ID,
			Type:            EventType(r.Type),
			ExerciseID:      r.ExerciseID,
			DurationMinutes: r.DurationMinutes,
			Timestamp:       r.CreatedAt,
		}
	}
	return out, nil
}

// Clear deletes all analytics data.
func (t *Tracker) Clear() error {
	if err := t.store.ClearAnalytics(); err != nil {
		return fmt.Errorf("clearing analytics: %w", err)
	}
	return nil
}
