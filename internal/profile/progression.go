package profile

import (
	"math"

	"github.com/andas-app/andas/internal/catalog"
)

// Trend summarises how recent sessions for a capacity went.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// CapacityProgression describes where a capacity stands and where it is heading.
// SessionsToNextLevel is -1 when no recent session was positive.
type CapacityProgression struct {
	Capacity            Capacity `json:"capacity"`
	Current             float64  `json:"current"`
	Target              float64  `json:"target"`
	Trend               Trend    `json:"trend"`
	SessionsToNextLevel int      `json:"sessionsToNextLevel"`
}

// trainingExercise maps each capacity to the exercise that trains it.
var trainingExercise = map[Capacity]string{
	CapacityCalmBreathing:    catalog.CoherentID,
	CapacityFocusStability:   "box",
	CapacityEnergyRegulation: "physiological-sigh",
	CapacityHoldTolerance:    "478",
}

const progressionWindow = 10

// Progression estimates progress for one capacity from the last sessions of
// the exercise that trains it.
func Progression(capacity Capacity, state UserState) CapacityProgression {
	current := state.Capacities.Get(capacity)

	exerciseID, ok := trainingExercise[capacity]
	if !ok {
		exerciseID = catalog.CoherentID
	}
	var relevant []SessionRecord
	for _, s := range state.SessionHistory {
		if s.ExerciseID != exerciseID {
			continue
		}
		relevant = append(relevant, s)
		if len(relevant) == progressionWindow {
			break
		}
	}

	sessionsToNext := -1
	if rate := positiveRate(relevant); rate > 0 {
		sessionsToNext = int(math.Ceil((MaxCapacity - current) / (rate * CapacityStep)))
	}

	return CapacityProgression{
		Capacity:            capacity,
		Current:             current,
		Target:              math.Min(MaxCapacity, current+1),
		Trend:               trend(relevant),
		SessionsToNextLevel: sessionsToNext,
	}
}

// AllProgressions returns Progression for every capacity in canonical order.
func AllProgressions(state UserState) []CapacityProgression {
	out := make([]CapacityProgression, 0, len(AllCapacities))
	for _, c := range AllCapacities {
		out = append(out, Progression(c, state))
	}
	return out
}

func trend(sessions []SessionRecord) Trend {
	if len(sessions) < 3 {
		return TrendStable
	}
	var positive, negative int
	for _, s := range sessions[:3] {
		if s.Feedback == nil {
			continue
		}
		switch *s.Feedback {
		case FeedbackCalmer:
			positive++
		case FeedbackMoreActivated:
			negative++
		}
	}
	switch {
	case positive >= 2:
		return TrendImproving
	case negative >= 2:
		return TrendDeclining
	}
	return TrendStable
}

// positiveRate is the share of calmer outcomes. With no history it assumes 0.5.
func positiveRate(sessions []SessionRecord) float64 {
	if len(sessions) == 0 {
		return 0.5
	}
	positive := 0
	for _, s := range sessions {
		if s.Feedback != nil && *s.Feedback == FeedbackCalmer {
			positive++
		}
	}
	return float64(positive) / float64(len(sessions))
}
