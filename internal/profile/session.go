package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/andas-app/andas/internal/catalog"
)

// NewSessionRecord builds the immutable record for a finished or aborted session.
func NewSessionRecord(exerciseID string, durationMinutes float64, cycles int, feedback *Feedback, wasEarlyExit bool, at time.Time) SessionRecord {
	return SessionRecord{
		ID:              uuid.New().String(),
		ExerciseID:      exerciseID,
		Timestamp:       at.UTC(),
		DurationMinutes: durationMinutes,
		CompletedCycles: cycles,
		Feedback:        feedback,
		WasEarlyExit:    wasEarlyExit,
	}
}

// ApplySession returns the state that results from recording rec for ex.
//
// The record is always prepended to the history. Capacities and adaptive
// flags only move on a completed session with feedback:
//   - calmer raises calm breathing by CapacityStep and clears reduceIntensity
//     and suggestGrounding;
//   - moreActivated sets reduceIntensity, suggestGrounding and
//     extendIntegration, plus avoidFastBreathing if ex needs fast breathing;
//   - same changes nothing.
//
// extendIntegration and avoidFastBreathing are never cleared here, and
// contraindications are never touched.
func ApplySession(state UserState, ex catalog.Exercise, rec SessionRecord) UserState {
	next := state.Clone()

	if !rec.WasEarlyExit && rec.Feedback != nil {
		switch *rec.Feedback {
		case FeedbackCalmer:
			next.Capacities.CalmBreathing = clampCapacity(next.Capacities.CalmBreathing + CapacityStep)
			next.AdaptiveFlags.ReduceIntensity = false
			next.AdaptiveFlags.SuggestGrounding = false
		case FeedbackMoreActivated:
			next.AdaptiveFlags.ReduceIntensity = true
			next.AdaptiveFlags.SuggestGrounding = true
			next.AdaptiveFlags.ExtendIntegration = true
			if ex.Safety.RequiresFastBreathingTolerance {
				next.AdaptiveFlags.AvoidFastBreathing = true
			}
		}
	}

	ts := rec.Timestamp
	next.LastSessionAt = &ts

	history := make([]SessionRecord, 0, min(len(next.SessionHistory)+1, MaxHistory))
	history = append(history, rec)
	for _, r := range next.SessionHistory {
		if len(history) == MaxHistory {
			break
		}
		history = append(history, r)
	}
	next.SessionHistory = history
	return next
}
