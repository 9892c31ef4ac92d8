package profile

import (
	"time"
)

// TimeOfDay buckets the local hour a session is started in.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// TimeOfDayAt returns the bucket for t's local hour.
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h < 10:
		return Morning
	case h < 14:
		return Afternoon
	case h < 20:
		return Evening
	default:
		return Night
	}
}

// SessionContext carries history-derived signals the decision functions can
// optionally take into account.
type SessionContext struct {
	TimeOfDay                      TimeOfDay `json:"timeOfDay"`
	DaysSinceLastSession           *int      `json:"daysSinceLastSession"`
	RecentFeedback                 *Feedback `json:"recentFeedback"`
	ConsecutiveNegativeExperiences int       `json:"consecutiveNegativeExperiences"`
	StreakDays                     int       `json:"streakDays"`
}

// recentWindow is how many sessions are inspected for consecutive negatives.
const recentWindow = 5

// BuildSessionContext derives a SessionContext from state as seen at now.
// Day boundaries are taken in now's location.
func BuildSessionContext(state UserState, now time.Time) SessionContext {
	ctx := SessionContext{
		TimeOfDay: TimeOfDayAt(now),
	}

	if state.LastSessionAt != nil {
		days := int(now.Sub(*state.LastSessionAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		ctx.DaysSinceLastSession = &days
	}

	recent := state.SessionHistory
	if len(recent) > recentWindow {
		recent = recent[:recentWindow]
	}
	if len(recent) > 0 && recent[0].Feedback != nil {
		f := *recent[0].Feedback
		ctx.RecentFeedback = &f
	}
	ctx.ConsecutiveNegativeExperiences = countConsecutiveNegative(recent)
	ctx.StreakDays = streakDays(state.SessionHistory, now)
	return ctx
}

// countConsecutiveNegative counts leading sessions that ended badly: either
// moreActivated feedback or an early exit.
func countConsecutiveNegative(sessions []SessionRecord) int {
	n := 0
	for _, s := range sessions {
		negative := s.WasEarlyExit || (s.Feedback != nil && *s.Feedback == FeedbackMoreActivated)
		if !negative {
			break
		}
		n++
	}
	return n
}

// streakDays counts consecutive calendar days with at least one session,
// ending today. Sessions must be ordered most recent first.
func streakDays(sessions []SessionRecord, now time.Time) int {
	loc := now.Location()
	check := startOfDay(now, loc)
	streak := 0
	for _, s := range sessions {
		day := startOfDay(s.Timestamp.In(loc), loc)
		switch {
		case day.Equal(check):
			streak++
			check = check.AddDate(0, 0, -1)
		case day.Before(check):
			return streak
		}
	}
	return streak
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
