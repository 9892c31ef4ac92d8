package profile

import (
	"testing"
	"time"
)

func TestTimeOfDayAt(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{0, Morning},
		{9, Morning},
		{10, Afternoon},
		{13, Afternoon},
		{14, Evening},
		{19, Evening},
		{20, Night},
		{23, Night},
	}
	for _, tt := range tests {
		at := time.Date(2025, 1, 1, tt.hour, 30, 0, 0, time.UTC)
		if got := TimeOfDayAt(at); got != tt.want {
			t.Errorf("hour %d = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestBuildSessionContext_Empty(t *testing.T) {
	ctx := BuildSessionContext(Default("u"), t0)
	if ctx.DaysSinceLastSession != nil {
		t.Errorf("daysSinceLastSession = %v, want nil", *ctx.DaysSinceLastSession)
	}
	if ctx.RecentFeedback != nil {
		t.Error("expected no recent feedback")
	}
	if ctx.ConsecutiveNegativeExperiences != 0 || ctx.StreakDays != 0 {
		t.Errorf("ctx = %+v", ctx)
	}
}

func withHistory(recs ...SessionRecord) UserState {
	s := Default("u")
	s.SessionHistory = recs
	if len(recs) > 0 {
		ts := recs[0].Timestamp
		s.LastSessionAt = &ts
	}
	return s
}

func TestBuildSessionContext_ConsecutiveNegatives(t *testing.T) {
	s := withHistory(
		SessionRecord{ID: "1", ExerciseID: "box", Timestamp: t0, Feedback: feedback(FeedbackMoreActivated)},
		SessionRecord{ID: "2", ExerciseID: "box", Timestamp: t0.Add(-time.Hour), WasEarlyExit: true},
		SessionRecord{ID: "3", ExerciseID: "box", Timestamp: t0.Add(-2 * time.Hour), Feedback: feedback(FeedbackCalmer)},
		SessionRecord{ID: "4", ExerciseID: "box", Timestamp: t0.Add(-3 * time.Hour), WasEarlyExit: true},
	)
	ctx := BuildSessionContext(s, t0.Add(30*time.Minute))
	if ctx.ConsecutiveNegativeExperiences != 2 {
		t.Errorf("consecutive negatives = %d, want 2", ctx.ConsecutiveNegativeExperiences)
	}
	if ctx.RecentFeedback == nil || *ctx.RecentFeedback != FeedbackMoreActivated {
		t.Errorf("recent feedback = %v", ctx.RecentFeedback)
	}
	if ctx.DaysSinceLastSession == nil || *ctx.DaysSinceLastSession != 0 {
		t.Errorf("daysSinceLastSession = %v, want 0", ctx.DaysSinceLastSession)
	}
}

func TestBuildSessionContext_NegativesOnlyInRecentWindow(t *testing.T) {
	var recs []SessionRecord
	for i := 0; i < 8; i++ {
		recs = append(recs, SessionRecord{ID: "x", ExerciseID: "box", Timestamp: t0.Add(-time.Duration(i) * time.Hour), WasEarlyExit: true})
	}
	ctx := BuildSessionContext(withHistory(recs...), t0)
	if ctx.ConsecutiveNegativeExperiences != recentWindow {
		t.Errorf("consecutive negatives = %d, want %d", ctx.ConsecutiveNegativeExperiences, recentWindow)
	}
}

func TestBuildSessionContext_Streak(t *testing.T) {
	day := 24 * time.Hour
	s := withHistory(
		SessionRecord{ID: "1", ExerciseID: "box", Timestamp: t0},
		SessionRecord{ID: "2", ExerciseID: "box", Timestamp: t0.Add(-2 * time.Hour)},
		SessionRecord{ID: "3", ExerciseID: "box", Timestamp: t0.Add(-day)},
		SessionRecord{ID: "4", ExerciseID: "box", Timestamp: t0.Add(-2 * day)},
		SessionRecord{ID: "5", ExerciseID: "box", Timestamp: t0.Add(-4 * day)},
	)
	ctx := BuildSessionContext(s, t0.Add(time.Hour))
	if ctx.StreakDays != 3 {
		t.Errorf("streak = %d, want 3", ctx.StreakDays)
	}
}

func TestBuildSessionContext_StreakBrokenToday(t *testing.T) {
	s := withHistory(SessionRecord{ID: "1", ExerciseID: "box", Timestamp: t0.Add(-24 * time.Hour)})
	ctx := BuildSessionContext(s, t0)
	if ctx.StreakDays != 0 {
		t.Errorf("streak = %d, want 0 when nothing today", ctx.StreakDays)
	}
	if *ctx.DaysSinceLastSession != 1 {
		t.Errorf("daysSinceLastSession = %d, want 1", *ctx.DaysSinceLastSession)
	}
}
