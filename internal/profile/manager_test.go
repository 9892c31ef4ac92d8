package profile

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/storage"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	data map[string]string

	setErr  error
	getCall int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) SetProfileKey(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockStore) GetProfileKey(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCall++
	v, ok := m.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *mockStore) DeleteProfileKeys(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockStore) raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *mockStore, *mockClock) {
	t.Helper()
	store := newMockStore()
	clock := &mockClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	return NewManagerWithClock(store, catalog.Default(), clock), store, clock
}

func feedback(f Feedback) *Feedback { return &f }

// --- Tests ---

func TestState_EmptyStoreReturnsDefault(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	s, err := mgr.State()
	if err != nil {
		t.Fatalf("State error: %v", err)
	}
	if s.ID == "" {
		t.Error("expected generated id")
	}
	if s.OnboardingCompleted {
		t.Error("expected onboarding not completed")
	}
	if s.Baseline != BaselineNeutral || s.Sensitivity != SensitivityMedium {
		t.Errorf("baseline/sensitivity = %s/%s, want neutral/medium", s.Baseline, s.Sensitivity)
	}
	for _, c := range AllCapacities {
		if got := s.Capacities.Get(c); got != 2 {
			t.Errorf("capacity %s = %v, want 2", c, got)
		}
	}
	if s.CurrentDayInProgram != 1 {
		t.Errorf("day = %d, want 1", s.CurrentDayInProgram)
	}
}

func TestState_Cached(t *testing.T) {
	mgr, store, _ := newTestManager(t)

	mgr.State()
	store.mu.Lock()
	calls := store.getCall
	store.mu.Unlock()

	mgr.State()
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.getCall != calls {
		t.Errorf("expected cache hit, store reads went %d -> %d", calls, store.getCall)
	}
}

func TestState_ReturnsCopy(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if _, _, err := mgr.RecordSession(SessionInput{ExerciseID: "coherent", DurationMinutes: 5}); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	s, _ := mgr.State()
	s.SessionHistory[0].ExerciseID = "mutated"
	s.Capacities.CalmBreathing = 5

	again, _ := mgr.State()
	if again.SessionHistory[0].ExerciseID != "coherent" {
		t.Error("mutating returned history leaked into manager")
	}
	if again.Capacities.CalmBreathing != 2 {
		t.Error("mutating returned capacities leaked into manager")
	}
}

func TestSet_PersistsPrimaryAndBackup(t *testing.T) {
	mgr, store, _ := newTestManager(t)

	s := Default("user-1")
	s.Baseline = BaselineStressed
	if err := mgr.Set(s); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for _, key := range []string{stateKey, stateBackupKey} {
		raw, ok := store.raw(key)
		if !ok {
			t.Fatalf("key %s not written", key)
		}
		var got UserState
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", key, err)
		}
		if got.ID != "user-1" || got.Baseline != BaselineStressed {
			t.Errorf("%s = %+v", key, got)
		}
	}
}

func TestSet_RejectsInvalid(t *testing.T) {
	mgr, store, _ := newTestManager(t)

	s := Default("user-1")
	s.Capacities.HoldTolerance = 7
	err := mgr.Set(s)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error = %v, want ErrInvalidState", err)
	}
	raw, _ := store.raw(stateKey)
	var stored UserState
	json.Unmarshal([]byte(raw), &stored)
	if stored.ID == "user-1" || stored.Capacities.HoldTolerance == 7 {
		t.Errorf("invalid state must not be persisted, stored %+v", stored)
	}
}

func TestSet_StoreFailureKeepsCache(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	before, _ := mgr.State()

	store.setErr = errors.New("disk full")
	s := Default("other")
	if err := mgr.Set(s); err == nil {
		t.Fatal("expected error")
	}
	after, _ := mgr.State()
	if after.ID != before.ID {
		t.Errorf("cache changed after failed write: %s -> %s", before.ID, after.ID)
	}
}

func TestLoad_CorruptPrimaryRestoresBackup(t *testing.T) {
	store := newMockStore()
	good := Default("backup-user")
	good.OnboardingCompleted = true
	b, _ := json.Marshal(good)
	store.data[stateKey] = "{not json"
	store.data[stateBackupKey] = string(b)

	mgr := NewManager(store, catalog.Default())
	s, err := mgr.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if s.ID != "backup-user" || !s.OnboardingCompleted {
		t.Errorf("state = %+v, want restored backup", s)
	}

	raw, _ := store.raw(stateKey)
	var primary UserState
	if err := json.Unmarshal([]byte(raw), &primary); err != nil {
		t.Fatalf("primary not rewritten: %v", err)
	}
	if primary.ID != "backup-user" {
		t.Errorf("primary id = %s, want backup-user", primary.ID)
	}
}

func TestLoad_MissingPrimaryRestoresBackup(t *testing.T) {
	store := newMockStore()
	b, _ := json.Marshal(Default("keep-me"))
	store.data[stateBackupKey] = string(b)

	mgr := NewManager(store, catalog.Default())
	s, err := mgr.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if s.ID != "keep-me" {
		t.Errorf("id = %s, want keep-me", s.ID)
	}

	raw, ok := store.raw(stateKey)
	if !ok {
		t.Fatal("primary not rewritten from backup")
	}
	var primary UserState
	if err := json.Unmarshal([]byte(raw), &primary); err != nil || primary.ID != "keep-me" {
		t.Errorf("primary = %+v, err = %v", primary, err)
	}
}

func TestLoad_FreshDefaultIsPersisted(t *testing.T) {
	store := newMockStore()

	first, err := NewManager(store, catalog.Default()).State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	second, err := NewManager(store, catalog.Default()).State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ across managers: %s vs %s", first.ID, second.ID)
	}
	for _, key := range []string{stateKey, stateBackupKey} {
		if _, ok := store.raw(key); !ok {
			t.Errorf("key %s not written on first load", key)
		}
	}
}

func TestLoad_InvalidPrimaryAndBackupStartsFresh(t *testing.T) {
	store := newMockStore()
	bad := Default("bad")
	bad.Baseline = "furious"
	b, _ := json.Marshal(bad)
	store.data[stateKey] = string(b)
	store.data[stateBackupKey] = "[]"

	mgr := NewManager(store, catalog.Default())
	s, err := mgr.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if s.ID == "bad" {
		t.Error("invalid state must not be loaded")
	}
	if s.Baseline != BaselineNeutral {
		t.Errorf("baseline = %s, want neutral", s.Baseline)
	}
}

func TestCompleteOnboarding(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	s, err := mgr.CompleteOnboarding(map[string]string{
		"baseline":          "overwhelmed",
		"experience":        "regular",
		"contraindications": "pregnancy",
	})
	if err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	if !s.OnboardingCompleted {
		t.Error("expected onboarding completed")
	}
	if s.Baseline != BaselineOverstimulated {
		t.Errorf("baseline = %s", s.Baseline)
	}
	// experience is applied after baseline, so its sensitivity wins.
	if s.Sensitivity != SensitivityLow {
		t.Errorf("sensitivity = %s, want low", s.Sensitivity)
	}
	if !s.Contraindications.FastBreathing || s.Contraindications.BreathHolds {
		t.Errorf("contraindications = %+v", s.Contraindications)
	}
}

func TestCompleteOnboarding_UnknownAnswer(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, err := mgr.CompleteOnboarding(map[string]string{"baseline": "ecstatic"})
	if !errors.Is(err, ErrUnknownAnswer) {
		t.Fatalf("error = %v, want ErrUnknownAnswer", err)
	}
	s, _ := mgr.State()
	if s.OnboardingCompleted {
		t.Error("failed onboarding must not mark completion")
	}
}

func TestRecordSession_Calmer(t *testing.T) {
	mgr, _, clock := newTestManager(t)

	s, rec, err := mgr.RecordSession(SessionInput{
		ExerciseID:      "coherent",
		DurationMinutes: 5,
		CompletedCycles: 30,
		Feedback:        feedback(FeedbackCalmer),
	})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected record id")
	}
	if !rec.Timestamp.Equal(clock.Now()) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp, clock.Now())
	}
	if len(s.SessionHistory) != 1 || s.SessionHistory[0].ID != rec.ID {
		t.Fatalf("history = %+v", s.SessionHistory)
	}
	if got := s.Capacities.CalmBreathing; got < 2.19 || got > 2.21 {
		t.Errorf("calmBreathing = %v, want 2.2", got)
	}
	if s.LastSessionAt == nil || !s.LastSessionAt.Equal(clock.Now()) {
		t.Errorf("lastSessionAt = %v", s.LastSessionAt)
	}
}

func TestRecordSession_UnknownExercise(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, _, err := mgr.RecordSession(SessionInput{ExerciseID: "wim-hof"})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("error = %v, want catalog.ErrNotFound", err)
	}
}

func TestRecordSession_InvalidInput(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, _, err := mgr.RecordSession(SessionInput{ExerciseID: "coherent", DurationMinutes: -1})
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("error = %v, want ErrInvalidSession", err)
	}
}

func TestRecordSession_ConcurrentNoLostUpdates(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := mgr.RecordSession(SessionInput{ExerciseID: "coherent", DurationMinutes: 1}); err != nil {
				t.Errorf("RecordSession: %v", err)
			}
		}()
	}
	wg.Wait()

	s, _ := mgr.State()
	if len(s.SessionHistory) != n {
		t.Errorf("history length = %d, want %d", len(s.SessionHistory), n)
	}
}

func TestReset(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	before, _ := mgr.CompleteOnboarding(map[string]string{"baseline": "calm"})

	s, err := mgr.Reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.ID == before.ID {
		t.Error("expected a new id after reset")
	}
	if s.OnboardingCompleted {
		t.Error("expected onboarding cleared")
	}
	raw, ok := store.raw(stateKey)
	if !ok {
		t.Fatal("fresh state not persisted")
	}
	var persisted UserState
	json.Unmarshal([]byte(raw), &persisted)
	if persisted.ID != s.ID {
		t.Errorf("persisted id = %s, want %s", persisted.ID, s.ID)
	}
}

func TestSubscribe(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	var got []UserState
	cancel := mgr.Subscribe(func(s UserState) { got = append(got, s) })

	mgr.CompleteOnboarding(map[string]string{"baseline": "stressed"})
	if len(got) != 1 || got[0].Baseline != BaselineStressed {
		t.Fatalf("notifications = %+v", got)
	}

	cancel()
	cancel()
	mgr.RecordSession(SessionInput{ExerciseID: "coherent"})
	if len(got) != 1 {
		t.Errorf("expected no notification after cancel, got %d", len(got))
	}
}

func TestSubscribe_NotCalledOnFailure(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	calls := 0
	mgr.Subscribe(func(UserState) { calls++ })
	mgr.CompleteOnboarding(map[string]string{"nope": "x"})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestManagerSessionContext(t *testing.T) {
	mgr, _, clock := newTestManager(t)
	mgr.RecordSession(SessionInput{ExerciseID: "coherent", Feedback: feedback(FeedbackMoreActivated)})
	clock.Advance(48 * time.Hour)

	ctx, err := mgr.SessionContext()
	if err != nil {
		t.Fatalf("SessionContext: %v", err)
	}
	if ctx.DaysSinceLastSession == nil || *ctx.DaysSinceLastSession != 2 {
		t.Errorf("daysSinceLastSession = %v, want 2", ctx.DaysSinceLastSession)
	}
	if ctx.ConsecutiveNegativeExperiences != 1 {
		t.Errorf("consecutive negatives = %d, want 1", ctx.ConsecutiveNegativeExperiences)
	}
	if ctx.TimeOfDay != Morning {
		t.Errorf("timeOfDay = %s, want morning", ctx.TimeOfDay)
	}
}

func TestContextFor_UsesClockLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	store := newMockStore()
	clock := &mockClock{now: time.Date(2025, 3, 10, 22, 30, 0, 0, tokyo)}
	mgr := NewManagerWithClock(store, catalog.Default(), clock)

	s, _, err := mgr.RecordSession(SessionInput{ExerciseID: "coherent", DurationMinutes: 5})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}
	ctx := mgr.ContextFor(s)
	if ctx.TimeOfDay != Night {
		t.Errorf("timeOfDay = %s, want night (13:30 UTC is 22:30 local)", ctx.TimeOfDay)
	}
	if ctx.StreakDays != 1 {
		t.Errorf("streak = %d, want 1", ctx.StreakDays)
	}
}
