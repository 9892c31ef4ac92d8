package profile

import (
	"fmt"
	"time"
)

// Baseline is the user's self-reported nervous-system arousal tendency.
type Baseline string

const (
	BaselineCalm           Baseline = "calm"
	BaselineNeutral        Baseline = "neutral"
	BaselineStressed       Baseline = "stressed"
	BaselineOverstimulated Baseline = "overstimulated"
)

// Sensitivity is the user's sensitivity to breathwork intensity.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Feedback is how the user felt after a session.
type Feedback string

const (
	FeedbackCalmer        Feedback = "calmer"
	FeedbackSame          Feedback = "same"
	FeedbackMoreActivated Feedback = "moreActivated"
)

// ParseFeedback converts user input to a Feedback. The empty string means no
// feedback was given and yields nil.
func ParseFeedback(s string) (*Feedback, error) {
	if s == "" {
		return nil, nil
	}
	f := Feedback(s)
	switch f {
	case FeedbackCalmer, FeedbackSame, FeedbackMoreActivated:
		return &f, nil
	}
	return nil, &InvalidFeedbackError{Value: s}
}

// InvalidFeedbackError reports an unknown feedback value.
type InvalidFeedbackError struct {
	Value string
}

func (e *InvalidFeedbackError) Error() string {
	return fmt.Sprintf("invalid feedback %q (want calmer, same or moreActivated)", e.Value)
}

// Capacity names one of the four tracked skill dimensions.
type Capacity string

const (
	CapacityCalmBreathing    Capacity = "calmBreathing"
	CapacityFocusStability   Capacity = "focusStability"
	CapacityEnergyRegulation Capacity = "energyRegulation"
	CapacityHoldTolerance    Capacity = "holdTolerance"
)

// AllCapacities lists the capacities in their canonical order. Ties are
// broken by this order wherever a single capacity has to be chosen.
var AllCapacities = []Capacity{
	CapacityCalmBreathing,
	CapacityFocusStability,
	CapacityEnergyRegulation,
	CapacityHoldTolerance,
}

// Contraindications are permanent, user-declared hard restrictions.
// Session feedback never changes them.
type Contraindications struct {
	BreathHolds   bool `json:"breathHolds"`
	FastBreathing bool `json:"fastBreathing"`
}

// Capacities are nominally 1-5 but carry fractional values because positive
// feedback raises them in steps of CapacityStep.
type Capacities struct {
	CalmBreathing    float64 `json:"calmBreathing" validate:"gte=1,lte=5"`
	FocusStability   float64 `json:"focusStability" validate:"gte=1,lte=5"`
	EnergyRegulation float64 `json:"energyRegulation" validate:"gte=1,lte=5"`
	HoldTolerance    float64 `json:"holdTolerance" validate:"gte=1,lte=5"`
}

// Get returns the value of one capacity.
func (c Capacities) Get(name Capacity) float64 {
	switch name {
	case CapacityCalmBreathing:
		return c.CalmBreathing
	case CapacityFocusStability:
		return c.FocusStability
	case CapacityEnergyRegulation:
		return c.EnergyRegulation
	case CapacityHoldTolerance:
		return c.HoldTolerance
	}
	return 0
}

// Lowest returns the lowest-scoring capacity, first in AllCapacities order on ties.
func (c Capacities) Lowest() Capacity {
	lowest := AllCapacities[0]
	for _, name := range AllCapacities[1:] {
		if c.Get(name) < c.Get(lowest) {
			lowest = name
		}
	}
	return lowest
}

// AdaptiveFlags are temporary protective states derived from session outcomes.
type AdaptiveFlags struct {
	AvoidFastBreathing bool `json:"avoidFastBreathing"`
	ReduceIntensity    bool `json:"reduceIntensity"`
	SuggestGrounding   bool `json:"suggestGrounding"`
	ExtendIntegration  bool `json:"extendIntegration"`
}

// SessionRecord is an immutable history entry written once per session.
type SessionRecord struct {
	ID              string    `json:"id" validate:"required"`
	ExerciseID      string    `json:"exerciseId" validate:"required"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes float64   `json:"durationMinutes" validate:"gte=0"`
	CompletedCycles int       `json:"completedCycles" validate:"gte=0"`
	Feedback        *Feedback `json:"feedback" validate:"omitempty,oneof=calmer same moreActivated"`
	WasEarlyExit    bool      `json:"wasEarlyExit"`
}

// UserState is the aggregate root for one user.
type UserState struct {
	ID                  string            `json:"id" validate:"required"`
	OnboardingCompleted bool              `json:"onboardingCompleted"`
	Baseline            Baseline          `json:"baseline" validate:"oneof=calm neutral stressed overstimulated"`
	Sensitivity         Sensitivity       `json:"sensitivity" validate:"oneof=low medium high"`
	Contraindications   Contraindications `json:"contraindications"`
	Capacities          Capacities        `json:"capacities"`
	AdaptiveFlags       AdaptiveFlags     `json:"adaptiveFlags"`
	CurrentDayInProgram int               `json:"currentDayInProgram" validate:"gte=0"`
	LastSessionAt       *time.Time        `json:"lastSessionAt"`
	SessionHistory      []SessionRecord   `json:"sessionHistory" validate:"max=100,dive"`
}

const (
	// MaxHistory caps the session history, most recent first.
	MaxHistory = 100

	// CapacityStep is the increment applied on a "calmer" outcome.
	CapacityStep = 0.2

	MinCapacity = 1.0
	MaxCapacity = 5.0
)

// Default returns the state of a user who has not completed onboarding.
func Default(id string) UserState {
	return UserState{
		ID:          id,
		Baseline:    BaselineNeutral,
		Sensitivity: SensitivityMedium,
		Capacities: Capacities{
			CalmBreathing:    2,
			FocusStability:   2,
			EnergyRegulation: 2,
			HoldTolerance:    2,
		},
		CurrentDayInProgram: 1,
		SessionHistory:      []SessionRecord{},
	}
}

// Clone returns a copy that shares no mutable memory with s.
func (s UserState) Clone() UserState {
	cp := s
	if s.LastSessionAt != nil {
		t := *s.LastSessionAt
		cp.LastSessionAt = &t
	}
	cp.SessionHistory = make([]SessionRecord, len(s.SessionHistory))
	copy(cp.SessionHistory, s.SessionHistory)
	return cp
}

// clampCapacity keeps a capacity value inside [MinCapacity, MaxCapacity].
func clampCapacity(v float64) float64 {
	if v < MinCapacity {
		return MinCapacity
	}
	if v > MaxCapacity {
		return MaxCapacity
	}
	return v
}
