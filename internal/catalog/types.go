package catalog

import (
	"errors"
	"fmt"
)

// Category groups exercises by their intended effect.
type Category string

const (
	CategoryCalm   Category = "calm"
	CategoryFocus  Category = "focus"
	CategoryEnergy Category = "energy"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCalm, CategoryFocus, CategoryEnergy:
		return true
	}
	return false
}

// Well-known exercise ids the engine falls back to.
const (
	TraumaSafeID = "trauma-safe"
	CoherentID   = "coherent"
)

// BreathPattern is the four-phase timing of one breathing cycle, in seconds.
type BreathPattern struct {
	Inhale  float64 `yaml:"inhale" json:"inhale"`
	HoldIn  float64 `yaml:"hold_in" json:"holdIn"`
	Exhale  float64 `yaml:"exhale" json:"exhale"`
	HoldOut float64 `yaml:"hold_out" json:"holdOut"`
}

// CycleSeconds returns the length of one full cycle.
func (p BreathPattern) CycleSeconds() float64 {
	return p.Inhale + p.HoldIn + p.Exhale + p.HoldOut
}

// Validate rejects negative phases and patterns with no phase at all.
func (p BreathPattern) Validate() error {
	if p.Inhale < 0 || p.HoldIn < 0 || p.Exhale < 0 || p.HoldOut < 0 {
		return errors.New("pattern has a negative phase")
	}
	if p.CycleSeconds() == 0 {
		return errors.New("pattern has no non-zero phase")
	}
	return nil
}

// CapacityRequirements is a partial mapping of capacity name to the minimum
// level an exercise needs. A zero field means no requirement.
type CapacityRequirements struct {
	CalmBreathing    float64 `yaml:"calm_breathing" json:"calmBreathing,omitempty"`
	FocusStability   float64 `yaml:"focus_stability" json:"focusStability,omitempty"`
	EnergyRegulation float64 `yaml:"energy_regulation" json:"energyRegulation,omitempty"`
	HoldTolerance    float64 `yaml:"hold_tolerance" json:"holdTolerance,omitempty"`
}

// References reports whether the requirement set names the given capacity.
func (r CapacityRequirements) References(capacity string) bool {
	switch capacity {
	case "calmBreathing":
		return r.CalmBreathing > 0
	case "focusStability":
		return r.FocusStability > 0
	case "energyRegulation":
		return r.EnergyRegulation > 0
	case "holdTolerance":
		return r.HoldTolerance > 0
	}
	return false
}

// Contraindicated lists the hard contraindication flags an exercise trips.
type Contraindicated struct {
	BreathHolds   bool `yaml:"breath_holds" json:"breathHolds,omitempty"`
	FastBreathing bool `yaml:"fast_breathing" json:"fastBreathing,omitempty"`
}

// Safety is the static safety profile declared by an exercise.
type Safety struct {
	MaxIntensity                   int                  `yaml:"max_intensity" json:"maxIntensity"`
	RequiresHoldTolerance          bool                 `yaml:"requires_hold_tolerance" json:"requiresHoldTolerance"`
	RequiresFastBreathingTolerance bool                 `yaml:"requires_fast_breathing_tolerance" json:"requiresFastBreathingTolerance"`
	MinimumCapacity                CapacityRequirements `yaml:"minimum_capacity" json:"minimumCapacity"`
	TraumaSafeAlternativeID        string               `yaml:"trauma_safe_alternative_id" json:"traumaSafeAlternativeId,omitempty"`
	Contraindicated                Contraindicated      `yaml:"contraindicated" json:"contraindicated"`
}

// Guidance holds optional spoken/written cues for the start, middle and end.
type Guidance struct {
	Start string `yaml:"start" json:"start,omitempty"`
	Mid   string `yaml:"mid" json:"mid,omitempty"`
	End   string `yaml:"end" json:"end,omitempty"`
}

// Exercise is an immutable catalog entry.
type Exercise struct {
	ID               string        `yaml:"id" json:"id"`
	Name             string        `yaml:"name" json:"name"`
	Category         Category      `yaml:"category" json:"category"`
	ShortDescription string        `yaml:"short_description" json:"shortDescription"`
	Description      string        `yaml:"description" json:"description"`
	Pattern          BreathPattern `yaml:"pattern" json:"pattern"`
	DefaultMinutes   int           `yaml:"default_minutes" json:"defaultMinutes,omitempty"`
	DefaultRounds    int           `yaml:"default_rounds" json:"defaultRounds,omitempty"`
	Guidance         Guidance      `yaml:"guidance" json:"guidance"`
	Safety           Safety        `yaml:"safety" json:"safety"`
}

// RoundBased reports whether the exercise's default duration is counted in rounds.
func (e Exercise) RoundBased() bool {
	return e.DefaultRounds > 0
}

func (e Exercise) validate() error {
	if e.ID == "" {
		return errors.New("exercise has empty id")
	}
	if !e.Category.Valid() {
		return fmt.Errorf("exercise %q: unknown category %q", e.ID, e.Category)
	}
	if err := e.Pattern.Validate(); err != nil {
		return fmt.Errorf("exercise %q: %w", e.ID, err)
	}
	if e.Safety.MaxIntensity < 1 || e.Safety.MaxIntensity > 5 {
		return fmt.Errorf("exercise %q: max_intensity %d out of range 1-5", e.ID, e.Safety.MaxIntensity)
	}
	if (e.DefaultMinutes > 0) == (e.DefaultRounds > 0) {
		return fmt.Errorf("exercise %q: exactly one of default_minutes and default_rounds must be set", e.ID)
	}
	return nil
}
