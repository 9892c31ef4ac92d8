package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed onboarding.yaml
var onboardingYAML []byte

// ErrUnknownAnswer is returned when an onboarding answer names a question or
// option that does not exist.
var ErrUnknownAnswer = errors.New("unknown onboarding answer")

// Question is one onboarding question with its selectable options.
type Question struct {
	ID       string   `yaml:"id" json:"id"`
	Question string   `yaml:"question" json:"question"`
	Subtext  string   `yaml:"subtext" json:"subtext"`
	Options  []Option `yaml:"options" json:"options"`
}

// Option is one answer to a question and the partial effects it applies.
type Option struct {
	ID      string  `yaml:"id" json:"id"`
	Label   string  `yaml:"label" json:"label"`
	Effects Effects `yaml:"effects" json:"effects"`
}

// Effects are partial updates. Nil fields are left untouched.
type Effects struct {
	Baseline          *Baseline                `yaml:"baseline" json:"baseline,omitempty"`
	Sensitivity       *Sensitivity             `yaml:"sensitivity" json:"sensitivity,omitempty"`
	Contraindications *ContraindicationEffects `yaml:"contraindications" json:"contraindications,omitempty"`
	Capacities        *CapacityEffects         `yaml:"capacities" json:"capacities,omitempty"`
}

type ContraindicationEffects struct {
	BreathHolds   *bool `yaml:"breath_holds" json:"breathHolds,omitempty"`
	FastBreathing *bool `yaml:"fast_breathing" json:"fastBreathing,omitempty"`
}

type CapacityEffects struct {
	CalmBreathing    *float64 `yaml:"calm_breathing" json:"calmBreathing,omitempty"`
	FocusStability   *float64 `yaml:"focus_stability" json:"focusStability,omitempty"`
	EnergyRegulation *float64 `yaml:"energy_regulation" json:"energyRegulation,omitempty"`
	HoldTolerance    *float64 `yaml:"hold_tolerance" json:"holdTolerance,omitempty"`
}

var loadQuestions = sync.OnceValue(func() []Question {
	var raw struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(onboardingYAML, &raw); err != nil {
		panic(fmt.Sprintf("profile: embedded onboarding.yaml: %v", err))
	}
	return raw.Questions
})

// Questions returns the onboarding questions in the order they are asked.
func Questions() []Question {
	qs := loadQuestions()
	out := make([]Question, len(qs))
	copy(out, qs)
	return out
}

// ApplyOnboarding applies answers (question id -> option id) to state.
// Answers are applied in question order, so a later question overrides the
// fields an earlier one set, and never touches fields it does not declare.
func ApplyOnboarding(state UserState, answers map[string]string) (UserState, error) {
	questions := loadQuestions()
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	for qid := range answers {
		if !known[qid] {
			return UserState{}, fmt.Errorf("%w: question %q", ErrUnknownAnswer, qid)
		}
	}

	next := state.Clone()
	for _, q := range questions {
		answer, ok := answers[q.ID]
		if !ok {
			continue
		}
		opt, ok := findOption(q, answer)
		if !ok {
			return UserState{}, fmt.Errorf("%w: option %q for question %q", ErrUnknownAnswer, answer, q.ID)
		}
		next = opt.Effects.apply(next)
	}
	return next, nil
}

func findOption(q Question, id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

func (e Effects) apply(s UserState) UserState {
	if e.Baseline != nil {
		s.Baseline = *e.Baseline
	}
	if e.Sensitivity != nil {
		s.Sensitivity = *e.Sensitivity
	}
	if c := e.Contraindications; c != nil {
		if c.BreathHolds != nil {
			s.Contraindications.BreathHolds = *c.BreathHolds
		}
		if c.FastBreathing != nil {
			s.Contraindications.FastBreathing = *c.FastBreathing
		}
	}
	if c := e.Capacities; c != nil {
		if c.CalmBreathing != nil {
			s.Capacities.CalmBreathing = *c.CalmBreathing
		}
		if c.FocusStability != nil {
			s.Capacities.FocusStability = *c.FocusStability
		}
		if c.EnergyRegulation != nil {
			s.Capacities.EnergyRegulation = *c.EnergyRegulation
		}
		if c.HoldTolerance != nil {
			s.Capacities.HoldTolerance = *c.HoldTolerance
		}
	}
	return s
}
