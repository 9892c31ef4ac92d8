// Package recommend picks the exercise a user should do next and how long it
// should run, using the safety package for every candidate.
package recommend

import (
	"fmt"
	"slices"

	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/profile"
	"github.com/andas-app/andas/internal/safety"
)

// Status is how a candidate is shown in a listing.
type Status string

const (
	StatusAvailable Status = "available"
	StatusAdapted   Status = "adapted"
	StatusBlocked   Status = "blocked"
)

func statusOf(d safety.Decision) Status {
	switch d.Kind {
	case safety.KindBlock:
		return StatusBlocked
	case safety.KindAdapt:
		return StatusAdapted
	}
	return StatusAvailable
}

func (s Status) rank() int {
	switch s {
	case StatusAvailable:
		return 0
	case StatusAdapted:
		return 1
	}
	return 2
}

// Candidate is one exercise with the decision it got for a user.
type Candidate struct {
	Exercise catalog.Exercise `json:"exercise"`
	Decision safety.Decision  `json:"decision"`
	Status   Status           `json:"displayStatus"`
}

// Result is a recommendation. Decision is never a block.
type Result struct {
	Exercise     catalog.Exercise   `json:"exercise"`
	Decision     safety.Decision    `json:"decision"`
	Reasoning    string             `json:"reasoning"`
	Alternatives []catalog.Exercise `json:"alternatives"`
}

// Engine recommends exercises from a catalog.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates an Engine over c.
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// gentleIntensity is the highest intensity offered in grounding and recovery.
const gentleIntensity = 2

// Recommend returns the best exercise for state right now:
//
//  1. overstimulated or needs grounding: trauma-safe, as is
//  2. recovery mode: first non-blocked calm exercise of intensity <= 2
//  3. otherwise: first non-blocked calm exercise that trains the user's
//     weakest capacity, else the first non-blocked one
//
// When nothing survives, it falls back to the coherent exercise.
func (e *Engine) Recommend(state profile.UserState, ctx *profile.SessionContext) Result {
	flags := state.AdaptiveFlags

	if state.Baseline == profile.BaselineOverstimulated || flags.SuggestGrounding {
		ts := e.catalog.TraumaSafe()
		return Result{
			Exercise:     ts,
			Decision:     safety.Allow(ts.Pattern),
			Reasoning:    "nervous system needs grounding: trauma-safe exercise prioritized",
			Alternatives: e.groundingAlternatives(state, ctx, ts.ID),
		}
	}

	if flags.ReduceIntensity {
		var gentle []Candidate
		for _, c := range e.ListCategory(catalog.CategoryCalm, state, ctx) {
			if !c.Decision.Blocked() && c.Exercise.Safety.MaxIntensity <= gentleIntensity {
				gentle = append(gentle, c)
			}
		}
		if len(gentle) > 0 {
			return pick(gentle, 0, "recovery mode: low intensity exercise selected")
		}
	}

	var open []Candidate
	for _, c := range e.ListCategory(catalog.CategoryCalm, state, ctx) {
		if !c.Decision.Blocked() {
			open = append(open, c)
		}
	}
	if len(open) > 0 {
		target := state.Capacities.Lowest()
		idx := slices.IndexFunc(open, func(c Candidate) bool {
			return c.Exercise.Safety.MinimumCapacity.References(string(target))
		})
		if idx < 0 {
			idx = 0
		}
		return pick(open, idx, fmt.Sprintf("progressive challenge targeting %s", target))
	}

	co := e.catalog.Coherent()
	return Result{
		Exercise:     co,
		Decision:     safety.Allow(co.Pattern),
		Reasoning:    "fallback to safe default",
		Alternatives: []catalog.Exercise{},
	}
}

// pick selects candidates[idx] and offers up to two of the others.
func pick(candidates []Candidate, idx int, reasoning string) Result {
	alts := make([]catalog.Exercise, 0, 2)
	for i, c := range candidates {
		if i == idx {
			continue
		}
		if len(alts) == 2 {
			break
		}
		alts = append(alts, c.Exercise)
	}
	return Result{
		Exercise:     candidates[idx].Exercise,
		Decision:     candidates[idx].Decision,
		Reasoning:    reasoning,
		Alternatives: alts,
	}
}

// groundingAlternatives returns up to two other gentle calm exercises in
// catalog order, skipping any the user is blocked from.
func (e *Engine) groundingAlternatives(state profile.UserState, ctx *profile.SessionContext, exclude string) []catalog.Exercise {
	out := make([]catalog.Exercise, 0, 2)
	for _, ex := range e.catalog.ByCategory(catalog.CategoryCalm) {
		if len(out) == 2 {
			break
		}
		if ex.ID == exclude || ex.Safety.MaxIntensity > gentleIntensity {
			continue
		}
		if safety.Decide(ex, state, ctx).Blocked() {
			continue
		}
		out = append(out, ex)
	}
	return out
}

// ListCategory returns every exercise in category with its decision, sorted
// available first, then adapted, then blocked, and by intensity within each
// group. Catalog order breaks remaining ties.
func (e *Engine) ListCategory(category catalog.Category, state profile.UserState, ctx *profile.SessionContext) []Candidate {
	exs := e.catalog.ByCategory(category)
	out := make([]Candidate, 0, len(exs))
	for _, ex := range exs {
		d := safety.Decide(ex, state, ctx)
		out = append(out, Candidate{Exercise: ex, Decision: d, Status: statusOf(d)})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		if ra, rb := a.Status.rank(), b.Status.rank(); ra != rb {
			return ra - rb
		}
		return a.Exercise.Safety.MaxIntensity - b.Exercise.Safety.MaxIntensity
	})
	return out
}

// Check looks up an exercise and decides it for state.
func (e *Engine) Check(exerciseID string, state profile.UserState, ctx *profile.SessionContext) (catalog.Exercise, safety.Decision, error) {
	ex, err := e.catalog.ByID(exerciseID)
	if err != nil {
		return catalog.Exercise{}, safety.Decision{}, err
	}
	return ex, safety.Decide(ex, state, ctx), nil
}
