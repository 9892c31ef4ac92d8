package safety

import (
	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/profile"
)

// Decide evaluates ex against state and returns the first matching rule:
//
//  1. exercise trips the user's breath-hold contraindication: block
//  2. exercise trips the user's fast-breathing contraindication: block
//  3. user learned to avoid fast breathing and ex needs it: block
//  4. two or more negative sessions in a row and intensity > 2: block
//  5. hold tolerance below the exercise minimum: adapt the holds
//  6. calm, focus or energy capacity below the minimum: block
//  7. intensity too high for an overstimulated or stressed baseline: block
//  8. high sensitivity: adapt with capped phases
//  9. recovery mode and intensity > 2: adapt with shortened holds
//  10. otherwise allow
//
// ctx is optional. Rule 4 only applies when it is given.
func Decide(ex catalog.Exercise, state profile.UserState, ctx *profile.SessionContext) Decision {
	s := ex.Safety
	alt := s.TraumaSafeAlternativeID

	if s.Contraindicated.BreathHolds && state.Contraindications.BreathHolds {
		return Block(ReasonBreathHolds, alt)
	}
	if s.Contraindicated.FastBreathing && state.Contraindications.FastBreathing {
		return Block(ReasonFastBreathing, alt)
	}

	if state.AdaptiveFlags.AvoidFastBreathing && s.RequiresFastBreathingTolerance {
		return Block(ReasonAdaptiveBlock, alt)
	}

	if ctx != nil && ctx.ConsecutiveNegativeExperiences >= 2 && s.MaxIntensity > 2 {
		return Block(ReasonRecentNegativeExperience, catalog.TraumaSafeID)
	}

	caps := state.Capacities
	req := s.MinimumCapacity
	if req.HoldTolerance > 0 && caps.HoldTolerance < req.HoldTolerance {
		return Adapt(AdaptReducedHoldTolerance, AdaptForLowHoldTolerance(ex.Pattern, caps.HoldTolerance))
	}
	if below(caps.CalmBreathing, req.CalmBreathing) ||
		below(caps.FocusStability, req.FocusStability) ||
		below(caps.EnergyRegulation, req.EnergyRegulation) {
		return Block(ReasonInsufficientCapacity, alt)
	}

	switch {
	case state.Baseline == profile.BaselineOverstimulated && s.MaxIntensity > 2:
		if alt == "" {
			alt = catalog.CoherentID
		}
		return Block(ReasonTooIntenseForBaseline, alt)
	case state.Baseline == profile.BaselineStressed && s.MaxIntensity > 3:
		return Block(ReasonTooIntenseForBaseline, alt)
	}

	if state.Sensitivity == profile.SensitivityHigh {
		return Adapt(AdaptHighSensitivity, AdaptForHighSensitivity(ex.Pattern))
	}

	if state.AdaptiveFlags.ReduceIntensity && s.MaxIntensity > 2 {
		return Adapt(AdaptRecoveryMode, ReduceIntensity(ex.Pattern))
	}

	return Allow(ex.Pattern)
}

// below reports whether have falls short of a set requirement.
func below(have, need float64) bool {
	return need > 0 && have < need
}
