package recommend

import (
	"math"
	"strings"

	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/profile"
)

// DurationRecommendation holds a session length. Round-based exercises fill
// Rounds and leave Minutes at 0; all others fill Minutes and leave Rounds at 0.
type DurationRecommendation struct {
	Minutes   int    `json:"minutes"`
	Rounds    int    `json:"rounds,omitempty"`
	Reasoning string `json:"reasoning"`
}

const (
	fallbackMinutes = 3
	minimumLength   = 2
)

// Duration multipliers.
const (
	overstimulatedFactor = 0.6
	stressedFactor       = 0.8
	sensitiveFactor      = 0.8
	capacityBonus        = 1.2
	nightFactor          = 0.8
	streakBonus          = 1.1

	capacityBonusAbove = 3
	streakBonusAbove   = 7
)

// Duration scales the exercise's default length by the user's state and the
// optional context. The result is never below 2 minutes or 2 rounds.
func Duration(ex catalog.Exercise, state profile.UserState, ctx *profile.SessionContext) DurationRecommendation {
	multiplier := 1.0
	var factors []string

	switch state.Baseline {
	case profile.BaselineOverstimulated:
		multiplier *= overstimulatedFactor
		factors = append(factors, "overstimulated baseline")
	case profile.BaselineStressed:
		multiplier *= stressedFactor
		factors = append(factors, "stressed baseline")
	}

	if state.Sensitivity == profile.SensitivityHigh {
		multiplier *= sensitiveFactor
		factors = append(factors, "high sensitivity")
	}

	if (state.Capacities.CalmBreathing+state.Capacities.FocusStability)/2 > capacityBonusAbove {
		multiplier *= capacityBonus
		factors = append(factors, "higher capacity")
	}

	if ctx != nil {
		if ctx.TimeOfDay == profile.Night {
			multiplier *= nightFactor
			factors = append(factors, "nighttime")
		}
		if ctx.StreakDays > streakBonusAbove {
			multiplier *= streakBonus
			factors = append(factors, "practice streak")
		}
	}

	reasoning := "default"
	if len(factors) > 0 {
		reasoning = strings.Join(factors, ", ")
	}

	if ex.RoundBased() {
		return DurationRecommendation{
			Rounds:    scale(ex.DefaultRounds, multiplier),
			Reasoning: reasoning,
		}
	}
	base := ex.DefaultMinutes
	if base <= 0 {
		base = fallbackMinutes
	}
	return DurationRecommendation{
		Minutes:   scale(base, multiplier),
		Reasoning: reasoning,
	}
}

func scale(base int, multiplier float64) int {
	return max(minimumLength, int(math.Round(float64(base)*multiplier)))
}
