package safety

import (
	"math"

	"github.com/andas-app/andas/internal/catalog"
)

// minHoldMultiplier keeps some hold even at the lowest tolerance.
const minHoldMultiplier = 0.3

// High-sensitivity phase caps, in seconds.
const (
	sensitiveInhaleCap  = 4
	sensitiveHoldInCap  = 2
	sensitiveExhaleCap  = 6
	sensitiveHoldOutCap = 1
)

const recoveryHoldFactor = 0.6

// AdaptForLowHoldTolerance shortens both holds by max(0.3, holdTolerance/5),
// rounding to whole seconds. Inhale and exhale are left alone.
func AdaptForLowHoldTolerance(p catalog.BreathPattern, holdTolerance float64) catalog.BreathPattern {
	m := math.Max(minHoldMultiplier, holdTolerance/5)
	return catalog.BreathPattern{
		Inhale:  p.Inhale,
		HoldIn:  math.Max(0, math.Round(p.HoldIn*m)),
		Exhale:  p.Exhale,
		HoldOut: math.Max(0, math.Round(p.HoldOut*m)),
	}
}

// AdaptForHighSensitivity caps every phase. Phases already shorter than
// their cap are kept.
func AdaptForHighSensitivity(p catalog.BreathPattern) catalog.BreathPattern {
	return catalog.BreathPattern{
		Inhale:  math.Min(p.Inhale, sensitiveInhaleCap),
		HoldIn:  math.Min(p.HoldIn, sensitiveHoldInCap),
		Exhale:  math.Min(p.Exhale, sensitiveExhaleCap),
		HoldOut: math.Min(p.HoldOut, sensitiveHoldOutCap),
	}
}

// ReduceIntensity takes 60% of each hold, floored to whole seconds.
func ReduceIntensity(p catalog.BreathPattern) catalog.BreathPattern {
	return catalog.BreathPattern{
		Inhale:  p.Inhale,
		HoldIn:  math.Max(0, math.Floor(p.HoldIn*recoveryHoldFactor)),
		Exhale:  p.Exhale,
		HoldOut: math.Max(0, math.Floor(p.HoldOut*recoveryHoldFactor)),
	}
}
