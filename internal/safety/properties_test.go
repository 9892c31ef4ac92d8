package safety

import (
	"testing"

	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/profile"
)

// profiles enumerates a grid of user states covering every enum value, flag
// and a spread of capacity levels.
func profiles() []profile.UserState {
	baselines := []profile.Baseline{profile.BaselineCalm, profile.BaselineNeutral, profile.BaselineStressed, profile.BaselineOverstimulated}
	sensitivities := []profile.Sensitivity{profile.SensitivityLow, profile.SensitivityMedium, profile.SensitivityHigh}
	levels := []float64{1, 1.6, 2, 3.4, 5}

	var out []profile.UserState
	for _, b := range baselines {
		for _, s := range sensitivities {
			for _, lvl := range levels {
				for flags := 0; flags < 16; flags++ {
					for contra := 0; contra < 4; contra++ {
						st := profile.Default("u")
						st.Baseline = b
						st.Sensitivity = s
						st.Capacities = profile.Capacities{CalmBreathing: lvl, FocusStability: lvl, EnergyRegulation: 6 - lvl, HoldTolerance: lvl}
						st.AdaptiveFlags = profile.AdaptiveFlags{
							AvoidFastBreathing: flags&1 != 0,
							ReduceIntensity:    flags&2 != 0,
							SuggestGrounding:   flags&4 != 0,
							ExtendIntegration:  flags&8 != 0,
						}
						st.Contraindications = profile.Contraindications{
							BreathHolds:   contra&1 != 0,
							FastBreathing: contra&2 != 0,
						}
						out = append(out, st)
					}
				}
			}
		}
	}
	return out
}

func exercises() []catalog.Exercise {
	all := catalog.Default().All()
	fast := intense()
	fast.Safety.Contraindicated.FastBreathing = true
	holds := intense()
	holds.Safety.Contraindicated.BreathHolds = true
	holds.Safety.MinimumCapacity.HoldTolerance = 4
	return append(all, intense(), fast, holds)
}

func contexts() []*profile.SessionContext {
	return []*profile.SessionContext{
		nil,
		{ConsecutiveNegativeExperiences: 0},
		{ConsecutiveNegativeExperiences: 3},
	}
}

func TestProperty_ContraindicationsAbsolute(t *testing.T) {
	for _, ex := range exercises() {
		for _, st := range profiles() {
			for _, ctx := range contexts() {
				d := Decide(ex, st, ctx)
				if ex.Safety.Contraindicated.BreathHolds && st.Contraindications.BreathHolds {
					if d.Kind != KindBlock || d.Reason != ReasonBreathHolds {
						t.Fatalf("%s: decision = %s, want block(breathHolds)", ex.ID, d)
					}
					continue
				}
				if ex.Safety.Contraindicated.FastBreathing && st.Contraindications.FastBreathing {
					if d.Kind != KindBlock || d.Reason != ReasonFastBreathing {
						t.Fatalf("%s: decision = %s, want block(fastBreathing)", ex.ID, d)
					}
				}
			}
		}
	}
}

func TestProperty_HighSensitivityCap(t *testing.T) {
	for _, ex := range exercises() {
		for _, st := range profiles() {
			if st.Sensitivity != profile.SensitivityHigh {
				continue
			}
			d := Decide(ex, st, nil)
			if d.Kind == KindAdapt && d.Adaptation == AdaptHighSensitivity {
				if d.Pattern.HoldIn > 2 || d.Pattern.Inhale > 4 {
					t.Fatalf("%s: pattern %+v exceeds cap", ex.ID, d.Pattern)
				}
			}
		}
	}
}

func TestProperty_BlockCarriesDeclaredAlternative(t *testing.T) {
	for _, ex := range exercises() {
		if ex.Safety.TraumaSafeAlternativeID == "" {
			continue
		}
		for _, st := range profiles() {
			for _, ctx := range contexts() {
				d := Decide(ex, st, ctx)
				if d.Kind == KindBlock && d.AlternativeID == "" {
					t.Fatalf("%s: block %s lost declared alternative", ex.ID, d)
				}
			}
		}
	}
}

func TestProperty_AdaptedPatternsNeverNegativeOrLonger(t *testing.T) {
	for _, ex := range exercises() {
		for _, st := range profiles() {
			d := Decide(ex, st, nil)
			if d.Kind == KindBlock {
				continue
			}
			p, orig := d.Pattern, ex.Pattern
			if p.Inhale < 0 || p.HoldIn < 0 || p.Exhale < 0 || p.HoldOut < 0 {
				t.Fatalf("%s: negative phase in %+v", ex.ID, p)
			}
			if p.Inhale > orig.Inhale || p.HoldIn > orig.HoldIn || p.Exhale > orig.Exhale || p.HoldOut > orig.HoldOut {
				t.Fatalf("%s: %s lengthened a phase: %+v -> %+v", ex.ID, d, orig, p)
			}
			if p.Inhale == 0 && p.Exhale == 0 && orig.Inhale+orig.Exhale > 0 {
				t.Fatalf("%s: adaptation removed all breathing: %+v", ex.ID, p)
			}
		}
	}
}

func TestProperty_HoldToleranceOnlyAdapts(t *testing.T) {
	ex := catalog.Exercise{
		ID:       "holds-only",
		Category: catalog.CategoryCalm,
		Pattern:  catalog.BreathPattern{Inhale: 4, HoldIn: 7, Exhale: 8, HoldOut: 3},
		Safety: catalog.Safety{
			MaxIntensity:    2,
			MinimumCapacity: catalog.CapacityRequirements{HoldTolerance: 5},
		},
	}
	for _, tol := range []float64{1, 1.2, 2, 3, 4, 4.8} {
		st := profile.Default("u")
		st.Capacities.HoldTolerance = tol
		d := Decide(ex, st, nil)
		if d.Kind != KindAdapt || d.Adaptation != AdaptReducedHoldTolerance {
			t.Fatalf("tolerance %v: decision = %s, want adapt(reducedHoldTolerance)", tol, d)
		}
		if d.Pattern.HoldIn > ex.Pattern.HoldIn || d.Pattern.HoldOut > ex.Pattern.HoldOut {
			t.Errorf("tolerance %v: holds grew: %+v", tol, d.Pattern)
		}
	}
}

func TestProperty_HoldAdaptationMonotonic(t *testing.T) {
	p := catalog.BreathPattern{Inhale: 4, HoldIn: 7, Exhale: 8, HoldOut: 4}
	prev := AdaptForLowHoldTolerance(p, 5)
	for tol := 4.8; tol >= 0.99; tol -= 0.2 {
		cur := AdaptForLowHoldTolerance(p, tol)
		if cur.HoldIn > prev.HoldIn || cur.HoldOut > prev.HoldOut {
			t.Fatalf("tolerance %.1f: holds %v/%v longer than at higher tolerance %v/%v",
				tol, cur.HoldIn, cur.HoldOut, prev.HoldIn, prev.HoldOut)
		}
		if cur.HoldIn < 0 || cur.HoldOut < 0 {
			t.Fatalf("tolerance %.1f: negative hold", tol)
		}
		prev = cur
	}
}

func TestAdaptFormulas(t *testing.T) {
	p := catalog.BreathPattern{Inhale: 6, HoldIn: 7, Exhale: 8, HoldOut: 3}

	if got := AdaptForLowHoldTolerance(p, 1); got != (catalog.BreathPattern{Inhale: 6, HoldIn: 2, Exhale: 8, HoldOut: 1}) {
		t.Errorf("low hold tolerance = %+v", got)
	}
	if got := AdaptForLowHoldTolerance(p, 5); got != p {
		t.Errorf("full hold tolerance changed pattern: %+v", got)
	}
	if got := AdaptForHighSensitivity(p); got != (catalog.BreathPattern{Inhale: 4, HoldIn: 2, Exhale: 6, HoldOut: 1}) {
		t.Errorf("high sensitivity = %+v", got)
	}
	short := catalog.BreathPattern{Inhale: 3, Exhale: 5}
	if got := AdaptForHighSensitivity(short); got != short {
		t.Errorf("high sensitivity lengthened short pattern: %+v", got)
	}
	if got := ReduceIntensity(p); got != (catalog.BreathPattern{Inhale: 6, HoldIn: 4, Exhale: 8, HoldOut: 1}) {
		t.Errorf("reduce intensity = %+v", got)
	}
}
