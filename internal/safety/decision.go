// Package safety decides whether a breathing exercise is safe for a user as
// they are right now, and how to adapt its pattern when it is only safe in a
// reduced form. Every function here is pure.
package safety

import (
	"encoding/json"
	"fmt"

	"github.com/andas-app/andas/internal/catalog"
)

// Kind is the variant of a Decision.
type Kind string

const (
	KindAllow Kind = "allow"
	KindBlock Kind = "block"
	KindAdapt Kind = "adapt"
)

// BlockReason says why an exercise was blocked.
type BlockReason string

const (
	ReasonBreathHolds              BlockReason = "breathHolds"
	ReasonFastBreathing            BlockReason = "fastBreathing"
	ReasonAdaptiveBlock            BlockReason = "adaptiveBlock"
	ReasonInsufficientCapacity     BlockReason = "insufficientCapacity"
	ReasonTooIntenseForBaseline    BlockReason = "tooIntenseForBaseline"
	ReasonRecentNegativeExperience BlockReason = "recentNegativeExperience"
)

// Adaptation names the transform applied to an adapted pattern.
type Adaptation string

const (
	AdaptReducedHoldTolerance Adaptation = "reducedHoldTolerance"
	AdaptHighSensitivity      Adaptation = "highSensitivity"
	AdaptRecoveryMode         Adaptation = "recoveryMode"
)

// Decision is the outcome of a safety check. Exactly one shape is populated,
// selected by Kind:
//
//	allow: Pattern is the exercise's own pattern
//	block: Reason, and AlternativeID when one is known (empty otherwise)
//	adapt: Adaptation and the recomputed Pattern
//
// Use the Allow, Block and Adapt constructors rather than building one by hand.
type Decision struct {
	Kind          Kind
	Pattern       catalog.BreathPattern
	Reason        BlockReason
	AlternativeID string
	Adaptation    Adaptation
}

// Allow returns an allow decision with the pattern unchanged.
func Allow(p catalog.BreathPattern) Decision {
	return Decision{Kind: KindAllow, Pattern: p}
}

// Block returns a block decision. alternativeID may be empty.
func Block(reason BlockReason, alternativeID string) Decision {
	return Decision{Kind: KindBlock, Reason: reason, AlternativeID: alternativeID}
}

// Adapt returns an adapt decision carrying the adapted pattern.
func Adapt(a Adaptation, p catalog.BreathPattern) Decision {
	return Decision{Kind: KindAdapt, Adaptation: a, Pattern: p}
}

// Blocked reports whether d is a block decision.
func (d Decision) Blocked() bool { return d.Kind == KindBlock }

// String renders a short human-readable form, e.g. "block(breathHolds -> extended-exhale)".
func (d Decision) String() string {
	switch d.Kind {
	case KindBlock:
		if d.AlternativeID != "" {
			return fmt.Sprintf("block(%s -> %s)", d.Reason, d.AlternativeID)
		}
		return fmt.Sprintf("block(%s)", d.Reason)
	case KindAdapt:
		return fmt.Sprintf("adapt(%s %s)", d.Adaptation, formatPattern(d.Pattern))
	default:
		return fmt.Sprintf("allow(%s)", formatPattern(d.Pattern))
	}
}

func formatPattern(p catalog.BreathPattern) string {
	return fmt.Sprintf("%g-%g-%g-%g", p.Inhale, p.HoldIn, p.Exhale, p.HoldOut)
}

type allowJSON struct {
	Type    Kind                  `json:"type"`
	Pattern catalog.BreathPattern `json:"pattern"`
}

type blockJSON struct {
	Type          Kind        `json:"type"`
	Reason        BlockReason `json:"reason"`
	AlternativeID *string     `json:"alternativeId"`
}

type adaptJSON struct {
	Type       Kind                  `json:"type"`
	Adaptation Adaptation            `json:"adaptation"`
	Pattern    catalog.BreathPattern `json:"pattern"`
}

// MarshalJSON encodes only the fields belonging to d's kind. A block without
// an alternative encodes alternativeId as null.
func (d Decision) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case KindBlock:
		out := blockJSON{Type: KindBlock, Reason: d.Reason}
		if d.AlternativeID != "" {
			alt := d.AlternativeID
			out.AlternativeID = &alt
		}
		return json.Marshal(out)
	case KindAdapt:
		return json.Marshal(adaptJSON{Type: KindAdapt, Adaptation: d.Adaptation, Pattern: d.Pattern})
	case KindAllow:
		return json.Marshal(allowJSON{Type: KindAllow, Pattern: d.Pattern})
	}
	return nil, fmt.Errorf("safety: unknown decision kind %q", d.Kind)
}

// UnmarshalJSON accepts the encoding produced by MarshalJSON.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type          Kind                  `json:"type"`
		Pattern       catalog.BreathPattern `json:"pattern"`
		Reason        BlockReason           `json:"reason"`
		AlternativeID *string               `json:"alternativeId"`
		Adaptation    Adaptation            `json:"adaptation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case KindAllow:
		*d = Allow(raw.Pattern)
	case KindAdapt:
		*d = Adapt(raw.Adaptation, raw.Pattern)
	case KindBlock:
		alt := ""
		if raw.AlternativeID != nil {
			alt = *raw.AlternativeID
		}
		*d = Block(raw.Reason, alt)
	default:
		return fmt.Errorf("safety: unknown decision type %q", raw.Type)
	}
	return nil
}
