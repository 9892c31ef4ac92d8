// Package integration configures the quiet period after a session: how long
// it lasts, which grounding phrases are shown and whether a small follow-up
// action is suggested.
package integration

import (
	"math/rand/v2"
	"sync"

	"github.com/andas-app/andas/internal/profile"
)

// Config is the integration period for one finished session.
type Config struct {
	DurationSeconds int          `json:"durationSeconds"`
	Texts           []string     `json:"texts"`
	ShowMicroAction bool         `json:"showMicroAction"`
	MicroAction     *MicroAction `json:"microAction,omitempty"`
}

// MicroAction is a small task offered after integration.
type MicroAction struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	TimeOfDay string `json:"timeOfDay"`
}

// Texts is the pool of grounding phrases shown after a session.
var Texts = []string{
	"Stay where you are. Feel your body.",
	"Nothing to do. Just be.",
	"Let the breath be natural.",
	"Feel your feet on the floor.",
	"You are here. Right now.",
}

// groundingSequence is shown as is to overstimulated users.
var groundingSequence = []string{
	"Feel your feet on the floor.",
	"You are here. Right now.",
	"Let the body land.",
}

// MicroActions lists the follow-up actions. TimeOfDay is "any", "morning" or
// "evening".
var MicroActions = []MicroAction{
	{ID: "water", Text: "Drink a glass of water", TimeOfDay: "any"},
	{ID: "walk", Text: "Take a short walk", TimeOfDay: "any"},
	{ID: "journal", Text: "Write one sentence about how you feel", TimeOfDay: "any"},
	{ID: "sleep", Text: "Get ready for sleep", TimeOfDay: "evening"},
	{ID: "stretch", Text: "Stretch for a moment", TimeOfDay: "morning"},
}

const (
	textsShown = 3

	baseSeconds       = 30
	moderateSeconds   = 45
	intenseSeconds    = 60
	extendedSeconds   = 60
	firstTimeSeconds  = 45
	firstTimeSessions = 3
)

// Configurator builds integration configs. Text and micro-action selection
// draw from an injected random source so tests can fix the outcome.
type Configurator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewConfigurator uses rng for every random choice. rand.Rand is not safe for
// concurrent use, so the Configurator serializes access to it.
func NewConfigurator(rng *rand.Rand) *Configurator {
	return &Configurator{rng: rng}
}

// NewSeeded returns a Configurator over a PCG source seeded with seed.
func NewSeeded(seed uint64) *Configurator {
	return NewConfigurator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Configure computes the integration period after an exercise of the given
// intensity. ctx is optional and only used to pick a micro-action.
func (c *Configurator) Configure(state profile.UserState, exerciseIntensity int, ctx *profile.SessionContext) Config {
	cfg := Config{
		DurationSeconds: Duration(state, exerciseIntensity),
		ShowMicroAction: !state.AdaptiveFlags.SuggestGrounding && state.Baseline != profile.BaselineOverstimulated,
	}

	if state.Baseline == profile.BaselineOverstimulated {
		cfg.Texts = append([]string(nil), groundingSequence...)
	} else {
		cfg.Texts = c.pickTexts(textsShown)
	}

	if cfg.ShowMicroAction {
		tod := profile.Afternoon
		if ctx != nil {
			tod = ctx.TimeOfDay
		}
		ma := c.pickMicroAction(tod)
		cfg.MicroAction = &ma
	}
	return cfg
}

// Duration returns the integration length in seconds: the longest of every
// rule that applies, except that an overstimulated baseline is always 60.
func Duration(state profile.UserState, exerciseIntensity int) int {
	if state.Baseline == profile.BaselineOverstimulated {
		return intenseSeconds
	}
	d := baseSeconds
	if exerciseIntensity >= 3 {
		d = moderateSeconds
	}
	if exerciseIntensity >= 4 {
		d = intenseSeconds
	}
	if state.AdaptiveFlags.ExtendIntegration {
		d = max(d, extendedSeconds)
	}
	if len(state.SessionHistory) < firstTimeSessions {
		d = max(d, firstTimeSeconds)
	}
	return d
}

// pickTexts draws n phrases without replacement.
func (c *Configurator) pickTexts(n int) []string {
	c.mu.Lock()
	perm := c.rng.Perm(len(Texts))
	c.mu.Unlock()

	n = min(n, len(perm))
	out := make([]string, n)
	for i := range n {
		out[i] = Texts[perm[i]]
	}
	return out
}

// pickMicroAction picks among actions suitable for any time or for tod.
// Night counts as evening.
func (c *Configurator) pickMicroAction(tod profile.TimeOfDay) MicroAction {
	want := ""
	switch tod {
	case profile.Morning:
		want = "morning"
	case profile.Evening, profile.Night:
		want = "evening"
	}
	var pool []MicroAction
	for _, ma := range MicroActions {
		if ma.TimeOfDay == "any" || ma.TimeOfDay == want {
			pool = append(pool, ma)
		}
	}
	c.mu.Lock()
	i := c.rng.IntN(len(pool))
	c.mu.Unlock()
	return pool[i]
}
