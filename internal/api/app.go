package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/andas-app/andas/internal/analytics"
	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/integration"
	"github.com/andas-app/andas/internal/metrics"
	"github.com/andas-app/andas/internal/profile"
	"github.com/andas-app/andas/internal/recommend"
	"github.com/andas-app/andas/internal/safety"
)

// AppDeps holds what the HTTP and MCP surfaces share.
type AppDeps struct {
	Catalog     *catalog.Catalog
	Profile     *profile.Manager
	Engine      *recommend.Engine
	Integration *integration.Configurator
	Analytics   *analytics.Tracker // optional; nil disables event logging
	Token       string
}

// SessionOutcome is the result of recording a finished session.
type SessionOutcome struct {
	Session     profile.SessionRecord `json:"session"`
	State       profile.UserState     `json:"state"`
	Integration integration.Config    `json:"integration"`
}

// DecisionView pairs an exercise with the decision it got.
type DecisionView struct {
	Exercise catalog.Exercise `json:"exercise"`
	Decision safety.Decision  `json:"decision"`
}

// Snapshot returns the current state and the session context derived from it.
func (d AppDeps) Snapshot() (profile.UserState, *profile.SessionContext, error) {
	state, err := d.Profile.State()
	if err != nil {
		return profile.UserState{}, nil, err
	}
	sc := d.Profile.ContextFor(state)
	return state, &sc, nil
}

// Check decides one exercise for the current user.
func (d AppDeps) Check(exerciseID string) (DecisionView, error) {
	state, sc, err := d.Snapshot()
	if err != nil {
		return DecisionView{}, err
	}
	ex, dec, err := d.Engine.Check(exerciseID, state, sc)
	if err != nil {
		return DecisionView{}, err
	}
	metrics.ObserveDecision(dec)
	return DecisionView{Exercise: ex, Decision: dec}, nil
}

// Recommend picks the best exercise for the current user.
func (d AppDeps) Recommend() (recommend.Result, error) {
	state, sc, err := d.Snapshot()
	if err != nil {
		return recommend.Result{}, err
	}
	res := d.Engine.Recommend(state, sc)
	metrics.ObserveDecision(res.Decision)
	metrics.ObserveRecommendation(res.Exercise.ID)
	return res, nil
}

// Duration recommends how long the current user should practise an exercise.
func (d AppDeps) Duration(exerciseID string) (recommend.DurationRecommendation, error) {
	ex, err := d.Catalog.ByID(exerciseID)
	if err != nil {
		return recommend.DurationRecommendation{}, err
	}
	state, sc, err := d.Snapshot()
	if err != nil {
		return recommend.DurationRecommendation{}, err
	}
	return recommend.Duration(ex, state, sc), nil
}

// IntegrationFor configures the integration period after an exercise of
// the given intensity (1-5).
func (d AppDeps) IntegrationFor(intensity int) (integration.Config, error) {
	if intensity < 1 || intensity > 5 {
		return integration.Config{}, fmt.Errorf("%w: intensity %d out of range 1-5", errBadInput, intensity)
	}
	state, sc, err := d.Snapshot()
	if err != nil {
		return integration.Config{}, err
	}
	return d.Integration.Configure(state, intensity, sc), nil
}

// RecordSession commits a session, logs its analytics events and builds the
// integration period that should follow it.
func (d AppDeps) RecordSession(in profile.SessionInput) (SessionOutcome, error) {
	state, rec, err := d.Profile.RecordSession(in)
	if err != nil {
		return SessionOutcome{}, err
	}

	fb := ""
	if rec.Feedback != nil {
		fb = string(*rec.Feedback)
	}
	metrics.ObserveSession(fb, rec.WasEarlyExit)
	d.logSessionEvents(rec)

	ex, err := d.Catalog.ByID(rec.ExerciseID)
	if err != nil {
		return SessionOutcome{}, err
	}
	sc := d.Profile.ContextFor(state)
	return SessionOutcome{
		Session:     rec,
		State:       state,
		Integration: d.Integration.Configure(state, ex.Safety.MaxIntensity, &sc),
	}, nil
}

// logSessionEvents writes the outcome events for rec. session_started is
// reported by the client when a session begins, not here. Failures are
// logged and never fail the session.
func (d AppDeps) logSessionEvents(rec profile.SessionRecord) {
	if d.Analytics == nil {
		return
	}
	events := []analytics.EventType{analytics.SessionCompleted}
	if rec.WasEarlyExit {
		events[0] = analytics.EarlyExit
	}
	if rec.Feedback != nil && *rec.Feedback == profile.FeedbackMoreActivated {
		events = append(events, analytics.NegativeFeedback)
	}
	for _, typ := range events {
		if _, err := d.Analytics.Log(typ, rec.ExerciseID, rec.DurationMinutes); err != nil {
			slog.Warn("failed to log analytics event", "type", typ, "error", err)
		}
	}
}

// errBadInput marks caller mistakes that are not covered by a domain sentinel.
var errBadInput = errors.New("invalid input")

// isClientError reports whether err was caused by the request rather than
// the server.
func isClientError(err error) bool {
	return errors.Is(err, errBadInput) ||
		errors.Is(err, profile.ErrInvalidSession) ||
		errors.Is(err, profile.ErrInvalidState) ||
		errors.Is(err, profile.ErrUnknownAnswer)
}
