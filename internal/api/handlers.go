package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andas-app/andas/internal/analytics"
	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/metrics"
	"github.com/andas-app/andas/internal/profile"
	"github.com/andas-app/andas/internal/recommend"
)

const maxRequestBodySize = 1 << 20 // 1MB

// NewAppHandler returns the HTTP API. /health and /metrics are public; every
// other route requires the bearer token when one is configured.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(observeRequests)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/exercises", handleListExercises(deps))
		r.Get("/exercises/{id}", handleGetExercise(deps))
		r.Get("/exercises/{id}/decision", handleDecision(deps))
		r.Get("/exercises/{id}/duration", handleDuration(deps))
		r.Get("/categories/{category}", handleCategory(deps))
		r.Get("/recommendation", handleRecommendation(deps))
		r.Get("/integration", handleIntegration(deps))

		r.Get("/profile", handleGetProfile(deps))
		r.Delete("/profile", handleResetProfile(deps))
		r.Get("/onboarding", handleOnboardingQuestions)
		r.Post("/onboarding", handleOnboarding(deps))

		r.Post("/sessions", handleRecordSession(deps))
		r.Get("/sessions", handleListSessions(deps))
		r.Get("/progression", handleProgression(deps))

		r.Get("/insights", handleInsights(deps))
		r.Get("/events", handleListEvents(deps))
		r.Post("/events", handleLogEvent(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleListExercises(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := r.URL.Query().Get("category")
		if c == "" {
			writeJSON(w, deps.Catalog.All())
			return
		}
		category := catalog.Category(c)
		if !category.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown category %q", c)
			return
		}
		writeJSON(w, deps.Catalog.ByCategory(category))
	}
}

func handleGetExercise(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ex, err := deps.Catalog.ByID(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, ex)
	}
}

func handleDecision(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Check(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, view)
	}
}

func handleDuration(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Duration(chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, rec)
	}
}

func handleCategory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := catalog.Category(chi.URLParam(r, "category"))
		if !category.Valid() {
			httpError(w, http.StatusNotFound, "not_found", "unknown category %q", category)
			return
		}
		state, sc, err := deps.Snapshot()
		if err != nil {
			writeErr(w, err)
			return
		}
		list := deps.Engine.ListCategory(category, state, sc)
		if list == nil {
			list = []recommend.Candidate{}
		}
		writeJSON(w, list)
	}
}

func handleRecommendation(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Recommend()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}

func handleIntegration(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("intensity")
		intensity, err := strconv.Atoi(raw)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "intensity must be an integer, got %q", raw)
			return
		}
		cfg, err := deps.IntegrationFor(intensity)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, cfg)
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Profile.State()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, s)
	}
}

func handleResetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Profile.Reset()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, s)
	}
}

func handleOnboardingQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, profile.Questions())
}

type onboardingRequest struct {
	Answers map[string]string `json:"answers"`
}

func handleOnboarding(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req onboardingRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s, err := deps.Profile.CompleteOnboarding(req.Answers)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, s)
	}
}

func handleRecordSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in profile.SessionInput
		if !decodeBody(w, r, &in) {
			return
		}
		out, err := deps.RecordSession(in)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(out)
	}
}

func handleListSessions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, profile.MaxHistory)
		s, err := deps.Profile.State()
		if err != nil {
			writeErr(w, err)
			return
		}
		history := s.SessionHistory
		if len(history) > limit {
			history = history[:limit]
		}
		writeJSON(w, history)
	}
}

func handleProgression(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Profile.State()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, profile.AllProgressions(s))
	}
}

type insightsResponse struct {
	Stats    analytics.Stats    `json:"stats"`
	Insights analytics.Insights `json:"insights"`
}

func handleInsights(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Analytics == nil {
			httpError(w, http.StatusNotFound, "not_found", "analytics not enabled")
			return
		}
		stats, ins, err := deps.Analytics.Insights()
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, insightsResponse{Stats: stats, Insights: ins})
	}
}

func handleListEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Analytics == nil {
			httpError(w, http.StatusNotFound, "not_found", "analytics not enabled")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		events, err := deps.Analytics.Recent(limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, events)
	}
}

type eventRequest struct {
	Type            analytics.EventType `json:"type"`
	ExerciseID      string              `json:"exerciseId"`
	DurationMinutes float64             `json:"durationMinutes"`
}

func handleLogEvent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Analytics == nil {
			httpError(w, http.StatusNotFound, "not_found", "analytics not enabled")
			return
		}
		var req eventRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !req.Type.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown event type %q", req.Type)
			return
		}
		if _, err := deps.Catalog.ByID(req.ExerciseID); err != nil {
			writeErr(w, err)
			return
		}
		e, err := deps.Analytics.Log(req.Type, req.ExerciseID, req.DurationMinutes)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(e)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case isClientError(err):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
