package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andas-app/andas/internal/analytics"
	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/config"
	"github.com/andas-app/andas/internal/integration"
	"github.com/andas-app/andas/internal/profile"
	"github.com/andas-app/andas/internal/recommend"
	"github.com/andas-app/andas/internal/safety"
)

func init() {
	noColor = true
}

func TestParseAnswers(t *testing.T) {
	got, err := parseAnswers([]string{"baseline=stressed", " experience = none "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["baseline"] != "stressed" || got["experience"] != "none" {
		t.Errorf("answers = %v", got)
	}

	for _, bad := range []string{"baseline", "=calm", "baseline="} {
		if _, err := parseAnswers([]string{bad}); err == nil {
			t.Errorf("parseAnswers(%q): expected error", bad)
		}
	}
}

func TestAskQuestions(t *testing.T) {
	qs := profile.Questions()
	// Invalid choice, then option 3 for the first question; skip the second;
	// input ends before the rest.
	in := strings.NewReader("9\n3\n\n")
	var out bytes.Buffer

	answers, err := askQuestions(in, &out, qs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 1 || answers[qs[0].ID] != qs[0].Options[2].ID {
		t.Errorf("answers = %v", answers)
	}
	if !strings.Contains(out.String(), "Choose 1-") {
		t.Error("expected a retry prompt after an invalid choice")
	}
	if !strings.Contains(out.String(), qs[1].Question) {
		t.Error("expected the second question to be asked")
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(recommend.DurationRecommendation{Minutes: 5}); got != "5 min" {
		t.Errorf("got %q", got)
	}
	if got := formatDuration(recommend.DurationRecommendation{Rounds: 3}); got != "3 rounds" {
		t.Errorf("got %q", got)
	}
}

func TestRenderDecision(t *testing.T) {
	var buf bytes.Buffer
	ex := catalog.Exercise{ID: "478", Name: "4-7-8 Breathing"}
	renderDecision(&buf, ex, safety.Block(safety.ReasonBreathHolds, "extended-exhale"))

	out := buf.String()
	if !strings.Contains(out, "4-7-8 Breathing") || !strings.Contains(out, "try instead: extended-exhale") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderRecommendation(t *testing.T) {
	var buf bytes.Buffer
	renderRecommendation(&buf, recommend.Result{
		Exercise:     catalog.Exercise{ID: "coherent", Name: "Coherent Breathing"},
		Decision:     safety.Allow(catalog.BreathPattern{Inhale: 5, Exhale: 5}),
		Reasoning:    "fallback to safe default",
		Alternatives: []catalog.Exercise{{ID: "box"}, {ID: "478"}},
	})

	out := buf.String()
	for _, want := range []string{"Coherent Breathing (coherent)", "why: fallback to safe default", "alternatives: box, 478"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderIntegration_HidesMicroAction(t *testing.T) {
	var buf bytes.Buffer
	renderIntegration(&buf, integration.Config{
		DurationSeconds: 60,
		Texts:           []string{"Feel your feet on the floor."},
		ShowMicroAction: false,
		MicroAction:     &integration.MicroAction{Text: "Drink a glass of water"},
	})
	out := buf.String()
	if !strings.Contains(out, "Rest for 60s") || strings.Contains(out, "Drink") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderProgressions(t *testing.T) {
	var buf bytes.Buffer
	renderProgressions(&buf, []profile.CapacityProgression{
		{Capacity: profile.CapacityCalmBreathing, Current: 2, Target: 3, Trend: profile.TrendStable, SessionsToNextLevel: -1},
		{Capacity: profile.CapacityHoldTolerance, Current: 3.4, Target: 4, Trend: profile.TrendImproving, SessionsToNextLevel: 4},
	})
	out := buf.String()
	if !strings.Contains(out, "no progress yet") || !strings.Contains(out, "~4 sessions") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderInsights(t *testing.T) {
	var buf bytes.Buffer
	s := analytics.Stats{TotalSessionsStarted: 10, TotalSessionsCompleted: 9}
	renderInsights(&buf, s, analytics.ComputeInsights(s))
	if !strings.Contains(buf.String(), "Completion rate:    90%") || !strings.Contains(buf.String(), "healthy") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorRed, "x"); got != "x" {
		t.Errorf("colorize with noColor=true = %q", got)
	}
	noColor = false
	if got := colorize(colorRed, "x"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}

func TestAPIClient_SendsToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/insights" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stats":{"totalSessionsStarted":2}}`))
	}))
	t.Cleanup(srv.Close)

	c := &apiClient{baseURL: srv.URL, token: "tok", httpClient: srv.Client()}

	resp, err := c.get(context.Background(), "/insights")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body struct {
		Stats analytics.Stats `json:"stats"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	if body.Stats.TotalSessionsStarted != 2 || gotAuth != "Bearer tok" {
		t.Errorf("stats = %+v, auth = %q", body.Stats, gotAuth)
	}

	resp, err = c.get(context.Background(), "/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := decodeJSON(resp, &body); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want 404 error", err)
	}
}

func TestNewAPIClient_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	t.Cleanup(srv.Close)

	c := newAPIClient(config.Config{})
	c.baseURL = srv.URL
	resp, err := c.get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want none", gotAuth)
	}
}

func TestOpenApp_WiresLocalEngine(t *testing.T) {
	c := config.Config{Storage: config.StorageConfig{DataDir: t.TempDir()}, Integration: config.IntegrationConfig{Seed: 7}}
	a, err := openApp(c)
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	out, err := a.deps.RecordSession(profile.SessionInput{ExerciseID: "coherent", DurationMinutes: 5})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}
	if len(out.State.SessionHistory) != 1 {
		t.Errorf("history = %d, want 1", len(out.State.SessionHistory))
	}
	stats, err := a.deps.Analytics.Stats()
	if err != nil || stats.TotalSessionsCompleted != 1 {
		t.Errorf("stats = %+v, err = %v", stats, err)
	}
}

func TestRecordSession_InvalidInputLogsNothing(t *testing.T) {
	a, err := openApp(config.Config{Storage: config.StorageConfig{DataDir: t.TempDir()}, Integration: config.IntegrationConfig{Seed: 3}})
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	bad := []profile.SessionInput{
		{ExerciseID: "coherent", DurationMinutes: -1},
		{ExerciseID: "no-such-exercise", DurationMinutes: 5},
	}
	for _, in := range bad {
		if _, err := recordSession(a.deps, in); err == nil {
			t.Errorf("recordSession(%+v): expected error", in)
		}
	}
	stats, err := a.deps.Analytics.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalSessionsStarted != 0 {
		t.Errorf("started = %d after rejected records, want 0", stats.TotalSessionsStarted)
	}

	if _, err := recordSession(a.deps, profile.SessionInput{ExerciseID: "coherent", DurationMinutes: 5}); err != nil {
		t.Fatalf("recordSession: %v", err)
	}
	stats, _ = a.deps.Analytics.Stats()
	if stats.TotalSessionsStarted != 1 || stats.TotalSessionsCompleted != 1 {
		t.Errorf("stats = %+v, want 1 started and 1 completed", stats)
	}
}

func TestRenderEvents(t *testing.T) {
	var buf bytes.Buffer
	renderEvents(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("no events should print nothing, got %q", buf.String())
	}

	renderEvents(&buf, []analytics.Event{{Type: analytics.EarlyExit, ExerciseID: "box"}})
	if !strings.Contains(buf.String(), "early_exit") || !strings.Contains(buf.String(), "box") {
		t.Errorf("output = %q", buf.String())
	}
}
