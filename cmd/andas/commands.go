package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andas-app/andas/internal/analytics"
	"github.com/andas-app/andas/internal/api"
	"github.com/andas-app/andas/internal/catalog"
	"github.com/andas-app/andas/internal/config"
	"github.com/andas-app/andas/internal/integration"
	"github.com/andas-app/andas/internal/profile"
	"github.com/andas-app/andas/internal/recommend"
	"github.com/andas-app/andas/internal/safety"
)

var jsonOut bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

// --- exercises ---

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "List exercises with their safety status for you",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := cmd.Flags().GetString("category")
		categories := []catalog.Category{catalog.CategoryCalm, catalog.CategoryFocus, catalog.CategoryEnergy}
		if c != "" {
			category := catalog.Category(c)
			if !category.Valid() {
				return fmt.Errorf("unknown category %q (want calm, focus or energy)", c)
			}
			categories = []catalog.Category{category}
		}

		return withApp(func(a *app) error {
			state, sc, err := a.deps.Snapshot()
			if err != nil {
				return err
			}
			var all []recommend.Candidate
			for _, category := range categories {
				all = append(all, a.deps.Engine.ListCategory(category, state, sc)...)
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), all)
			}
			renderCandidates(cmd.OutOrStdout(), all)
			return nil
		})
	},
}

func init() {
	exercisesCmd.Flags().String("category", "", "only list one category (calm, focus, energy)")
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check <exercise-id>",
	Short: "Check whether an exercise is safe for you right now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			view, err := a.deps.Check(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), view)
			}
			renderDecision(cmd.OutOrStdout(), view.Exercise, view.Decision)
			return nil
		})
	},
}

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend an exercise for right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			res, err := a.deps.Recommend()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderRecommendation(cmd.OutOrStdout(), res)
			return nil
		})
	},
}

// --- duration ---

var durationCmd = &cobra.Command{
	Use:   "duration <exercise-id>",
	Short: "Recommend how long to practise an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			d, err := a.deps.Duration(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", formatDuration(d), d.Reasoning)
			return nil
		})
	},
}

func formatDuration(d recommend.DurationRecommendation) string {
	if d.Rounds > 0 {
		return fmt.Sprintf("%d rounds", d.Rounds)
	}
	return fmt.Sprintf("%d min", d.Minutes)
}

// --- integrate ---

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Show the integration period after an exercise",
	RunE: func(cmd *cobra.Command, args []string) error {
		intensity, _ := cmd.Flags().GetInt("intensity")
		return withApp(func(a *app) error {
			c, err := a.deps.IntegrationFor(intensity)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), c)
			}
			renderIntegration(cmd.OutOrStdout(), c)
			return nil
		})
	},
}

func init() {
	integrateCmd.Flags().Int("intensity", 3, "intensity of the finished exercise (1-5)")
}

// --- onboard ---

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Answer the onboarding questions",
	Long: `Answer the onboarding questions. Without --answer flags the questions
are asked interactively.

Examples:
  andas onboard
  andas onboard --answer baseline=stressed --answer contraindications=anxiety`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetStringArray("answer")
		answers, err := parseAnswers(raw)
		if err != nil {
			return err
		}
		if len(answers) == 0 {
			answers, err = askQuestions(cmd.InOrStdin(), cmd.OutOrStdout(), profile.Questions())
			if err != nil {
				return err
			}
		}

		return withApp(func(a *app) error {
			s, err := a.deps.Profile.CompleteOnboarding(answers)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printSuccess("Onboarding complete: baseline %s, sensitivity %s", s.Baseline, s.Sensitivity)
			return nil
		})
	},
}

func init() {
	onboardCmd.Flags().StringArray("answer", nil, "question=option, repeatable")
}

// parseAnswers turns question=option pairs into an answer map.
func parseAnswers(raw []string) (map[string]string, error) {
	answers := make(map[string]string, len(raw))
	for _, kv := range raw {
		q, opt, ok := strings.Cut(kv, "=")
		if !ok || q == "" || opt == "" {
			return nil, fmt.Errorf("invalid answer %q, want question=option", kv)
		}
		answers[strings.TrimSpace(q)] = strings.TrimSpace(opt)
	}
	return answers, nil
}

// askQuestions prompts for each question in turn. An empty line skips it.
func askQuestions(in io.Reader, out io.Writer, questions []profile.Question) (map[string]string, error) {
	answers := make(map[string]string)
	scanner := bufio.NewScanner(in)
	for _, q := range questions {
		fmt.Fprintf(out, "\n%s\n", colorize(colorBold, q.Question))
		if q.Subtext != "" {
			fmt.Fprintf(out, "%s\n", q.Subtext)
		}
		for i, o := range q.Options {
			fmt.Fprintf(out, "  %d) %s\n", i+1, o.Label)
		}

		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, err
				}
				return answers, nil
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				break
			}
			n, err := strconv.Atoi(line)
			if err != nil || n < 1 || n > len(q.Options) {
				fmt.Fprintf(out, "Choose 1-%d.\n", len(q.Options))
				continue
			}
			answers[q.ID] = q.Options[n-1].ID
			break
		}
	}
	return answers, nil
}

// --- record ---

var recordCmd = &cobra.Command{
	Use:   "record <exercise-id>",
	Short: "Record a finished session",
	Long: `Record a finished session and show the integration period.

Examples:
  andas record coherent --minutes 5 --feedback calmer
  andas record box --minutes 2 --early-exit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, _ := cmd.Flags().GetFloat64("minutes")
		cycles, _ := cmd.Flags().GetInt("cycles")
		rawFeedback, _ := cmd.Flags().GetString("feedback")
		earlyExit, _ := cmd.Flags().GetBool("early-exit")

		fb, err := profile.ParseFeedback(rawFeedback)
		if err != nil {
			return err
		}

		in := profile.SessionInput{
			ExerciseID:      args[0],
			DurationMinutes: minutes,
			CompletedCycles: cycles,
			Feedback:        fb,
			WasEarlyExit:    earlyExit,
		}
		return withApp(func(a *app) error {
			out, err := recordSession(a.deps, in)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printSuccess("Recorded %s (%d sessions in history)", out.Session.ExerciseID, len(out.State.SessionHistory))
			renderIntegration(cmd.OutOrStdout(), out.Integration)
			return nil
		})
	},
}

// recordSession records a session reported after the fact. Such a session
// was also started, so session_started is logged once the input is known to
// be valid.
func recordSession(deps api.AppDeps, in profile.SessionInput) (api.SessionOutcome, error) {
	if err := in.Validate(); err != nil {
		return api.SessionOutcome{}, err
	}
	if _, err := deps.Catalog.ByID(in.ExerciseID); err != nil {
		return api.SessionOutcome{}, err
	}
	if deps.Analytics != nil {
		if _, err := deps.Analytics.Log(analytics.SessionStarted, in.ExerciseID, 0); err != nil {
			printWarning("could not log session start: %v", err)
		}
	}
	return deps.RecordSession(in)
}

func init() {
	recordCmd.Flags().Float64("minutes", 0, "minutes practised")
	recordCmd.Flags().Int("cycles", 0, "breathing cycles completed")
	recordCmd.Flags().String("feedback", "", "how you feel now: calmer, same or moreActivated")
	recordCmd.Flags().Bool("early-exit", false, "the session was stopped early")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or reset your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current state as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			s, err := a.deps.Profile.State()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		})
	},
}

var profileSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(func(a *app) error {
			s, err := a.deps.Profile.State()
			if err != nil {
				return err
			}
			history := s.SessionHistory
			if limit > 0 && len(history) > limit {
				history = history[:limit]
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), history)
			}
			renderSessions(cmd.OutOrStdout(), history)
			return nil
		})
	},
}

var profileProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show capacity progression",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			s, err := a.deps.Profile.State()
			if err != nil {
				return err
			}
			ps := profile.AllProgressions(s)
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), ps)
			}
			renderProgressions(cmd.OutOrStdout(), ps)
			return nil
		})
	},
}

var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete your profile and session history",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This deletes your profile, history and analytics. Use --confirm to proceed.")
			return nil
		}
		return withApp(func(a *app) error {
			printStep("Resetting profile...")
			if _, err := a.deps.Profile.Reset(); err != nil {
				return err
			}
			printStep("Clearing analytics...")
			if err := a.deps.Analytics.Clear(); err != nil {
				return err
			}
			printSuccess("Profile reset")
			return nil
		})
	},
}

func init() {
	profileSessionsCmd.Flags().Int("limit", 10, "maximum sessions to show")
	profileResetCmd.Flags().Bool("confirm", false, "confirm reset")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSessionsCmd)
	profileCmd.AddCommand(profileProgressCmd)
	profileCmd.AddCommand(profileResetCmd)
}

// --- insights ---

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show local session statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		recent, _ := cmd.Flags().GetInt("recent")
		return withApp(func(a *app) error {
			stats, ins, err := a.deps.Analytics.Insights()
			if err != nil {
				return err
			}
			var events []analytics.Event
			if recent > 0 {
				if events, err = a.deps.Analytics.Recent(recent); err != nil {
					return err
				}
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"stats": stats, "insights": ins, "events": events})
			}
			renderInsights(cmd.OutOrStdout(), stats, ins)
			renderEvents(cmd.OutOrStdout(), events)
			return nil
		})
	},
}

func init() {
	insightsCmd.Flags().Int("recent", 0, "also list the N most recent events")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := config.ShowAll(cfg)
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), keys)
		}
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}

// --- rendering ---

func statusIcon(s recommend.Status) string {
	switch s {
	case recommend.StatusBlocked:
		return colorize(colorRed, "✗")
	case recommend.StatusAdapted:
		return colorize(colorYellow, "~")
	}
	return colorize(colorGreen, "✓")
}

func renderCandidates(w io.Writer, cs []recommend.Candidate) {
	for _, c := range cs {
		fmt.Fprintf(w, "%s %-20s %-8s intensity %d  %s\n",
			statusIcon(c.Status), c.Exercise.ID, c.Exercise.Category, c.Exercise.Safety.MaxIntensity, c.Decision)
	}
}

func renderDecision(w io.Writer, ex catalog.Exercise, d safety.Decision) {
	fmt.Fprintf(w, "%s: %s\n", colorize(colorBold, ex.Name), d)
	if d.Blocked() && d.AlternativeID != "" {
		fmt.Fprintf(w, "  try instead: %s\n", d.AlternativeID)
	}
}

func renderRecommendation(w io.Writer, r recommend.Result) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, r.Exercise.Name), "("+r.Exercise.ID+")")
	fmt.Fprintf(w, "  %s\n", r.Exercise.ShortDescription)
	fmt.Fprintf(w, "  decision: %s\n", r.Decision)
	fmt.Fprintf(w, "  why: %s\n", r.Reasoning)
	if len(r.Alternatives) > 0 {
		ids := make([]string, len(r.Alternatives))
		for i, a := range r.Alternatives {
			ids[i] = a.ID
		}
		fmt.Fprintf(w, "  alternatives: %s\n", strings.Join(ids, ", "))
	}
}

func renderIntegration(w io.Writer, c integration.Config) {
	fmt.Fprintf(w, "Rest for %ds\n", c.DurationSeconds)
	for _, t := range c.Texts {
		fmt.Fprintf(w, "  %s\n", t)
	}
	if c.ShowMicroAction && c.MicroAction != nil {
		fmt.Fprintf(w, "Then: %s\n", c.MicroAction.Text)
	}
}

func renderSessions(w io.Writer, history []profile.SessionRecord) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No sessions yet.")
		return
	}
	for _, r := range history {
		fb := "-"
		if r.Feedback != nil {
			fb = string(*r.Feedback)
		}
		exit := ""
		if r.WasEarlyExit {
			exit = " (early exit)"
		}
		fmt.Fprintf(w, "%s  %-20s %5.1f min  %s%s\n", r.Timestamp.Local().Format("2006-01-02 15:04"), r.ExerciseID, r.DurationMinutes, fb, exit)
	}
}

func renderProgressions(w io.Writer, ps []profile.CapacityProgression) {
	for _, p := range ps {
		next := "no progress yet"
		if p.SessionsToNextLevel >= 0 {
			next = fmt.Sprintf("~%d sessions to next level", p.SessionsToNextLevel)
		}
		fmt.Fprintf(w, "%-18s %.1f -> %.0f  %-9s %s\n", p.Capacity, p.Current, p.Target, p.Trend, next)
	}
}

func renderInsights(w io.Writer, s analytics.Stats, in analytics.Insights) {
	fmt.Fprintf(w, "Sessions started:   %d\n", s.TotalSessionsStarted)
	fmt.Fprintf(w, "Sessions completed: %d\n", s.TotalSessionsCompleted)
	fmt.Fprintf(w, "Early exits:        %d\n", s.TotalEarlyExits)
	fmt.Fprintf(w, "Negative feedback:  %d\n", s.TotalNegativeFeedback)
	fmt.Fprintf(w, "Completion rate:    %.0f%%\n", in.CompletionRate*100)
	fmt.Fprintf(w, "Status:             %s\n", healthLabel(in.IsHealthy))
}

func renderEvents(w io.Writer, events []analytics.Event) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent events:")
	for _, e := range events {
		fmt.Fprintf(w, "  %s  %-18s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Type, e.ExerciseID)
	}
}
