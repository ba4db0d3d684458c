package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/existflow/quizdesk/internal/auth"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/testsession"
	"github.com/existflow/quizdesk/internal/tui"
)

var testCmd = &cobra.Command{
	Use:     "test",
	Aliases: []string{"tests"},
	Short:   "Take and review timed tests",
}

var testStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new test attempt in the terminal",
	Long: `Start a new timed test and open the test screen.

Examples:
  quizdesk test start
  quizdesk test start --step 2 --auto-submit`,
	RunE: runTestStart,
}

var testResumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume an attempt that is still in progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestResume,
}

var testStatusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the server view of an attempt",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestStatus,
}

var testSubmitCmd = &cobra.Command{
	Use:   "submit <session-id>",
	Short: "Submit an attempt without opening the test screen",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestSubmit,
}

var testHistoryCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"ls"},
	Short:   "List completed tests",
	RunE:    runTestHistory,
}

var (
	testStep       int
	testAutoSubmit bool
)

func init() {
	testCmd.AddCommand(testStartCmd)
	testCmd.AddCommand(testResumeCmd)
	testCmd.AddCommand(testStatusCmd)
	testCmd.AddCommand(testSubmitCmd)
	testCmd.AddCommand(testHistoryCmd)

	testStartCmd.Flags().IntVarP(&testStep, "step", "s", 1, "Test step")
	for _, c := range []*cobra.Command{testStartCmd, testResumeCmd} {
		c.Flags().BoolVar(&testAutoSubmit, "auto-submit", false, "Submit automatically when time runs out (overrides config)")
	}
}

func runTestStart(cmd *cobra.Command, args []string) error {
	if testStep < 1 {
		return fmt.Errorf("step must be at least 1")
	}
	return runTestScreen(cmd, "/tests", func(ctx context.Context, m *testsession.Machine) error {
		return m.Start(ctx, testStep)
	})
}

func runTestResume(cmd *cobra.Command, args []string) error {
	id := args[0]
	return runTestScreen(cmd, "/tests/"+id, func(ctx context.Context, m *testsession.Machine) error {
		return m.Load(ctx, id)
	})
}

// runTestScreen runs the guarded test TUI with the refresh scheduler in the
// background for as long as the screen is open
func runTestScreen(cmd *cobra.Command, path string, load tui.Loader) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if _, err := a.session.Rehydrate(ctx); err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}

		sched := a.auth.NewScheduler(auth.SchedulerConfig{
			Interval:   cfg.Auth.RefreshInterval,
			Skew:       cfg.Auth.RefreshSkew,
			RetryDelay: cfg.Auth.RetryDelay,
		})
		sched.Start()
		defer sched.Stop()

		autoSubmit := cfg.Tests.AutoSubmit
		if cmd.Flags().Changed("auto-submit") {
			autoSubmit = testAutoSubmit
		}

		machine := testsession.New(a.api, testsession.Options{LockOnExpiry: cfg.Tests.LockOnExpiry})
		m := tui.NewModel(a.auth.NewGuard(), machine, load, tui.Options{
			Path:         path,
			AutoSubmit:   autoSubmit,
			PollInterval: cfg.Tests.PollInterval,
		})

		logger.Info("Launching test screen", logger.F("path", path))
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		final, err := p.Run()
		if err != nil {
			logger.Error("TUI error", logger.F("error", err))
			return fmt.Errorf("failed to run TUI: %w", err)
		}

		out := final.(tui.Model).Outcome()
		switch {
		case out.Redirect != nil:
			if out.Redirect.Expired {
				fmt.Println("🔒 Your session has expired. Please log in again: quizdesk auth login")
			} else {
				fmt.Println("🔒 Please log in first: quizdesk auth login")
			}
			logger.Info("Redirected", logger.F("to", out.Redirect.URL()))
		case out.Err != nil:
			return explain(out.Err)
		case out.Submitted:
			v := machine.View()
			fmt.Println("✅ Test submitted.")
			if v.Result != nil && v.Result.Score != nil {
				fmt.Printf("Score: %.1f\n", *v.Result.Score)
			}
			fmt.Println("See your results with: quizdesk test history")
		default:
			v := machine.View()
			if v.State == testsession.Active {
				fmt.Printf("Answers saved. Resume with: quizdesk test resume %s\n", v.SessionID)
			}
		}
		return nil
	})
}

func runTestStatus(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app) error {
		ts, err := a.api.TestStatus(ctx, args[0])
		if err != nil {
			return explain(err)
		}
		status := ts.Status
		if status == "" {
			status = "in_progress"
		}
		fmt.Printf("Session:   %s\n", ts.SessionID)
		fmt.Printf("Status:    %s\n", status)
		fmt.Printf("Questions: %d (answered %d)\n", len(ts.Questions), len(ts.Answers))
		if !ts.IsCompleted() {
			c := testsession.NewCountdown(ts.EndTime, ts.Duration(), time.Now())
			fmt.Printf("Remaining: %s\n", c.Text())
		}
		if ts.Score != nil {
			fmt.Printf("Score:     %.1f\n", *ts.Score)
		}
		return nil
	})
}

func runTestSubmit(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app) error {
		machine := testsession.New(a.api, testsession.Options{LockOnExpiry: cfg.Tests.LockOnExpiry})
		if err := machine.Load(ctx, args[0]); err != nil {
			return explain(err)
		}
		if machine.State() == testsession.Completed {
			fmt.Println("This test has already been completed.")
			return nil
		}
		fmt.Println(machine.Summary().String() + ".")
		fmt.Println("🔄 Submitting...")
		if err := machine.Submit(ctx); err != nil {
			return explain(err)
		}
		v := machine.View()
		fmt.Println("✅ Test submitted.")
		if v.Result != nil && v.Result.Score != nil {
			fmt.Printf("Score: %.1f\n", *v.Result.Score)
		}
		return nil
	})
}

func runTestHistory(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app) error {
		entries, err := a.api.TestHistory(ctx)
		if err != nil {
			return explain(err)
		}
		if len(entries) == 0 {
			fmt.Println("No tests yet. Start one with: quizdesk test start")
			return nil
		}

		fmt.Printf("\n📝 Test history (%d)\n", len(entries))
		fmt.Println(strings.Repeat("─", 60))
		for _, e := range entries {
			fmt.Printf("  %-24s  %-12s  %6.1f  %s\n",
				e.SessionID, e.Status, e.Score, e.Date.Local().Format("Jan 2 2006 15:04"))
		}
		fmt.Println()
		return nil
	})
}
