package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/existflow/quizdesk/internal/model"
)

var reportCmd = &cobra.Command{
	Use:   "report [section]",
	Short: "Show dashboard reports",
	Long: `Show the admin dashboard. Without a section every section is fetched in
one request.

Sections: stats, trends, competencies, demographics, performance, top

Examples:
  quizdesk report
  quizdesk report trends
  quizdesk report top --json`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"stats", "trends", "competencies", "demographics", "performance", "top"},
	RunE:      runReport,
}

var reportJSON bool

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the raw section as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	section := "complete"
	if len(args) == 1 {
		section = args[0]
	}

	return withLogin(cmd, func(ctx context.Context, a *app) error {
		var (
			out  interface{}
			show func()
		)
		switch section {
		case "complete":
			d, err := a.api.DashboardComplete(ctx)
			if err != nil {
				return explain(err)
			}
			out, show = d, func() {
				printStats(&d.Stats)
				printTrends(d.Trends)
				printCompetencies(&d.Competencies)
				printDemographics(&d.Demographics)
				printPerformance(&d.Performance)
				printTop(&d.TopPerformers)
			}
		case "stats":
			d, err := a.api.DashboardStats(ctx)
			if err != nil {
				return explain(err)
			}
			out, show = d, func() { printStats(d) }
		case "trends":
			d, err := a.api.DashboardTrends(ctx)
			if err != nil {
				return explain(err)
			}
			out, show = d, func() { printTrends(d) }
		case "competencies":
			d, err := a.api.DashboardCompetencies(ctx)
			if err != nil {
				return explain(err)
			}
			out, show = d, func() { printCompetencies(d) }
		case "demographics":
			d, err := a.api.DashboardDemographics(ctx)
			if err != nil {
				return explain(err)
			}
			out, show = d, func() { printDemographics(d) }
		case "performance":
			d, err := a.api.DashboardPerformance(ctx)
			if err != nil {
				return explain(err)
			}
			out, show = d, func() { printPerformance(d) }
		case "top", "top-performers":
			d, err := a.api.TopPerformers(ctx)
			if err != nil {
				return explain(err)
			}
			out, show = d, func() { printTop(d) }
		default:
			return fmt.Errorf("unknown section %q", section)
		}

		if reportJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		show()
		return nil
	})
}

func heading(title string) {
	fmt.Printf("\n📊 %s\n", title)
	fmt.Println(strings.Repeat("─", 60))
}

func printStats(s *model.DashboardStats) {
	heading("Overview")
	fmt.Printf("  Users          %6d   (active %d)\n", s.TotalUsers, s.ActiveUsers)
	fmt.Printf("  Tests          %6d\n", s.TotalTests)
	fmt.Printf("  Questions      %6d\n", s.TotalQuestions)
	fmt.Printf("  Sessions       %6d\n", s.TotalSessions)
	fmt.Printf("  Average score  %6.1f\n", s.AverageScore)
	fmt.Printf("  Completion     %5.1f%%\n", s.CompletionRate)
}

func printTrends(points []model.TrendPoint) {
	heading("Trends")
	if len(points) == 0 {
		fmt.Println("  No activity yet.")
		return
	}
	for _, p := range points {
		fmt.Printf("  %-12s  taken %4d  completed %4d  avg %5.1f\n", p.Date, p.TestsTaken, p.CompletedTests, p.AverageScore)
	}
}

func printCompetencies(c *model.DashboardCompetencies) {
	heading("Competencies")
	for _, s := range c.CompetencyScores {
		fmt.Printf("  %-16s  avg %5.1f  tests %4d  %+5.1f\n", s.Competency, s.AverageScore, s.TotalTests, s.Improvement)
	}
	if len(c.AreasForImprovement) > 0 {
		fmt.Println("\n  Needs work:")
		for _, a := range c.AreasForImprovement {
			fmt.Printf("  %-16s  avg %5.1f  %s\n", a.Competency, a.AverageScore, a.Priority)
		}
	}
}

func printDemographics(d *model.DashboardDemographics) {
	heading("Demographics")
	for _, g := range d.AgeGroups {
		fmt.Printf("  %-12s  %4d  %5.1f%%  avg %5.1f\n", g.AgeGroup, g.Count, g.Percentage, g.AverageScore)
	}
	for _, g := range d.GenderDistribution {
		fmt.Printf("  %-12s  %4d  %5.1f%%  avg %5.1f\n", g.Gender, g.Count, g.Percentage, g.AverageScore)
	}
}

func printPerformance(p *model.DashboardPerformance) {
	heading("Performance")
	for _, r := range p.ScoreDistribution {
		fmt.Printf("  %-10s  %4d  %5.1f%%\n", r.Range, r.Count, r.Percentage)
	}
	fmt.Printf("  Time per question  %.1fs\n", p.TimeAnalysis.AverageTimePerQuestion)
	fmt.Printf("  Time per test      %.1fs\n", p.TimeAnalysis.AverageTimePerTest)
	fmt.Printf("  Accuracy           %.1f%%\n", p.AccuracyMetrics.OverallAccuracy)
}

func printTop(t *model.TopPerformers) {
	heading("Top performers")
	for _, u := range t.TopUsers {
		fmt.Printf("  #%-3d %-20s  tests %3d  avg %5.1f  best %5.1f\n", u.Rank, u.Name, u.TotalTests, u.AverageScore, u.HighestScore)
	}
}
