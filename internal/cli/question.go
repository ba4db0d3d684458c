package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/existflow/quizdesk/internal/model"
)

var questionCmd = &cobra.Command{
	Use:     "question",
	Aliases: []string{"questions", "q"},
	Short:   "Manage the question bank",
}

var questionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List questions",
	Long: `List questions, optionally filtered.

Examples:
  quizdesk question list
  quizdesk question list --level B1 --competency grammar
  quizdesk question list --search tense --page 2`,
	RunE: runQuestionList,
}

var questionGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one question",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestionGet,
}

var questionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a question",
	Long: `Create a multiple choice question.

Example:
  quizdesk question create --level A2 --competency vocabulary \
    --text "Pick the synonym of 'big'" -o large -o small -o thin --correct 0`,
	RunE: runQuestionCreate,
}

var questionUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a question",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestionUpdate,
}

var questionDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a question",
	Args:    cobra.ExactArgs(1),
	RunE:    runQuestionDelete,
}

var (
	qFilter     model.QuestionFilter
	qCompetency string
	qLevel      string
	qText       string
	qOptions    []string
	qCorrect    int
)

func init() {
	questionCmd.AddCommand(questionListCmd)
	questionCmd.AddCommand(questionGetCmd)
	questionCmd.AddCommand(questionCreateCmd)
	questionCmd.AddCommand(questionUpdateCmd)
	questionCmd.AddCommand(questionDeleteCmd)

	questionListCmd.Flags().IntVar(&qFilter.Page, "page", 1, "Page number")
	questionListCmd.Flags().IntVar(&qFilter.Limit, "limit", 10, "Questions per page")
	questionListCmd.Flags().StringVar(&qFilter.Search, "search", "", "Search question text")
	questionListCmd.Flags().StringVarP(&qFilter.Level, "level", "L", "", "Filter by level ("+strings.Join(model.Levels, ", ")+")")
	questionListCmd.Flags().StringVarP(&qFilter.Competency, "competency", "c", "", "Filter by competency")
	questionListCmd.Flags().StringVar(&qFilter.SortBy, "sort", "", "Sort by createdAt, level or competency")

	addQuestionFlags(questionCreateCmd)
	addQuestionFlags(questionUpdateCmd)
}

func addQuestionFlags(c *cobra.Command) {
	c.Flags().StringVarP(&qCompetency, "competency", "c", "", "Competency")
	c.Flags().StringVarP(&qLevel, "level", "L", "", "Level ("+strings.Join(model.Levels, ", ")+")")
	c.Flags().StringVarP(&qText, "text", "t", "", "Question text")
	c.Flags().StringArrayVarP(&qOptions, "option", "o", nil, "Answer option (repeat for each)")
	c.Flags().IntVar(&qCorrect, "correct", 0, "Index of the correct option, from 0")
}

func runQuestionList(cmd *cobra.Command, args []string) error {
	if qFilter.Level != "" && !model.ValidLevel(qFilter.Level) {
		return fmt.Errorf("unknown level %q", qFilter.Level)
	}
	switch qFilter.SortBy {
	case "", "createdAt", "level", "competency":
	default:
		return fmt.Errorf("cannot sort by %q", qFilter.SortBy)
	}

	return withLogin(cmd, func(ctx context.Context, a *app) error {
		page, err := a.api.ListQuestions(ctx, qFilter)
		if err != nil {
			return explain(err)
		}
		if len(page.Questions) == 0 {
			fmt.Println("No questions found.")
			return nil
		}

		fmt.Printf("\n❓ Questions (page %d of %d, %d total)\n", page.Pagination.Page, page.Pagination.Pages, page.Pagination.Total)
		fmt.Println(strings.Repeat("─", 60))
		for _, q := range page.Questions {
			printQuestionRow(q)
		}
		fmt.Println()
		return nil
	})
}

func printQuestionRow(q model.Question) {
	text := q.QuestionText
	if len([]rune(text)) > 40 {
		text = string([]rune(text)[:37]) + "..."
	}
	shortID := q.ID
	if len(shortID) > 8 {
		shortID = shortID[len(shortID)-8:]
	}
	fmt.Printf("  %-8s  %-3s  %-14s  %s\n", shortID, q.Level, q.Competency, text)
}

func runQuestionGet(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app) error {
		q, err := a.api.GetQuestion(ctx, args[0])
		if err != nil {
			return explain(err)
		}
		printQuestion(q)
		return nil
	})
}

func printQuestion(q *model.Question) {
	fmt.Printf("\n%s\n", q.QuestionText)
	fmt.Printf("Level: %s  Competency: %s  ID: %s\n\n", q.Level, q.Competency, q.ID)
	for i, opt := range q.Options {
		mark := "  "
		if i == q.CorrectAnswer {
			mark = "✓ "
		}
		fmt.Printf("  %s%d. %s\n", mark, i, opt)
	}
	fmt.Println()
}

// questionInput collects the flags that were set into an input
func questionInput(cmd *cobra.Command) (model.QuestionInput, error) {
	var in model.QuestionInput
	flags := cmd.Flags()
	if flags.Changed("competency") {
		in.Competency = &qCompetency
	}
	if flags.Changed("level") {
		if !model.ValidLevel(qLevel) {
			return in, fmt.Errorf("unknown level %q", qLevel)
		}
		in.Level = &qLevel
	}
	if flags.Changed("text") {
		in.QuestionText = &qText
	}
	if flags.Changed("option") {
		if len(qOptions) < 2 {
			return in, fmt.Errorf("a question needs at least 2 options")
		}
		in.Options = qOptions
	}
	if flags.Changed("correct") {
		if qCorrect < 0 || (in.Options != nil && qCorrect >= len(in.Options)) {
			return in, fmt.Errorf("correct option %d is out of range", qCorrect)
		}
		in.CorrectAnswer = &qCorrect
	}
	return in, nil
}

func runQuestionCreate(cmd *cobra.Command, args []string) error {
	in, err := questionInput(cmd)
	if err != nil {
		return err
	}
	if in.Competency == nil || in.Level == nil || in.QuestionText == nil || in.Options == nil {
		return fmt.Errorf("--competency, --level, --text and at least two --option are required")
	}
	if in.CorrectAnswer == nil {
		in.CorrectAnswer = &qCorrect
	}

	return withLogin(cmd, func(ctx context.Context, a *app) error {
		q, err := a.api.CreateQuestion(ctx, in)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("✅ Created question %s\n", q.ID)
		return nil
	})
}

func runQuestionUpdate(cmd *cobra.Command, args []string) error {
	in, err := questionInput(cmd)
	if err != nil {
		return err
	}
	if in.Competency == nil && in.Level == nil && in.QuestionText == nil && in.Options == nil && in.CorrectAnswer == nil {
		return fmt.Errorf("nothing to update")
	}

	return withLogin(cmd, func(ctx context.Context, a *app) error {
		q, err := a.api.UpdateQuestion(ctx, args[0], in)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("✅ Updated question %s\n", q.ID)
		return nil
	})
}

func runQuestionDelete(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app) error {
		msg, err := a.api.DeleteQuestion(ctx, args[0])
		if err != nil {
			return explain(err)
		}
		if msg == "" {
			msg = "Question deleted"
		}
		fmt.Println("🗑  " + msg)
		return nil
	})
}
