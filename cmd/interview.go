package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/oracle"
	"github.com/abhisek/parley/internal/questions"
	"github.com/abhisek/parley/internal/ui/theme"
)

var interviewCmd = &cobra.Command{
	Use:     "interview",
	Aliases: []string{"iv"},
	Short:   "Create, generate and publish interviews",
}

var interviewCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft interview from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		generate, _ := cmd.Flags().GetBool("generate")

		iv, err := loadInterviewFile(path)
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd, generate)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if generate {
			if rt.Oracle == nil {
				return errors.New("question generation needs an LLM provider")
			}
			gen, err := rt.Oracle.GenerateQuestions(ctx, oracle.BriefFrom(iv))
			if err != nil {
				return fmt.Errorf("generate questions: %w", err)
			}
			iv.Questions = gen.Questions
		}

		if err := rt.Store.CreateInterview(ctx, iv); err != nil {
			return err
		}
		fmt.Println(theme.Done.Render("Created draft"), iv.ID)
		fmt.Println(renderInterview(iv))
		return nil
	},
}

var interviewGenerateCmd = &cobra.Command{
	Use:   "generate <id>",
	Short: "Replace a draft's questions with a generated set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.Oracle == nil {
			return errors.New("question generation needs an LLM provider")
		}

		ctx := cmd.Context()
		iv, err := rt.Store.GetInterview(ctx, args[0])
		if err != nil {
			return err
		}
		if iv.Published() {
			return errors.New("published interviews cannot be edited; duplicate it first")
		}

		gen, err := rt.Oracle.GenerateQuestions(ctx, oracle.BriefFrom(iv))
		if err != nil {
			return fmt.Errorf("generate questions: %w", err)
		}
		if err := rt.Store.UpdateQuestions(ctx, iv.ID, gen.Questions); err != nil {
			return err
		}
		iv.Questions = gen.Questions
		fmt.Println(renderInterview(iv))
		return nil
	},
}

var interviewPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish a draft so participants can join",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		iv, err := rt.Store.PublishInterview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(theme.Done.Render("Published"), iv.Title)
		fmt.Println(theme.Label.Render("Token:"), iv.URLToken)
		fmt.Println(theme.Label.Render("Join: "), "/api/i/"+iv.URLToken+"/join")
		return nil
	},
}

var interviewDuplicateCmd = &cobra.Command{
	Use:   "duplicate <id>",
	Short: "Copy an interview into a new draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		iv, err := rt.Store.DuplicateInterview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(theme.Done.Render("Created draft"), iv.ID, theme.Subtitle.Render(iv.Title))
		return nil
	},
}

var interviewShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an interview and its questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		iv, err := rt.Store.GetInterview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderInterview(iv))
		return nil
	},
}

var interviewMoveCmd = &cobra.Command{
	Use:   "move <id> <from> <to>",
	Short: "Move a draft question to a new position (1-based, as in show)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		var from, to int
		if _, err := fmt.Sscanf(args[1]+" "+args[2], "%d %d", &from, &to); err != nil {
			return fmt.Errorf("invalid positions %q %q", args[1], args[2])
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		iv, err := rt.Store.GetInterview(ctx, args[0])
		if err != nil {
			return err
		}
		if iv.Published() {
			return errors.New("published interviews cannot be edited; duplicate it first")
		}

		qs, err := moveQuestion(iv.Questions, from-1, to-1, category)
		if err != nil {
			return err
		}
		if err := rt.Store.UpdateQuestions(ctx, iv.ID, qs); err != nil {
			return err
		}
		iv.Questions = qs
		fmt.Println(renderInterview(iv))
		return nil
	},
}

var interviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List interviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		ivs, err := rt.Store.ListInterviews(cmd.Context(), interview.Status(status))
		if err != nil {
			return err
		}
		if len(ivs) == 0 {
			fmt.Println("No interviews found.")
			return nil
		}

		fmt.Printf("%-36s  %-9s  %-5s  %-6s  %s\n", "ID", "Status", "Qs", "Limit", "Title")
		fmt.Println(strings.Repeat("─", 90))
		for _, iv := range ivs {
			fmt.Printf("%-36s  %-9s  %-5d  %-6s  %s\n",
				iv.ID, iv.Status, len(iv.Questions), formatLimit(iv.TimeLimitMinutes), iv.Title)
		}
		return nil
	},
}

func init() {
	interviewCreateCmd.Flags().StringP("file", "f", "", "Interview definition (YAML)")
	_ = interviewCreateCmd.MarkFlagRequired("file")
	interviewCreateCmd.Flags().Bool("generate", false, "Generate questions from the brief")

	interviewListCmd.Flags().String("status", "", "Filter by status (draft, published)")
	interviewMoveCmd.Flags().String("category", "", "Also move the question into this category")

	interviewCmd.AddCommand(interviewCreateCmd)
	interviewCmd.AddCommand(interviewGenerateCmd)
	interviewCmd.AddCommand(interviewPublishCmd)
	interviewCmd.AddCommand(interviewDuplicateCmd)
	interviewCmd.AddCommand(interviewShowCmd)
	interviewCmd.AddCommand(interviewListCmd)
	interviewCmd.AddCommand(interviewMoveCmd)
}

// loadInterviewFile reads a draft definition. Status, token and timestamps
// in the file are ignored; question order is renumbered. Files that leave
// every order unset use the listed order.
func loadInterviewFile(path string) (*interview.Interview, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read interview: %w", err)
	}
	var iv interview.Interview
	if err := yaml.Unmarshal(raw, &iv); err != nil {
		return nil, fmt.Errorf("parse interview %s: %w", path, err)
	}
	iv.ID, iv.URLToken, iv.Status = "", "", ""
	iv.Title = strings.TrimSpace(iv.Title)
	iv.Goal = strings.TrimSpace(iv.Goal)
	if !hasOrders(iv.Questions) {
		for i := range iv.Questions {
			iv.Questions[i].Order = i
		}
	}

	var errs []error
	if iv.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if iv.Goal == "" {
		errs = append(errs, errors.New("goal is required"))
	}
	if iv.TimeLimitMinutes < 0 {
		errs = append(errs, errors.New("time_limit_minutes must not be negative"))
	}
	if err := questions.Validate(iv.Questions); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid interview %s: %w", path, err)
	}
	iv.Questions = questions.Normalize(iv.Questions)
	return &iv, nil
}

// moveQuestion relocates a question by 0-based index, optionally relabels
// it, and rejects results that split a category.
func moveQuestion(qs []questions.Question, from, to int, category string) ([]questions.Question, error) {
	out, err := questions.Move(qs, from, to)
	if err != nil {
		return nil, err
	}
	if category != "" {
		out[to].Category = category
	}
	if err := questions.Validate(out); err != nil {
		return nil, fmt.Errorf("move %d -> %d: %w", from+1, to+1, err)
	}
	return out, nil
}

func hasOrders(qs []questions.Question) bool {
	for _, q := range qs {
		if q.Order != 0 {
			return true
		}
	}
	return false
}

func formatLimit(minutes int) string {
	if minutes <= 0 {
		return "none"
	}
	return fmt.Sprintf("%dm", minutes)
}

func renderInterview(iv *interview.Interview) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(iv.Title))
	b.WriteString("  " + theme.Subtitle.Render(string(iv.Status)))
	b.WriteString("\n" + theme.Body.Render(iv.Goal) + "\n\n")

	mode := "static"
	if iv.AgenticMode {
		mode = "agentic"
	}
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		theme.Label.Render("Mode:"), mode,
		theme.Label.Render("Limit:"), formatLimit(iv.TimeLimitMinutes),
		theme.Label.Render("Token:"), iv.URLToken)
	if len(iv.AnchorTopics) > 0 {
		fmt.Fprintf(&b, "%s %s\n", theme.Label.Render("Topics:"), strings.Join(iv.AnchorTopics, ", "))
	}

	for _, cat := range questions.Group(iv.SortedQuestions()) {
		b.WriteString("\n" + theme.Interviewer.Render(cat.Name) + "\n")
		for i, q := range cat.Questions {
			fmt.Fprintf(&b, "  %2d. %s\n", cat.Start+i+1, q.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
