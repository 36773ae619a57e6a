package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/summarizer"
	"github.com/abhisek/parley/internal/ui/theme"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <participant-id>",
	Short: "Regenerate a participant's summary",
	Long: "Summarize a finished participant's transcript again. Incomplete " +
		"sessions get a partial summary.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.Summarizer == nil {
			return errors.New("summaries need an LLM provider")
		}

		ctx := cmd.Context()
		p, err := rt.Store.GetParticipant(ctx, args[0])
		if err != nil {
			return err
		}
		if !p.Status.Terminal() {
			return fmt.Errorf("participant %s is still %s", p.ID, p.Status)
		}
		iv, err := rt.Store.GetInterview(ctx, p.InterviewID)
		if err != nil {
			return err
		}
		tr, err := rt.Store.GetOrCreateTranscript(ctx, p.ID)
		if err != nil {
			return err
		}

		sum, err := rt.Summarizer.Run(ctx, summarizer.Job{
			Interview:     iv,
			ParticipantID: p.ID,
			Messages:      tr.Messages,
			Partial:       p.Status == interview.ParticipantIncomplete,
		})
		if err != nil {
			return err
		}
		fmt.Println(renderSummary(sum))
		return nil
	},
}

func renderSummary(sum *interview.Summary) string {
	var b strings.Builder
	title := "Summary"
	if sum.Partial {
		title += " (partial)"
	}
	b.WriteString(theme.Title.Render(title) + "\n")
	if sum.Sentiment != "" {
		fmt.Fprintf(&b, "%s %s\n", theme.Label.Render("Sentiment:"), sum.Sentiment)
	}
	if len(sum.KeyThemes) > 0 {
		fmt.Fprintf(&b, "%s %s\n", theme.Label.Render("Themes:"), strings.Join(sum.KeyThemes, ", "))
	}
	if sum.Insights != "" {
		b.WriteString("\n" + theme.Body.Render(sum.Insights) + "\n")
	}
	if len(sum.NotableQuotes) > 0 {
		b.WriteString("\n" + theme.Label.Render("Quotes") + "\n")
		for _, q := range sum.NotableQuotes {
			fmt.Fprintf(&b, "  “%s”", q.Text)
			if q.Context != "" {
				b.WriteString(theme.Subtitle.Render(" - " + q.Context))
			}
			b.WriteString("\n")
		}
	}
	if len(sum.ActionableInsights) > 0 {
		b.WriteString("\n" + theme.Label.Render("Actions") + "\n")
		for _, a := range sum.ActionableInsights {
			fmt.Fprintf(&b, "  • %s\n", a)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
