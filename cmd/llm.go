package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/parley/internal/llm"
	"github.com/abhisek/parley/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect interviewer LLM calls, fallbacks and cost",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		failed, _ := cmd.Flags().GetBool("failed")
		filter := usageFilter(cmd)

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		list, err := rt.Store.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{
			Limit:         limit,
			Purpose:       purpose,
			InterviewID:   filter.InterviewID,
			ParticipantID: filter.ParticipantID,
			FailedOnly:    failed,
		})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		renderLLMEvents(os.Stdout, list)
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the prompt and reply of one LLM call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		e, err := rt.Store.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}
		renderLLMEvent(os.Stdout, e)
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage, fallbacks and estimated cost per purpose",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := usageFilter(cmd)

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		events := rt.Store.EventRepo()
		usage, err := events.LLMUsageByPurpose(ctx, filter)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}
		fallbacks, err := events.FallbacksByPurpose(ctx, filter)
		if err != nil {
			return fmt.Errorf("query fallbacks: %w", err)
		}
		models, err := events.LLMUsageByModel(ctx, filter)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		renderLLMStats(os.Stdout, usage, fallbacks, models)
		return nil
	},
}

func usageFilter(cmd *cobra.Command) store.UsageFilter {
	iv, _ := cmd.Flags().GetString("interview")
	p, _ := cmd.Flags().GetString("participant")
	return store.UsageFilter{InterviewID: iv, ParticipantID: p}
}

func renderLLMEvents(w io.Writer, list []store.LLMRequestEvent) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No LLM calls found.")
		return
	}
	fmt.Fprintf(w, "%-5s  %-19s  %-10s  %-8s  %-24s  %6s  %6s  %6s  %s\n",
		"ID", "Time", "Purpose", "Session", "Model", "In", "Out", "Ms", "Result")
	fmt.Fprintln(w, strings.Repeat("─", 104))
	for _, e := range list {
		result := "ok"
		if !e.Success {
			result = e.ErrorKind
			if result == "" {
				result = "failed"
			}
		}
		fmt.Fprintf(w, "%-5d  %-19s  %-10s  %-8s  %-24s  %6d  %6d  %6d  %s\n",
			e.ID,
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Purpose,
			shortID(e.ParticipantID),
			clip(e.Model, 24),
			e.InputTokens,
			e.OutputTokens,
			e.LatencyMs,
			result,
		)
	}
}

func renderLLMEvent(w io.Writer, e *store.LLMRequestEvent) {
	fmt.Fprintf(w, "ID:          %d\n", e.ID)
	fmt.Fprintf(w, "Time:        %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Provider:    %s (%s)\n", e.Provider, e.Model)
	fmt.Fprintf(w, "Purpose:     %s\n", e.Purpose)
	if e.InterviewID != "" {
		fmt.Fprintf(w, "Interview:   %s\n", e.InterviewID)
	}
	if e.ParticipantID != "" {
		fmt.Fprintf(w, "Participant: %s\n", e.ParticipantID)
	}
	fmt.Fprintf(w, "Tokens:      %d in / %d out, %dms\n", e.InputTokens, e.OutputTokens, e.LatencyMs)
	if !e.Success {
		fmt.Fprintf(w, "Failure:     %s: %s\n", e.ErrorKind, e.ErrorMessage)
	}

	for _, part := range []struct{ title, body string }{
		{"PROMPT", e.RequestBody},
		{"REPLY", e.ResponseBody},
	} {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "── %s %s\n", part.title, strings.Repeat("─", 50))
		if part.body == "" {
			fmt.Fprintln(w, "(not captured)")
			continue
		}
		fmt.Fprintln(w, part.body)
	}
}

// purposeOrder lists oracle purposes in the order an interview uses them.
var purposeOrder = []string{llm.PurposeQuestions, llm.PurposeNextTurn, llm.PurposeSummary}

func renderLLMStats(w io.Writer, usage []store.LLMUsageStats, fallbacks []store.FallbackCount, models []store.LLMModelUsage) {
	if len(usage) == 0 && len(fallbacks) == 0 {
		fmt.Fprintln(w, "No LLM usage recorded yet.")
		return
	}

	byPurpose := make(map[string]store.LLMUsageStats, len(usage))
	for _, u := range usage {
		byPurpose[u.Purpose] = u
	}
	reasons := make(map[string][]string)
	totals := make(map[string]int)
	for _, f := range fallbacks {
		reasons[f.Purpose] = append(reasons[f.Purpose], fmt.Sprintf("%s=%d", f.Reason, f.Count))
		totals[f.Purpose] += f.Count
	}

	purposes := append([]string(nil), purposeOrder...)
	for p := range byPurpose {
		if !contains(purposes, p) {
			purposes = append(purposes, p)
		}
	}
	for p := range totals {
		if !contains(purposes, p) {
			purposes = append(purposes, p)
		}
	}
	sort.Strings(purposes[len(purposeOrder):])

	rule := strings.Repeat("─", 88)
	fmt.Fprintln(w, "Calls by purpose")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-12s  %6s  %10s  %10s  %7s  %9s  %s\n",
		"Purpose", "Calls", "Input", "Output", "Avg ms", "Fallbacks", "Reasons")
	fmt.Fprintln(w, rule)
	var calls, in, out, fell int
	for _, p := range purposes {
		u, ok := byPurpose[p]
		if !ok && totals[p] == 0 {
			continue
		}
		fmt.Fprintf(w, "%-12s  %6d  %10d  %10d  %7d  %9d  %s\n",
			p, u.Calls, u.InputTokens, u.OutputTokens, u.AvgLatencyMs, totals[p], strings.Join(reasons[p], " "))
		calls += u.Calls
		in += u.InputTokens
		out += u.OutputTokens
		fell += totals[p]
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-12s  %6d  %10d  %10d  %7s  %9d\n", "TOTAL", calls, in, out, "", fell)

	if len(models) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Estimated cost (USD, successful calls)")
	fmt.Fprintln(w, rule)
	var cost float64
	var unknown []string
	for _, m := range models {
		price := llm.LookupCost(m.Model)
		if price == nil {
			unknown = append(unknown, m.Model)
			fmt.Fprintf(w, "%-32s  %6d  %10d  %10d  %9s\n", clip(m.Model, 32), m.Calls, m.InputTokens, m.OutputTokens, "?")
			continue
		}
		c := price.Cost(m.InputTokens, m.OutputTokens)
		cost += c
		fmt.Fprintf(w, "%-32s  %6d  %10d  %10d  %9s\n", clip(m.Model, 32), m.Calls, m.InputTokens, m.OutputTokens, formatCost(c))
	}
	fmt.Fprintln(w, rule)
	label := "TOTAL"
	if len(unknown) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Fprintf(w, "%-32s  %6s  %10s  %10s  %9s\n", label, "", "", "", formatCost(cost))
	if len(unknown) > 0 {
		fmt.Fprintf(w, "\nPricing unavailable for: %s\n", strings.Join(unknown, ", "))
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	return clip(id, 8)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of calls to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (questions, next_turn, summary)")
	llmListCmd.Flags().Bool("failed", false, "Only show failed calls")
	for _, c := range []*cobra.Command{llmListCmd, llmStatsCmd} {
		c.Flags().String("interview", "", "Only calls made for this interview id")
		c.Flags().String("participant", "", "Only calls made for this participant id")
	}

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
