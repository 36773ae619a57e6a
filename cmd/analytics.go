package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/parley/internal/interview"
	"github.com/abhisek/parley/internal/store"
	"github.com/abhisek/parley/internal/ui/components"
	"github.com/abhisek/parley/internal/ui/theme"
)

const maxThemesShown = 15

var analyticsCmd = &cobra.Command{
	Use:   "analytics [interview-id]",
	Short: "Show theme frequencies and sentiment across completed participants",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refresh, _ := cmd.Flags().GetBool("refresh")
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return errors.New("give an interview id or --all")
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if all {
			n, err := rt.Analytics.RefreshAll(ctx)
			fmt.Printf("Refreshed analytics for %d interview(s).\n", n)
			return err
		}

		var cache *interview.AnalyticsCache
		if refresh {
			cache, err = rt.Analytics.Refresh(ctx, args[0])
		} else {
			cache, err = rt.Store.AnalyticsFor(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				err = nil
			}
		}
		if err != nil {
			return err
		}
		if cache == nil {
			fmt.Println("No analytics yet. Completed participants are needed; try --refresh.")
			return nil
		}
		fmt.Println(renderAnalytics(cache))
		return nil
	},
}

func init() {
	analyticsCmd.Flags().Bool("refresh", false, "Recompute from stored summaries first")
	analyticsCmd.Flags().Bool("all", false, "Recompute analytics for every published interview")
}

func renderAnalytics(c *interview.AnalyticsCache) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Themes"))
	b.WriteString("  " + theme.Subtitle.Render("updated "+c.LastUpdated.Local().Format("2006-01-02 15:04")) + "\n")

	if len(c.Themes) == 0 {
		b.WriteString(theme.Hint.Render("No themes recorded.") + "\n")
	}
	top := c.Themes[:min(len(c.Themes), maxThemesShown)]
	peak := 0
	for _, t := range top {
		peak = max(peak, t.Count)
	}
	for _, t := range top {
		bar := components.Bar{Label: t.Theme, Count: t.Count, Max: peak, LabelWidth: 24, Width: 30}
		b.WriteString(bar.View() + "\n")
	}
	if n := len(c.Themes) - len(top); n > 0 {
		b.WriteString(theme.Hint.Render(fmt.Sprintf("…and %d more", n)) + "\n")
	}

	if len(c.SentimentTrends) > 0 {
		b.WriteString("\n" + theme.Title.Render("Sentiment") + "\n")
		for _, s := range c.SentimentTrends {
			fmt.Fprintf(&b, "  %s  %s\n",
				theme.Subtitle.Render(s.Date.Local().Format("2006-01-02")), s.Sentiment)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
