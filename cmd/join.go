package cmd

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/parley/internal/ui/theme"
)

var joinCmd = &cobra.Command{
	Use:   "join <interview-token>",
	Short: "Join a published interview and print the participant's magic token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		addr, err := mail.ParseAddress(strings.TrimSpace(email))
		if err != nil {
			return fmt.Errorf("invalid email %q", email)
		}

		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		iv, err := rt.Store.InterviewByToken(ctx, args[0])
		if err != nil {
			return err
		}
		if !iv.Published() {
			return errors.New("this interview is not open yet")
		}

		p, resumed, err := rt.Store.JoinInterview(ctx, iv.ID, addr.Address)
		if err != nil {
			return err
		}
		if resumed {
			fmt.Println(theme.Hint.Render("Welcome back, " + p.Email))
		}
		fmt.Println(theme.Label.Render("Participant:"), p.ID)
		fmt.Println(theme.Label.Render("Status:     "), p.Status)
		fmt.Println(theme.Label.Render("Magic token:"), p.MagicToken)
		fmt.Println()
		fmt.Println(theme.Hint.Render(fmt.Sprintf("Start with: parley take %s %s", iv.URLToken, p.MagicToken)))
		return nil
	},
}

func init() {
	joinCmd.Flags().StringP("email", "e", "", "Participant email")
	_ = joinCmd.MarkFlagRequired("email")
}
