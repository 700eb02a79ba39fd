package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *globalOpts) *cobra.Command {
	var (
		userID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a user's chat log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			turns, err := a.History(ctx, userID, limit)
			if err != nil {
				return err
			}
			for _, t := range turns {
				cmd.Printf("%s\nQ: %s\nA: %s\n\n", t.Timestamp.Format("2006-01-02 15:04:05"), t.Question, t.Answer)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (email)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum turns to print (0 = all)")
	return cmd
}
