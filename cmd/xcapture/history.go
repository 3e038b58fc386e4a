package main

import (
	"github.com/spf13/cobra"

	"x-post-capture/internal/history"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		limit    int
		statusID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent capture runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := history.Open(a.cfg.Output.History)
			if err != nil {
				return err
			}
			defer l.Close()

			runs, err := l.Recent(cmd.Context(), limit, statusID)
			if err != nil {
				return err
			}
			history.Render(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&statusID, "status-id", "", "only show runs for this status id")
	cmd.Flags().String("history", "", "history database path")
	a.bindFlags(cmd, map[string]string{"history": "output.history"})
	return cmd
}
