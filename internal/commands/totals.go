package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTotalsCommand(e *env) *cobra.Command {
	var days int
	var all bool

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Sum income and expense over the trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer l.Close()

			rows, totals, err := selectRows(ctx, l.Service, days, e.cfg.WindowDays, all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d record(s)\n", len(rows))
			printTotals(cmd.OutOrStdout(), totals)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "window length in days (default KAKEIBO_WINDOW_DAYS)")
	cmd.Flags().BoolVar(&all, "all", false, "sum the whole ledger")

	return cmd
}
