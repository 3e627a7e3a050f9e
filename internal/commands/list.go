package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
)

func newListCommand(e *env) *cobra.Command {
	var days int
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the records of the trailing window",
		Long: "Show the records dated within the last --days days, today included.\n" +
			"The Pos column is the position to pass to edit and delete.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, e, days, all)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "window length in days (default KAKEIBO_WINDOW_DAYS)")
	cmd.Flags().BoolVar(&all, "all", false, "show every record")

	return cmd
}

func runList(cmd *cobra.Command, e *env, days int, all bool) error {
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
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "no records")
	} else if err := printRows(out, rows); err != nil {
		return err
	}
	printTotals(out, totals)
	return nil
}

// rowSource is the part of the ledger service read by list and totals.
type rowSource interface {
	Records(ctx context.Context) ([]core.Record, error)
	Window(ctx context.Context, days int) (ledger.View, error)
}

func selectRows(ctx context.Context, src rowSource, days, defaultDays int, all bool) ([]ledger.Row, core.Totals, error) {
	if all {
		records, err := src.Records(ctx)
		if err != nil {
			return nil, core.Totals{}, err
		}
		return allRows(records), ledger.Totals(records), nil
	}
	if days <= 0 {
		days = defaultDays
	}
	v, err := src.Window(ctx, days)
	if err != nil {
		return nil, core.Totals{}, err
	}
	return v.Rows, v.Totals(), nil
}
